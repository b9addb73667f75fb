package http

import (
	"encoding/json"
	"net/http"

	"glidemoney/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a standard error response carrying the request id.
func ErrorResponse(r *http.Request, statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, RequestID: trace.GetRequestID(r.Context())})
}

func BadRequestError(r *http.Request, message string) *JSONResponseBuilder {
	return ErrorResponse(r, http.StatusBadRequest, message)
}

func NotFoundError(r *http.Request, message string) *JSONResponseBuilder {
	return ErrorResponse(r, http.StatusNotFound, message)
}

func UnprocessableEntityError(r *http.Request, message string) *JSONResponseBuilder {
	return ErrorResponse(r, http.StatusUnprocessableEntity, message)
}

func InternalServerError(r *http.Request) *JSONResponseBuilder {
	return ErrorResponse(r, http.StatusInternalServerError, "internal error")
}

func ServiceUnavailableError(r *http.Request, message string) *JSONResponseBuilder {
	return ErrorResponse(r, http.StatusServiceUnavailable, message)
}
