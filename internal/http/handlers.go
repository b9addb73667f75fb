package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"glidemoney/internal/amqp"
	"glidemoney/internal/core"
	"glidemoney/internal/log"
	"glidemoney/internal/report"
	"glidemoney/internal/services"
	"glidemoney/internal/storage"
)

const (
	SourceCache    = "cache"
	SourceComputed = "computed"

	maxRecomputeBody = 1 << 10
)

var validUserID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,63}$`)

type (
	planResponse struct {
		Source string      `json:"source"`
		Plan   report.Plan `json:"plan"`
	}

	cardsResponse struct {
		User  string        `json:"user"`
		AsOf  string        `json:"as_of"`
		Cards []report.Card `json:"cards"`
	}

	recomputeRequest struct {
		Force bool `json:"force"`
	}

	recomputeResponse struct {
		ID     string `json:"id"`
		User   string `json:"user"`
		Status string `json:"status"`
	}
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
				log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleGetPlan serves the cached plan, computing a fresh one on a miss or
// when ?fresh=true.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))
	if !fresh {
		plan, hit, err := s.planner.CachedPlan(ctx, userID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "Plan cache lookup failed, computing",
				log.FieldUserID, userID, log.FieldError, err)
		case hit:
			NewJSONResponse().Body(planResponse{Source: SourceCache, Plan: report.CachedPlan(userID, plan)}).Write(w)
			return
		}
	}

	result, err := s.planner.Preview(ctx, userID, s.now(), services.TriggerAPI)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(planResponse{Source: SourceComputed, Plan: report.PlanOf(result, s.year(result))}).Write(w)
}

func (s *Server) handleGetCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	now := s.now()
	result, err := s.planner.Preview(r.Context(), userID, now, services.TriggerAPI)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(cardsResponse{
		User:  userID,
		AsOf:  result.Plan.AsOf.Format(report.DateLayout),
		Cards: report.Cards(result, now),
	}).Write(w)
}

// handleRecompute queues a recompute for the worker. The body is optional.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if s.publisher == nil {
		ServiceUnavailableError(r, "recompute queue is not configured").Write(w)
		return
	}

	var req recomputeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecomputeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequestError(r, "invalid request body").Write(w)
		return
	}

	ctx := r.Context()
	msg := amqp.NewRecomputeMessage(userID, services.TriggerRequest, req.Force)
	if err := s.publisher.PublishRecompute(ctx, msg); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to queue recompute",
			log.FieldUserID, userID, log.FieldErrorType, log.ErrorTypeNetwork, log.FieldError, err)
		ServiceUnavailableError(r, "recompute queue unavailable").Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusAccepted).
		Body(recomputeResponse{ID: msg.ID, User: userID, Status: "queued"}).
		Write(w)
}

func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("user")
	if !validUserID.MatchString(userID) {
		BadRequestError(r, "invalid user id").Write(w)
		return "", false
	}
	return userID, true
}

// writeError maps planning failures onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError(r, "user not found").Write(w)
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrUnsupportedJurisdiction):
		UnprocessableEntityError(r, err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Plan request failed", log.FieldError, err)
		InternalServerError(r).Write(w)
	}
}

func (s *Server) year(result *services.PlanResult) int {
	if s.taxYear != 0 {
		return s.taxYear
	}
	return result.Plan.AsOf.Year()
}
