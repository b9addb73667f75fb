// Package http serves the read-only plan API next to the worker's probes
// and metrics.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"glidemoney/internal/amqp"
	"glidemoney/internal/core"
	"glidemoney/internal/log"
	"glidemoney/internal/middleware/ratelimit"
	"glidemoney/internal/middleware/security"
	"glidemoney/internal/middleware/trace"
	"glidemoney/internal/services"
)

type (
	// PlanService computes read-only plans and reads the plan cache. Reads
	// never record runs or export.
	PlanService interface {
		Preview(ctx context.Context, userID string, now time.Time, trigger string) (*services.PlanResult, error)
		CachedPlan(ctx context.Context, userID string) (core.Plan, bool, error)
	}

	// RecomputePublisher queues a recompute for the worker.
	RecomputePublisher interface {
		PublishRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error
	}

	// ReadinessChecker reports whether the backing store answers.
	ReadinessChecker interface {
		Ping(ctx context.Context) error
	}
)

// Options wires the server's collaborators. Publisher, Ready and Metrics are
// optional.
type Options struct {
	Addr              string
	Planner           PlanService
	Publisher         RecomputePublisher
	Ready             ReadinessChecker
	Metrics           http.Handler
	Logger            *log.Logger
	RequestsPerMinute int
	// TaxYear is reported with computed plans.
	TaxYear int
	Now     func() time.Time
}

type Server struct {
	http.Server
	planner     PlanService
	publisher   RecomputePublisher
	ready       ReadinessChecker
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	taxYear     int
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAPI)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		planner:   opts.Planner,
		publisher: opts.Publisher,
		ready:     opts.Ready,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		detector: security.NewDetector(),
		taxYear:  opts.TaxYear,
		now:      now,
	}

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	mux.Handle("GET /v1/plans/{user}", limited(http.HandlerFunc(s.handleGetPlan)))
	mux.Handle("GET /v1/plans/{user}/cards", limited(http.HandlerFunc(s.handleGetCards)))
	mux.Handle("POST /v1/plans/{user}/recompute", limited(http.HandlerFunc(s.handleRecompute)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(headers.Middleware(s.screen(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// screen rejects probes for files and injection payloads before routing.
func (s *Server) screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request rejected",
				"method", r.Method, "url", r.URL.Path, "user_agent", r.Header.Get("User-Agent"))
			BadRequestError(r, "bad request").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r), "url", r.URL.Path)
	ErrorResponse(r, http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// SuspiciousRequests is the number of requests screened out so far.
func (s *Server) SuspiciousRequests() int64 {
	return s.detector.GetMetrics().SuspiciousRequests
}
