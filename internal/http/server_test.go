package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"glidemoney/internal/amqp"
	"glidemoney/internal/core"
	"glidemoney/internal/export/memory"
	"glidemoney/internal/glide"
	"glidemoney/internal/log"
	"glidemoney/internal/services"
	"glidemoney/internal/storage"
	"glidemoney/internal/tax"
)

var asOf = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)

type fakePlanner struct {
	mu       sync.Mutex
	cached   core.Plan
	hit      bool
	cacheErr error
	result   *services.PlanResult
	err      error
	triggers []string
}

func (f *fakePlanner) Preview(ctx context.Context, userID string, now time.Time, trigger string) (*services.PlanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePlanner) CachedPlan(ctx context.Context, userID string) (core.Plan, bool, error) {
	return f.cached, f.hit, f.cacheErr
}

func (f *fakePlanner) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

type fakePublisher struct {
	msgs []*amqp.RecomputeMessage
	err  error
}

func (f *fakePublisher) PublishRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeReady struct{ err error }

func (f fakeReady) Ping(ctx context.Context) error { return f.err }

func samplePlan() core.Plan {
	return core.Plan{
		AsOf:            asOf,
		SetAsides:       core.SetAsides{Total: core.Money{Cents: 15886}},
		AvailableBudget: core.Money{Cents: 42114},
		Slices: []core.PaymentSlice{{
			CardID: "A", Amount: core.Money{Cents: 42114},
			SafeBy: asOf.AddDate(0, 0, 2), Rationale: "closes first",
		}},
	}
}

func sampleResult() *services.PlanResult {
	card := glide.CardState{
		CardProfile: core.CardProfile{ID: "A", Limit: core.Money{Cents: 100000}, PostedBalance: core.Money{Cents: 60000}},
		Target:      0.3,
		Pay:         core.Money{Cents: 42114},
	}
	return &services.PlanResult{
		UserID:   "alex",
		Snapshot: core.Snapshot{UserID: "alex", PeriodIncome: core.Money{Cents: 68000}},
		Plan:     samplePlan(),
		Ranked:   []glide.CardState{card},
		Top:      card,
		HasTop:   true,
		Queue:    []glide.CardState{card},
	}
}

func newTestServer(p PlanService, opts Options) *Server {
	opts.Planner = p
	opts.Logger = log.New(log.Config{Output: io.Discard})
	opts.Now = func() time.Time { return asOf }
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 600
	}
	return NewServer(opts)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, r))
	return rr
}

func decodePlan(t *testing.T, rr *httptest.ResponseRecorder) planResponse {
	t.Helper()
	var resp planResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, rr.Body.String())
	}
	return resp
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(&fakePlanner{}, Options{Ready: fakeReady{}})
	defer srv.Shutdown(context.Background())

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := serve(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s: status=%d body=%q", path, rr.Code, rr.Body.String())
		}
	}

	down := newTestServer(&fakePlanner{}, Options{Ready: fakeReady{err: errors.New("database is locked")}})
	defer down.Shutdown(context.Background())
	if rr := serve(down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestGetPlanServesCachedPlan(t *testing.T) {
	p := &fakePlanner{cached: samplePlan(), hit: true}
	srv := newTestServer(p, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decodePlan(t, rr)
	if resp.Source != SourceCache {
		t.Errorf("source = %q, want cache", resp.Source)
	}
	if resp.Plan.AvailableBudget != 421.14 || len(resp.Plan.Slices) != 1 {
		t.Errorf("plan = %+v", resp.Plan)
	}
	if p.runs() != 0 {
		t.Errorf("cache hit should not run the planner, ran %d times", p.runs())
	}
}

func TestGetPlanComputesOnMiss(t *testing.T) {
	p := &fakePlanner{result: sampleResult()}
	srv := newTestServer(p, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodePlan(t, rr)
	if resp.Source != SourceComputed {
		t.Errorf("source = %q, want computed", resp.Source)
	}
	if resp.Plan.TaxYear != 2024 || resp.Plan.TopAction != "A" || resp.Plan.SetAside.Total != 158.86 {
		t.Errorf("plan = %+v", resp.Plan)
	}
	if len(p.triggers) != 1 || p.triggers[0] != services.TriggerAPI {
		t.Errorf("triggers = %v", p.triggers)
	}
}

func TestGetPlanFreshBypassesCache(t *testing.T) {
	p := &fakePlanner{cached: samplePlan(), hit: true, result: sampleResult()}
	srv := newTestServer(p, Options{TaxYear: 2025})
	defer srv.Shutdown(context.Background())

	resp := decodePlan(t, serve(srv, http.MethodGet, "/v1/plans/alex?fresh=true", ""))
	if resp.Source != SourceComputed || resp.Plan.TaxYear != 2025 {
		t.Errorf("source = %q, tax_year = %d", resp.Source, resp.Plan.TaxYear)
	}
}

func TestGetPlanCacheErrorFallsBackToCompute(t *testing.T) {
	p := &fakePlanner{cacheErr: errors.New("redis down"), result: sampleResult()}
	srv := newTestServer(p, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex", "")
	if rr.Code != http.StatusOK || decodePlan(t, rr).Source != SourceComputed {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetPlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"unknown user", "/v1/plans/alex", fmt.Errorf("get profile: %w", storage.ErrNotFound), http.StatusNotFound},
		{"bad snapshot", "/v1/plans/alex", fmt.Errorf("compute plan: %w", core.ErrInvalidCardProfile), http.StatusUnprocessableEntity},
		{"missing province", "/v1/plans/alex", core.ErrMissingJurisdiction, http.StatusUnprocessableEntity},
		{"store failure", "/v1/plans/alex", errors.New("disk I/O error"), http.StatusInternalServerError},
		{"invalid user id", "/v1/plans/-alex", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakePlanner{err: tt.err}, Options{})
			defer srv.Shutdown(context.Background())

			rr := serve(srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d", rr.Code, tt.want)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" || body.RequestID == "" {
				t.Errorf("error body = %+v", body)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(body.Error, "disk") {
				t.Errorf("internal error leaked: %q", body.Error)
			}
		})
	}
}

func TestGetCards(t *testing.T) {
	srv := newTestServer(&fakePlanner{result: sampleResult()}, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex/cards", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp cardsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AsOf != "2024-05-15" || len(resp.Cards) != 1 || !resp.Cards[0].Top || resp.Cards[0].Utilization != 60 {
		t.Errorf("cards = %+v", resp)
	}
}

type snapshotSource struct{}

func (snapshotSource) GetProfile(context.Context, string) (core.UserMoneyConfig, error) {
	return core.UserMoneyConfig{
		TargetUtilization: 0.30,
		Cushion:           core.Dollars(100),
		Cadence:           core.Weekly,
		Jurisdiction:      "ON",
		EffectiveTaxRate:  0.18,
	}, nil
}

func (snapshotSource) ListCards(context.Context, string) ([]core.CardProfile, error) {
	return []core.CardProfile{{ID: "A", Name: "TD Visa", Limit: core.Dollars(2000), PostedBalance: core.Dollars(960), APR: 19.99}}, nil
}

func (snapshotSource) ListUpcomingBills(context.Context, string, time.Time, time.Time) ([]core.Bill, error) {
	return nil, nil
}

func (snapshotSource) ListIncome(_ context.Context, _ string, from, to time.Time) ([]core.IncomeItem, error) {
	item := core.IncomeItem{Gross: core.Dollars(680), ReceivedAt: asOf.AddDate(0, 0, -1)}
	if item.ReceivedAt.Before(from) || item.ReceivedAt.After(to) {
		return nil, nil
	}
	return []core.IncomeItem{item}, nil
}

type runLog struct {
	mu       sync.Mutex
	triggers []string
}

func (l *runLog) RecordPlanRun(_ context.Context, _, trigger string, _ core.Plan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggers = append(l.triggers, trigger)
	return nil
}

func (l *runLog) LastPlanRun(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func TestPlanReadsDoNotRecordOrExport(t *testing.T) {
	store, runs := memory.New(), &runLog{}
	planner := services.NewPlanner(snapshotSource{}, tax.NewFileProvider(""), services.PlannerConfig{TaxYear: 2024}).
		WithRunLog(runs).
		WithExporter(store)
	srv := newTestServer(planner, Options{})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/v1/plans/alex", "/v1/plans/alex?fresh=true", "/v1/plans/alex/cards"} {
		if rr := serve(srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
	if n := len(store.SetAsides()); n != 0 {
		t.Errorf("exported %d set-aside rows, want 0", n)
	}
	if n := len(store.Slices("alex")); n != 0 {
		t.Errorf("exported %d slice rows, want 0", n)
	}
	if len(runs.triggers) != 0 {
		t.Errorf("recorded runs %v, want none", runs.triggers)
	}

	// A queued or scheduled run still records and exports.
	if _, err := planner.Run(context.Background(), "alex", asOf, services.TriggerCron); err != nil {
		t.Fatal(err)
	}
	if len(store.SetAsides()) != 1 || len(runs.triggers) != 1 {
		t.Errorf("run: exported=%d recorded=%v", len(store.SetAsides()), runs.triggers)
	}
}

func TestDottedUserIDsReachPlanRoutes(t *testing.T) {
	p := &fakePlanner{result: sampleResult()}
	srv := newTestServer(p, Options{})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/v1/plans/jo.github", "/v1/plans/ann.envoy/cards", "/v1/plans/sam.sshd"} {
		if rr := serve(srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
	if srv.SuspiciousRequests() != 0 {
		t.Errorf("suspicious=%d, want 0", srv.SuspiciousRequests())
	}
	if rr := serve(srv, http.MethodGet, "/v1/plans/.git/config", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("dotfile path status=%d, want 400", rr.Code)
	}
}

func TestRecompute(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(&fakePlanner{}, Options{Publisher: pub})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodPost, "/v1/plans/alex/recompute", `{"force":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp recomputeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.UserID != "alex" || !msg.Force || msg.Trigger != services.TriggerRequest || resp.ID != msg.ID {
		t.Errorf("msg = %+v, resp = %+v", msg, resp)
	}

	if rr := serve(srv, http.MethodPost, "/v1/plans/alex/recompute", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("empty body status=%d", rr.Code)
	}
	if pub.msgs[1].Force {
		t.Error("empty body should not force")
	}

	if rr := serve(srv, http.MethodPost, "/v1/plans/alex/recompute", `{"forse":true}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status=%d, want 400", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/v1/plans/alex/recompute", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET recompute status=%d, want 405", rr.Code)
	}
}

func TestRecomputeUnavailable(t *testing.T) {
	noQueue := newTestServer(&fakePlanner{}, Options{})
	defer noQueue.Shutdown(context.Background())
	if rr := serve(noQueue, http.MethodPost, "/v1/plans/alex/recompute", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no publisher status=%d, want 503", rr.Code)
	}

	broken := newTestServer(&fakePlanner{}, Options{Publisher: &fakePublisher{err: errors.New("circuit breaker is open")}})
	defer broken.Shutdown(context.Background())
	if rr := serve(broken, http.MethodPost, "/v1/plans/alex/recompute", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("publish failure status=%d, want 503", rr.Code)
	}
}

func TestRateLimitAppliesToPlanRoutesOnly(t *testing.T) {
	srv := newTestServer(&fakePlanner{cached: samplePlan(), hit: true}, Options{RequestsPerMinute: 1})
	defer srv.Shutdown(context.Background())

	if rr := serve(srv, http.MethodGet, "/v1/plans/alex", ""); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := serve(srv, http.MethodGet, "/v1/plans/alex", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	for i := 0; i < 3; i++ {
		if rr := serve(srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
			t.Fatalf("healthz limited: status=%d", rr.Code)
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(&fakePlanner{cached: samplePlan(), hit: true}, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex", "")
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("security headers missing: %v", rr.Header())
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	p := &fakePlanner{result: sampleResult()}
	srv := newTestServer(p, Options{})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/v1/plans/alex?file=../../etc/passwd", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
	if srv.SuspiciousRequests() != 1 || p.runs() != 0 {
		t.Errorf("suspicious=%d runs=%d", srv.SuspiciousRequests(), p.runs())
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("glidemoney_plan_runs_total 1\n"))
	})
	srv := newTestServer(&fakePlanner{}, Options{Metrics: metrics})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "plan_runs_total") {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}

	bare := newTestServer(&fakePlanner{}, Options{})
	defer bare.Shutdown(context.Background())
	if rr := serve(bare, http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("metrics without handler status=%d, want 404", rr.Code)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(&fakePlanner{}, Options{})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
