package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowBurstThenDeny(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer rl.Stop()
	now := time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other client should have its own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("token should refill after one second at 60/min")
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	defer rl.Stop()
	now := time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(8 * time.Minute)
	rl.Allow("recent")
	now = now.Add(3 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_Defaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	if rl.burst != 60 {
		t.Errorf("burst = %d, want 60", rl.burst)
	}
	if rl.RetryAfter() != 1 {
		t.Errorf("RetryAfter() = %d, want 1", rl.RetryAfter())
	}

	slow := NewLimiter(Config{RequestsPerMinute: 2})
	defer slow.Stop()
	if slow.RetryAfter() != 30 {
		t.Errorf("RetryAfter() = %d, want 30", slow.RetryAfter())
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}

func TestLimiter_Middleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return "client" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", second.Header().Get("Retry-After"))
	}
}
