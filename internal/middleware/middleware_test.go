package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"golang.org/x/time/rate"
)

func TestWrap_InjectsTrace(t *testing.T) {
	var seen string
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logger_i.TraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		header   string
		wantEcho bool
	}{
		{"client supplied trace is kept", "trace-from-client", true},
		{"missing trace is generated", "", false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = "198.51.100." + string(rune('1'+i)) + ":4000"
			if tt.header != "" {
				req.Header.Set(traceHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d", rec.Code)
			}
			if seen == "" || rec.Header().Get(traceHeader) != seen {
				t.Errorf("trace in context %q, header %q", seen, rec.Header().Get(traceHeader))
			}
			if tt.wantEcho && seen != tt.header {
				t.Errorf("trace = %q, want %q", seen, tt.header)
			}
		})
	}
}

func TestWrap_RateLimitsPerIP(t *testing.T) {
	calls := 0
	h := Wrap(func(w http.ResponseWriter, r *http.Request) { calls++ })

	limited := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/search_stats", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some requests to be rate limited")
	}
	if calls+limited != 50 {
		t.Errorf("calls %d + limited %d != 50", calls, limited)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/search_stats", nil)
	other.RemoteAddr = "203.0.113.8:5000"
	rec := httptest.NewRecorder()
	h(rec, other)
	if rec.Code == http.StatusTooManyRequests {
		t.Error("a different ip must have its own bucket")
	}
}

func TestIPRateLimiter_CostAndEviction(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 4)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// burst of 4 covers two writes
	if !l.Allow("a", 2, now) || !l.Allow("a", 2, now) {
		t.Fatal("first two writes must pass")
	}
	if l.Allow("a", 2, now) {
		t.Error("third write must be limited")
	}
	// a cost above the burst is capped instead of never passing
	if !l.Allow("b", 10, now) {
		t.Error("oversized cost must be capped to the burst")
	}

	later := now.Add(limiterIdleEviction + time.Minute)
	if !l.Allow("c", 1, later) {
		t.Fatal("new client must pass")
	}
	if got := l.tracked(); got != 1 {
		t.Errorf("tracked clients = %d, want only the fresh one", got)
	}
	if !l.Allow("a", 2, later) {
		t.Error("an evicted client starts over with a full bucket")
	}
}

func TestRequestCost(t *testing.T) {
	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, 1},
		{http.MethodPost, 2},
		{http.MethodPut, 2},
	}
	for _, tt := range tests {
		if got := requestCost(httptest.NewRequest(tt.method, "/api/upload", nil)); got != tt.want {
			t.Errorf("%s cost = %d, want %d", tt.method, got, tt.want)
		}
	}
}
