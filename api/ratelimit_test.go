package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestWithRateLimitAllowsWithinBudget(t *testing.T) {
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	h := withRateLimit(inner, rate.Limit(10), 2)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/exchange/pseudonym", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: got status %d, want 200", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("inner handler called %d times, want 2", calls)
	}
}

func TestWithRateLimitRejectsOverBudget(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := withRateLimit(inner, rate.Limit(1), 1)

	req := httptest.NewRequest(http.MethodGet, "/exchange/pseudonym", nil)
	req.RemoteAddr = "10.0.0.2:5555"

	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first call: got status %d, want 200", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: got status %d, want 429", rec2.Code)
	}
}

func TestWithRateLimitKeysByRemoteAddr(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := withRateLimit(inner, rate.Limit(1), 1)

	req1 := httptest.NewRequest(http.MethodGet, "/exchange/pseudonym", nil)
	req1.RemoteAddr = "10.0.0.3:5555"
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("caller A: got status %d, want 200", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/exchange/pseudonym", nil)
	req2.RemoteAddr = "10.0.0.4:5555"
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("caller B: got status %d, want 200 (different bucket)", rec2.Code)
	}
}
