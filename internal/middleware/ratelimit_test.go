package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, ip, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	req.RemoteAddr = ip + ":5555"
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	now := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	for i := range 3 {
		if rec := doRequest(h, "10.0.0.1", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := doRequest(h, "10.0.0.1", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 429 with Retry-After 1, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	now = now.Add(time.Second)
	if rec := doRequest(h, "10.0.0.1", ""); rec.Code != http.StatusOK {
		t.Fatalf("token not refilled: %d", rec.Code)
	}
}

func TestRateLimiter_KeysBySession(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	h := rl.Handler(okHandler())

	if rec := doRequest(h, "10.0.0.1", "s1"); rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1", "s1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same session: expected 429, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1", "s2"); rec.Code != http.StatusOK {
		t.Fatalf("other session behind the same IP: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.2", ""); rec.Code != http.StatusOK {
		t.Fatalf("other IP: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1", "s1"); rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	doRequest(h, "10.0.0.1", "")
	doRequest(h, "10.0.0.2", "")
	now = now.Add(10 * time.Minute)
	doRequest(h, "10.0.0.3", "")

	rl.cleanup(5 * time.Minute)
	if rl.Len() != 1 {
		t.Fatalf("expected 1 bucket after cleanup, got %d", rl.Len())
	}
}
