package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

var loginRule = Rule{Name: "login", Limit: 5, Window: time.Minute}

func TestRateLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow(loginRule, "192.0.2.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	clock.advance(20 * time.Second)
	ok, retry := rl.Allow(loginRule, "192.0.2.1")
	if ok {
		t.Fatal("6th request should be denied")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}

	if ok, _ := rl.Allow(Rule{Name: "verify", Limit: 5, Window: time.Minute}, "192.0.2.1"); !ok {
		t.Error("another rule should have its own budget")
	}
	if ok, _ := rl.Allow(loginRule, "192.0.2.2"); !ok {
		t.Error("another client should have its own budget")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, clock := newTestLimiter()
	rule := Rule{Name: "unlock", Limit: 3, Window: 10 * time.Second}

	for i := 0; i < 3; i++ {
		rl.Allow(rule, "key")
	}
	if ok, _ := rl.Allow(rule, "key"); ok {
		t.Error("should be blocked within window")
	}

	clock.advance(10 * time.Second)
	if ok, _ := rl.Allow(rule, "key"); !ok {
		t.Error("should be allowed once the window ends")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow(Rule{Name: "short", Limit: 5, Window: time.Second}, "a")
	clock.advance(2 * time.Second)
	rl.Allow(loginRule, "b")

	if n := rl.Cleanup(); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.windows["short:a"]; ok {
		t.Error("finished window should have been removed")
	}
	if _, ok := rl.windows["login:b"]; !ok {
		t.Error("active window should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, clock := newTestLimiter()
	handler := RateLimit(rl, Rule{Name: "login", Limit: 1, Window: time.Minute}, RealIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("192.0.2.1:1234"); rec.Code != http.StatusAccepted {
		t.Fatalf("first status = %d, want 202", rec.Code)
	}

	clock.advance(30*time.Second + 200*time.Millisecond)
	rec := send("192.0.2.1:4321")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}

	if rec := send("192.0.2.2:1234"); rec.Code != http.StatusAccepted {
		t.Errorf("other client status = %d, want 202", rec.Code)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "203.0.113.5"}, "10.0.0.1:80", "203.0.113.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, "10.0.0.1:80", "198.51.100.7"},
		{"garbage header", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1:80", "10.0.0.1"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
