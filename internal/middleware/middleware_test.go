package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"sales-dashboard/internal/config"
)

type fakeSessions struct {
	enabled bool
	tokens  map[string]bool
}

func (f *fakeSessions) Enabled() bool           { return f.enabled }
func (f *fakeSessions) Valid(token string) bool { return f.tokens[token] }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionAuth(t *testing.T) {
	sessions := &fakeSessions{enabled: true, tokens: map[string]bool{"good-token": true}}
	handler := SessionAuth(sessions, testLogger(), "/api/session")(okHandler())

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"api without token", "/api/metrics", "", http.StatusUnauthorized},
		{"api with bad token", "/api/metrics", "bad-token", http.StatusUnauthorized},
		{"api with good token", "/api/metrics", "good-token", http.StatusOK},
		{"sse without token", "/sse/kpis", "", http.StatusUnauthorized},
		{"login path is open", "/api/session", "", http.StatusOK},
		{"page is open", "/", "", http.StatusOK},
		{"health is open", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)
			if tt.token != "" {
				r.Header.Set("X-Session-Token", tt.token)
			}

			handler.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestSessionAuth_QueryToken(t *testing.T) {
	// SSE connections cannot set headers, so the token may ride the query
	// string instead.
	sessions := &fakeSessions{enabled: true, tokens: map[string]bool{"good-token": true}}
	handler := SessionAuth(sessions, testLogger())(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/kpis?session=good-token", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSessionAuth_Disabled(t *testing.T) {
	sessions := &fakeSessions{enabled: false}
	handler := SessionAuth(sessions, testLogger())(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the gate is disabled", w.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("first"), mw("second"))(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("execution order = %v, want [first second]", order)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.SecurityConfig{
		EnableRateLimit: true,
		RateLimitRPS:    1,
		RateLimitBurst:  1,
	}
	limiter := NewRateLimiter(cfg)
	handler := RateLimit(limiter, testLogger())(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("burst-exceeding request status = %d, want 429", w.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: false})
	handler := RateLimit(limiter, testLogger())(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRequestID(t *testing.T) {
	handler := RequestID()(okHandler())

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("expected a generated request id")
		}
	})

	t.Run("propagates when present", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Request-ID", "client-id")
		handler.ServeHTTP(w, r)
		if got := w.Header().Get("X-Request-ID"); got != "client-id" {
			t.Errorf("X-Request-ID = %q, want client-id", got)
		}
	})
}
