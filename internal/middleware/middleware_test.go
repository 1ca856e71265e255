package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/metrics"
	"github.com/channelhub/backend/internal/models"
)

type stubAuthenticator struct {
	tokens map[string]models.Account
	seen   string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, raw string) (models.Account, error) {
	s.seen = raw
	account, ok := s.tokens[raw]
	if !ok {
		return models.Account{}, apperr.Unauthorized("invalid access token")
	}
	return account, nil
}

func TestRequireAuth(t *testing.T) {
	authn := &stubAuthenticator{tokens: map[string]models.Account{"good": {ID: "account-1", Username: "alice"}}}

	var reached models.Account
	handler := RequireAuth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFromContext(r.Context())
		if !ok {
			t.Fatal("expected account on context")
		}
		reached = account
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"}) }, http.StatusNoContent},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusNoContent},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"badBearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
		{"basicScheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic good") }, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached = models.Account{}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusNoContent && reached.ID != "account-1" {
				t.Fatalf("handler did not receive account, got %+v", reached)
			}
			if tc.status == http.StatusUnauthorized {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["success"] != false {
					t.Fatalf("expected error envelope, got %v", body)
				}
			}
		})
	}
}

func TestAccessTokenPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	if got := AccessToken(req); got != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORS([]string{"https://app.example.com/"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("expected allowed origin, got headers %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected allow origin for foreign site")
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rec.Code)
	}
}

func TestCORSWildcardNeverAllowsCredentials(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORS([]string{"*", "https://app.example.com"})(next)

	send := func(origin string) http.Header {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/current-user", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected preflight 204 for %s, got %d", origin, rec.Code)
		}
		return rec.Header()
	}

	h := send("https://evil.example.com")
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("wildcard origins must not be sent credentials")
	}

	h = send("https://app.example.com")
	if h.Get("Access-Control-Allow-Origin") != "https://app.example.com" || h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("named origin should keep credentials, got %v", h)
	}
}

func TestMetricsLabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/videos/{videoID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Metrics(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /api/v1/videos/{videoID}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("expected 2 requests under one pattern label, got %v", got)
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	logs := buf.String()
	if !strings.Contains(logs, "panic recovered") || !strings.Contains(logs, `"request_id"`) {
		t.Fatalf("expected panic and request id in logs, got %s", logs)
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Minute).(*ipRateLimiter)
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter.WithNowFunc(func() time.Time { return now })

	if !limiter.Allow("1.1.1.1") || !limiter.Allow("1.1.1.1") {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.Allow("1.1.1.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("2.2.2.2") {
		t.Fatal("expected other key to be independent")
	}

	now = now.Add(2 * time.Minute)
	limiter.Allow("3.3.3.3")
	limiter.mu.Lock()
	_, stale := limiter.visitors["1.1.1.1"]
	limiter.mu.Unlock()
	if stale {
		t.Fatal("expected idle visitor to be collected")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)
	handler := RateLimit(limiter, "login", proxies)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1:443", "198.51.100.7"); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send("10.0.0.2:443", "198.51.100.7"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request from same client to be limited, got %d", code)
	}
	if code := send("10.0.0.1:443", "198.51.100.8"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}
}

func TestRateLimitIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)
	handler := RateLimit(limiter, "login", TrustedProxies{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for _, forwarded := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("rotating X-Forwarded-For must not reset the budget, got %v", codes)
	}
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "192.168.1.5", "fd00::/8"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}

	tests := []struct {
		name      string
		proxies   TrustedProxies
		remote    string
		forwarded []string
		want      string
	}{
		{name: "direct", proxies: proxies, remote: "203.0.113.9:5555", want: "203.0.113.9"},
		{name: "spoofed header from untrusted peer", proxies: proxies, remote: "203.0.113.9:5555", forwarded: []string{"198.51.100.7"}, want: "203.0.113.9"},
		{name: "no proxies configured", remote: "10.0.0.1:80", forwarded: []string{"198.51.100.7"}, want: "10.0.0.1"},
		{name: "trusted proxy", proxies: proxies, remote: "10.1.2.3:80", forwarded: []string{"198.51.100.7"}, want: "198.51.100.7"},
		{name: "client prepends fake hop", proxies: proxies, remote: "10.1.2.3:80", forwarded: []string{"6.6.6.6, 198.51.100.7"}, want: "198.51.100.7"},
		{name: "proxy chain", proxies: proxies, remote: "192.168.1.5:80", forwarded: []string{"198.51.100.7, 10.0.0.9", "10.0.0.4"}, want: "198.51.100.7"},
		{name: "all hops trusted", proxies: proxies, remote: "10.1.2.3:80", forwarded: []string{"10.0.0.9"}, want: "10.0.0.9"},
		{name: "trusted proxy without header", proxies: proxies, remote: "10.1.2.3:80", want: "10.1.2.3"},
		{name: "ipv6 proxy", proxies: proxies, remote: "[fd00::1]:443", forwarded: []string{"2001:db8::7"}, want: "2001:db8::7"},
		{name: "mapped ipv4 peer", proxies: proxies, remote: "[::ffff:10.0.0.1]:80", forwarded: []string{"198.51.100.7"}, want: "198.51.100.7"},
		{name: "hop with port", proxies: proxies, remote: "10.1.2.3:80", forwarded: []string{"198.51.100.7:1234"}, want: "198.51.100.7"},
		{name: "unparsable remote", proxies: proxies, remote: "pipe", want: "pipe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, value := range tc.forwarded {
				req.Header.Add("X-Forwarded-For", value)
			}
			if got := tc.proxies.ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.internal"} {
		if _, err := ParseTrustedProxies([]string{entry}); err == nil {
			t.Fatalf("expected error for %q", entry)
		}
	}
}
