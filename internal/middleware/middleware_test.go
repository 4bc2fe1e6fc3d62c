package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, _ := UsernameFromContext(r.Context())
		_, _ = w.Write([]byte(name))
	})
}

func TestJWTAuthRoundTrip(t *testing.T) {
	auth, err := NewJWTAuth("0123456789abcdef-test")
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	tok, err := auth.SignToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	h := auth.WithAuth(RequireAuth(protected()))

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "ops" {
		t.Fatalf("authorized request: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/submissions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rr.Code)
	}
}

func TestJWTAuthRejectsForeignAndExpiredTokens(t *testing.T) {
	auth, _ := NewJWTAuth("0123456789abcdef-test")
	other, _ := NewJWTAuth("another-secret-0123456789")
	foreign, _ := other.SignToken("ops", time.Hour)

	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := auth.SignToken("ops", time.Hour)
	auth.now = time.Now

	h := auth.WithAuth(RequireAuth(protected()))
	for name, tok := range map[string]string{"foreign": foreign, "expired": expired, "garbage": "abc.def.ghi"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s token accepted: %d", name, rr.Code)
		}
	}

	if _, err := NewJWTAuth("short"); err == nil {
		t.Fatalf("short secret should be rejected")
	}
}

func TestCORSPreflightAndOrigins(t *testing.T) {
	h := CORS([]string{"https://ops.example.com"})(protected())

	req := httptest.NewRequest(http.MethodOptions, "/api/export", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/export", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRequestLogSetsID(t *testing.T) {
	h := RequestLog(SecureHeaders(protected()))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestLocale(t *testing.T) {
	var got string
	h := Locale("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))

	cases := []struct {
		query, accept, want string
	}{
		{"", "hi-IN,hi;q=0.9,en;q=0.5", "hi"},
		{"lang=en", "hi-IN", "en"},
		{"", "fr-FR", "en"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/health?"+tc.query, nil)
		if tc.accept != "" {
			req.Header.Set("Accept-Language", tc.accept)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got != tc.want || rr.Header().Get("Content-Language") != tc.want {
			t.Fatalf("%q/%q: locale = %q (header %q), want %q", tc.query, tc.accept, got, rr.Header().Get("Content-Language"), tc.want)
		}
	}
	if LocaleFromContext(context.Background()) != "en" {
		t.Fatalf("default locale should be en")
	}
}
