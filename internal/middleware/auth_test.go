package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		op, ok := GetOperatorFromContext(r.Context())
		if !ok {
			t.Fatalf("operator not in context")
		}
		if op != "maria.lopez" {
			t.Fatalf("operator from context = %q, want maria.lopez", op)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.SetAuthCookie(w, "maria.lopez")
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.IssueToken("ops"))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_RejectsForeignSignature(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	for _, token := range []string{other.IssueToken("ops"), "ops", "ops.", ".abc"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		m.Middleware(next).ServeHTTP(w, r)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want %d", token, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_TokenLifetime(t *testing.T) {
	issuedAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		now        time.Time
		wantStatus int
	}{
		{name: "fresh", now: issuedAt.Add(time.Hour), wantStatus: http.StatusOK},
		{name: "last valid second", now: issuedAt.Add(authTokenTTL), wantStatus: http.StatusOK},
		{name: "expired", now: issuedAt.Add(authTokenTTL + time.Second), wantStatus: http.StatusUnauthorized},
		{name: "issued in the future", now: issuedAt.Add(-time.Hour), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware("test-secret")
			m.now = func() time.Time { return issuedAt }
			token := m.IssueToken("maria.lopez")

			m.now = func() time.Time { return tt.now }

			var gotOperator string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOperator, _ = GetOperatorFromContext(r.Context())
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			m.Middleware(next).ServeHTTP(w, r)

			if w.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotOperator != "maria.lopez" {
				t.Fatalf("operator = %q, want maria.lopez", gotOperator)
			}
		})
	}
}

func TestAuthMiddleware_RejectsExtendedIssueTime(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	m.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	token := m.IssueToken("ops")

	parts := strings.Split(token, ".")
	parts[1] = "9999999999"
	forged := strings.Join(parts, ".")

	if _, ok := m.parseToken(forged); ok {
		t.Fatalf("token with altered issue time must be rejected")
	}
}
