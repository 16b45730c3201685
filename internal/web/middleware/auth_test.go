package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer", "Bearer abc123", "abc123"},
		{"lower case scheme", "bearer abc123", "abc123"},
		{"extra spaces", "Bearer   abc123 ", "abc123"},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"no token", "Bearer", ""},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if got := BearerToken(req); got != tc.want {
				t.Errorf("BearerToken() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequireToken(t *testing.T) {
	var seen string
	handler := RequireToken()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Error("missing WWW-Authenticate header")
		}
	})

	t.Run("token forwarded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer employee-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if seen != "employee-token" {
			t.Errorf("token in context = %q, want employee-token", seen)
		}
	})
}

func TestGetTokenFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetTokenFromContext(req.Context()); got != "" {
		t.Errorf("GetTokenFromContext() = %q, want empty", got)
	}
	ctx := SetTokenInContext(req.Context(), "t")
	if got := GetTokenFromContext(ctx); got != "t" {
		t.Errorf("GetTokenFromContext() = %q, want t", got)
	}
}
