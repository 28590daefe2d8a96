package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ink-panels/internal/model"
)

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	token, err := m.IssueToken("user-42", model.RoleUser)
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != "user-42" {
			t.Fatalf("user id from context = %q, want user-42", id)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithTokenHeader(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	token, err := m.IssueToken("admin-1", model.RoleAdmin)
	require.NoError(t, err)

	var got Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("x-auth-token", token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, Identity{UserID: "admin-1", Role: model.RoleAdmin}, got)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	other := NewAuthMiddleware("other-secret", time.Hour)

	foreign, err := other.IssueToken("user-1", model.RoleUser)
	require.NoError(t, err)

	expiredIssuer := NewAuthMiddleware("test-secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.IssueToken("user-1", model.RoleUser)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: tokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{name: "no token", header: "", value: ""},
		{name: "garbage", header: "Authorization", value: "Bearer not-a-token"},
		{name: "foreign secret", header: "Authorization", value: "Bearer " + foreign},
		{name: "expired", header: "x-auth-token", value: expired},
		{name: "alg none", header: "Authorization", value: "Bearer " + noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}

			m.Middleware(next).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()
			if res.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
			}

			var body map[string]string
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestParseToken_Claims(t *testing.T) {
	m := NewAuthMiddleware("test-secret", 2*time.Hour)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	token, err := m.IssueToken("user-7", model.RoleUser)
	require.NoError(t, err)

	var claims Claims
	_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)

	assert.Equal(t, "user-7", claims.Subject)
	assert.Equal(t, "ink-panels", claims.Issuer)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, fixed.Add(2*time.Hour).Unix(), claims.ExpiresAt.Unix())

	identity, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", identity.UserID)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		want     int
	}{
		{name: "anonymous", identity: nil, want: http.StatusUnauthorized},
		{name: "user", identity: &Identity{UserID: "u", Role: model.RoleUser}, want: http.StatusForbidden},
		{name: "admin", identity: &Identity{UserID: "a", Role: model.RoleAdmin}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			r := httptest.NewRequest(http.MethodDelete, "/api/manga/1", nil)
			if tt.identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), *tt.identity))
			}
			w := httptest.NewRecorder()

			RequireRole(model.RoleAdmin)(next).ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
