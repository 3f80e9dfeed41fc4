package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/securelink/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T) http.Handler {
	cfg := &config.Config{JWTSecret: "test-secret"}
	return AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := Subject(r.Context())
		require.True(t, ok)
		w.Write([]byte(sub))
	}))
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	t.Parallel()

	token, err := NewToken("test-secret", "hdfc-feed", time.Hour)
	require.NoError(t, err)

	rec := serve(protected(t), "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hdfc-feed", rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	t.Parallel()

	wrongSecret, err := NewToken("other-secret", "hdfc-feed", time.Hour)
	require.NoError(t, err)
	expired, err := NewToken("test-secret", "hdfc-feed", -time.Minute)
	require.NoError(t, err)
	noSubject, err := NewToken("test-secret", "", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "hdfc-feed"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic dXNlcjpwYXNz",
		"garbage":        "Bearer not-a-token",
		"wrong secret":   "Bearer " + wrongSecret,
		"expired":        "Bearer " + expired,
		"no subject":     "Bearer " + noSubject,
		"alg none":       "Bearer " + none,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(protected(t), header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSubjectMissing(t *testing.T) {
	t.Parallel()

	_, ok := Subject(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}
