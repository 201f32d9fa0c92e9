package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tallyhub-server/src/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, key string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func protected(t *testing.T) (http.Handler, *uuid.UUID) {
	var seen uuid.UUID
	h := JWTAuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestJWTAuth_Valid(t *testing.T) {
	user := uuid.New()
	token := sign(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.String(),
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	h, seen := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user, *seen)
}

func TestJWTAuth_Rejects(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()
	tests := map[string]string{
		"missing":     "",
		"garbage":     "Bearer not-a-jwt",
		"wrong key":   "Bearer " + sign(t, "another-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString(), "exp": future}),
		"expired":     "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Hour).Unix()}),
		"no expiry":   "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()}),
		"bad subject": "Bearer " + sign(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": future}),
		"wrong alg":   "Bearer " + sign(t, secret, jwt.SigningMethodHS512, jwt.MapClaims{"sub": uuid.NewString(), "exp": future}),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			h, _ := protected(t)
			req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := CORSMiddleware([]string{"https://app.example.com"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_AnyOrigin(t *testing.T) {
	h := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := RequestLogger(logger.NewWithWriter(buf))(Recovery(panicky))

	req := httptest.NewRequest(http.MethodPost, "/api/imports", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	out := buf.String()
	assert.Contains(t, out, "Panic recovered")
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"status":500`)
}
