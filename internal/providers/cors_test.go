package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"tgmed/internal/structures"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsHandler(t *testing.T, origins ...string) http.Handler {
	t.Helper()
	h, err := CORS(&structures.Config{Cors: structures.CorsConfig{AllowedOrigins: origins}},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	require.NoError(t, err)
	return h
}

func TestCORS_AllowedOrigin(t *testing.T) {
	h := corsHandler(t, `https://.*\.example\.org`)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Origin", "https://app.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Telegram-InitData")
}

func TestCORS_PatternIsAnchored(t *testing.T) {
	h := corsHandler(t, `https://app\.example\.org`)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Origin", "https://app.example.org.evil.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	h := corsHandler(t, "*")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://anything.test", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	h := corsHandler(t, "*")

	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, corsAllowMethods, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_InvalidPattern(t *testing.T) {
	_, err := CORS(&structures.Config{Cors: structures.CorsConfig{AllowedOrigins: []string{"("}}}, http.NotFoundHandler())
	assert.Error(t, err)
}
