package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storepulse/analytics-backend/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth_EmptyTokenDisablesCheck(t *testing.T) {
	handler := middleware.BearerAuthMiddleware("")(okHandler())

	req := httptest.NewRequest("GET", "/api/live/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth_ValidHeader(t *testing.T) {
	handler := middleware.BearerAuthMiddleware("sekrit")(okHandler())

	req := httptest.NewRequest("GET", "/api/live/stats", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth_QueryParameterFallback(t *testing.T) {
	handler := middleware.BearerAuthMiddleware("sekrit")(okHandler())

	req := httptest.NewRequest("GET", "/api/live/stream?token=sekrit", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth_RejectsWrongToken(t *testing.T) {
	handler := middleware.BearerAuthMiddleware("sekrit")(okHandler())

	req := httptest.NewRequest("GET", "/api/live/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_RejectsMissingToken(t *testing.T) {
	handler := middleware.BearerAuthMiddleware("sekrit")(okHandler())

	req := httptest.NewRequest("GET", "/api/live/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
