package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/judgelink/internal/middleware"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		APIToken:       "router-test-token",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimiter:    rl,
		LinkService:    &mockLinkService{},
		AccountReader:  &mockAccountReader{},
		AccountDeleter: &mockAccountDeleter{},
	})
}

func TestRouter_HealthWithoutAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/links?guild_id=guild-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_AuthenticatedRequestReachesHandler(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/links?guild_id=guild-1", nil)
	req.Header.Set("Authorization", "Bearer router-test-token")
	req.Header.Set("X-Forwarded-User", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRouter_StartLinkRoute(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"guild_id":"guild-1","platform":"codeforces","username":"tourist"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/links", body)
	req.Header.Set("Authorization", "Bearer router-test-token")
	req.Header.Set("X-Forwarded-User", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestRouter_VerifyRoute(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"guild_id":"guild-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/links/verify", body)
	req.Header.Set("Authorization", "Bearer router-test-token")
	req.Header.Set("X-Forwarded-User", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// モックサービスはセッションなしを返す
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusNotFound, w.Body.String())
	}
}
