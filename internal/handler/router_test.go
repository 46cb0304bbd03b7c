package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-board/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/z-board/backend/internal/middleware"
	feedService "github.com/zhouzirui/z-board/backend/internal/service/feed"
	messageService "github.com/zhouzirui/z-board/backend/internal/service/message"
)

func newTestRouter(limiter *middlewarePkg.RateLimiter) (http.Handler, *messageService.Service) {
	m := metrics.New()
	hub := feedService.NewHub(4, m)
	svc := messageService.NewService(messageService.WithPublisher(hub), messageService.WithRecorder(m))
	return NewRouter(Options{
		Service:         svc,
		Feed:            hub,
		Limiter:         limiter,
		Metrics:         m.Handler(),
		AllowedOrigins:  []string{"*"},
		PrincipalHeader: "X-User",
		DefaultPageSize: 10,
		MaxPageSize:     50,
	}), svc
}

func post(r http.Handler, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterUsesConfiguredPrincipalHeader(t *testing.T) {
	r, svc := newTestRouter(nil)

	rec := post(r, "/api/messages", "carol", `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(1), svc.AuthorMessageCount(t.Context(), "carol"))
}

func TestRouterRateLimitsWrites(t *testing.T) {
	r, _ := newTestRouter(middlewarePkg.NewRateLimiter(0.001, 1))

	assert.Equal(t, http.StatusCreated, post(r, "/api/messages", "carol", `{"content":"one"}`).Code)
	rec := post(r, "/api/messages", "carol", `{"content":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are never limited
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("X-User", "carol")
	get := httptest.NewRecorder()
	r.ServeHTTP(get, req)
	assert.Equal(t, http.StatusOK, get.Code)
}

func TestRouterSnapshotDisabled(t *testing.T) {
	r, _ := newTestRouter(nil)

	rec := post(r, "/api/admin/snapshots", "ops", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterOpsEndpoints(t *testing.T) {
	r, _ := newTestRouter(nil)
	post(r, "/api/messages", "carol", `{"content":"count me"}`)

	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok","messages":1}`, health.Body.String())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `board_operations_total{op="create",outcome="ok"} 1`))
}
