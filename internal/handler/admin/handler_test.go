package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-board/backend/internal/middleware"
	"github.com/zhouzirui/z-board/backend/internal/model/message"
	messageService "github.com/zhouzirui/z-board/backend/internal/service/message"
	"github.com/zhouzirui/z-board/backend/internal/service/snapshot"
	store "github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

type stubSnapshotter struct {
	err error
}

func (s stubSnapshotter) SaveNow(context.Context) (message.SnapshotInfo, error) {
	return message.SnapshotInfo{}, s.err
}

func serve(h *Handler, principal string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.Principal(""))
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/admin/snapshots", nil)
	if principal != "" {
		req.Header.Set(middleware.DefaultPrincipalHeader, principal)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSaveSnapshot(t *testing.T) {
	svc := messageService.NewService()
	_, err := svc.CreateMessage(context.Background(), "keep me", nil, "alice")
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	sched, err := snapshot.NewScheduler(snapshot.Config{Retain: 2}, svc, mem, nil, nil)
	require.NoError(t, err)

	rec := serve(New(sched, nil), "ops")
	require.Equal(t, http.StatusCreated, rec.Code)

	var info message.SnapshotInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 1, info.Messages)
	assert.Equal(t, 1, mem.Len())
}

func TestSaveSnapshotStatuses(t *testing.T) {
	tests := []struct {
		name      string
		handler   *Handler
		principal string
		want      int
	}{
		{name: "disabled", handler: New(nil, nil), principal: "ops", want: http.StatusServiceUnavailable},
		{name: "no principal", handler: New(stubSnapshotter{}, nil), want: http.StatusUnauthorized},
		{name: "busy", handler: New(stubSnapshotter{err: snapshot.ErrBusy}, nil), principal: "ops", want: http.StatusConflict},
		{name: "store failure", handler: New(stubSnapshotter{err: errors.New("disk full")}, nil), principal: "ops", want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(tt.handler, tt.principal).Code)
		})
	}
}
