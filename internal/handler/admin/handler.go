package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-board/backend/internal/middleware"
	"github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/internal/service/snapshot"
	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

// Snapshotter 按需保存一次快照
type Snapshotter interface {
	SaveNow(ctx context.Context) (message.SnapshotInfo, error)
}

// Handler 运维接口处理器
type Handler struct {
	snapshots Snapshotter
	log       *slog.Logger
}

// New 创建运维处理器；snapshots 为 nil 表示未开启持久化
func New(snapshots Snapshotter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{snapshots: snapshots, log: log}
}

// RegisterRoutes 注册运维路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePrincipal).Post("/admin/snapshots", h.handleSaveSnapshot)
}

// handleSaveSnapshot 立即保存快照
func (h *Handler) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "snapshot persistence disabled")
		return
	}

	info, err := h.snapshots.SaveNow(r.Context())
	switch {
	case errors.Is(err, snapshot.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error("snapshot_request_failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}

	caller, _ := middleware.PrincipalFrom(r.Context())
	h.log.Info("snapshot_requested", "id", info.ID, "caller", caller)
	utils.RespondJSON(w, http.StatusCreated, info)
}
