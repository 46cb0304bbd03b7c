package message

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-board/backend/internal/middleware"
	model "github.com/zhouzirui/z-board/backend/internal/model/message"
	messageService "github.com/zhouzirui/z-board/backend/internal/service/message"
	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

// Handler 留言板的HTTP处理器
type Handler struct {
	svc             *messageService.Service
	defaultPageSize uint32
	maxPageSize     uint32
}

// New 创建留言处理器
func New(svc *messageService.Service, defaultPageSize, maxPageSize uint32) *Handler {
	if defaultPageSize == 0 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &Handler{
		svc:             svc,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// RegisterRoutes 注册留言相关的路由；写接口经过限流，修改类接口要求调用者身份
func (h *Handler) RegisterRoutes(r chi.Router, limiter *middleware.RateLimiter) {
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.handleListMessages)
		r.With(limiter.Middleware, middleware.RequirePrincipal).Post("/", h.handleCreateMessage)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetMessage)
			r.Get("/thread", h.handleGetThread)
			r.With(limiter.Middleware, middleware.RequirePrincipal).Put("/", h.handleUpdateMessage)
			r.With(limiter.Middleware, middleware.RequirePrincipal).Delete("/", h.handleDeleteMessage)
			r.With(limiter.Middleware).Post("/like", h.handleLikeMessage)
		})
	})

	r.Get("/stats", h.handleStats)
	r.Get("/authors/{principal}/messages/count", h.handleAuthorCount)
}

// handleCreateMessage 发布留言或回复
func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, _ := middleware.PrincipalFrom(r.Context())
	msg, err := h.svc.CreateMessage(r.Context(), payload.Content, payload.ParentID, caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, msg)
}

// handleListMessages 分页查询顶层留言
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r.URL.Query(), h.defaultPageSize, h.maxPageSize)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.svc.GetMessages(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, page)
}

// handleGetMessage 查询单条留言
func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	msg, err := h.svc.GetMessage(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, msg)
}

// handleUpdateMessage 作者修改留言内容
func (h *Handler) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	var payload updateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, _ := middleware.PrincipalFrom(r.Context())
	msg, err := h.svc.UpdateMessage(r.Context(), id, payload.Content, caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, msg)
}

// handleDeleteMessage 作者删除留言
func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	caller, _ := middleware.PrincipalFrom(r.Context())
	if err := h.svc.DeleteMessage(r.Context(), id, caller); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLikeMessage 点赞，任何人都可以
func (h *Handler) handleLikeMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	if err := h.svc.LikeMessage(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetThread 返回留言及其直接回复
func (h *Handler) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	thread, err := h.svc.GetMessageThread(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, thread)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.GetStats(r.Context()))
}

func (h *Handler) handleAuthorCount(w http.ResponseWriter, r *http.Request) {
	principal := model.Principal(chi.URLParam(r, "principal"))
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"principal": principal,
		"count":     h.svc.AuthorMessageCount(r.Context(), principal),
	})
}

func messageID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid message id")
		return 0, false
	}
	return id, true
}

// respondServiceError 将服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	switch messageService.KindOf(err) {
	case messageService.KindValidation:
		utils.RespondError(w, http.StatusBadRequest, errorText(err))
	case messageService.KindNotFound:
		utils.RespondError(w, http.StatusNotFound, errorText(err))
	case messageService.KindAuthorization:
		utils.RespondError(w, http.StatusForbidden, errorText(err))
	default:
		slog.Error("message_request_failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorText(err error) string {
	var e *messageService.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
