package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

// Subscriber provides the live mutation feed.
type Subscriber interface {
	Subscribe() (<-chan message.Event, func())
}

// Handler streams board mutations via Server-Sent Events
type Handler struct {
	feed      Subscriber
	heartbeat time.Duration
	log       *slog.Logger
}

// New creates a new stream handler
func New(feed Subscriber, heartbeat time.Duration, log *slog.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{feed: feed, heartbeat: heartbeat, log: log}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/feed", h.HandleFeed)
}

// HandleFeed writes one SSE event per committed mutation until the client
// goes away. Idle connections get a heartbeat comment.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.feed.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	h.log.Info("feed_sse_opened", "remote", r.RemoteAddr)
	defer h.log.Info("feed_sse_closed", "remote", r.RemoteAddr)

	if err := utils.SendSSEEvent(w, flusher, "", "status", map[string]string{"message": "stream established"}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, event.ID, string(event.Type), event); err != nil {
				h.log.Debug("feed_sse_write_failed", "error", err)
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat "+t.UTC().Format(time.RFC3339)); err != nil {
				return
			}
		}
	}
}
