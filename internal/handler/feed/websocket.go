package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Subscriber 提供留言变更事件的订阅
type Subscriber interface {
	Subscribe() (<-chan message.Event, func())
}

// WebSocketHandler 通过WebSocket推送留言变更事件
type WebSocketHandler struct {
	feed     Subscriber
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(feed Subscriber, log *slog.Logger) *WebSocketHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/feed", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接；所有写操作都在当前goroutine完成
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed_ws_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe()
	defer cancel()

	h.log.Info("feed_ws_connected", "remote", r.RemoteAddr)
	defer h.log.Info("feed_ws_closed", "remote", r.RemoteAddr)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// 客户端不发送业务消息，读循环只负责处理 pong 与关闭帧
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("feed_ws_read_failed", "error", err)
				}
				return
			}
		}
	}()

	if err := h.write(conn, outgoingMessage{Type: "connected", Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			msg := outgoingMessage{Type: string(event.Type), Data: event, Timestamp: event.At.Unix()}
			if err := h.write(conn, msg); err != nil {
				h.log.Debug("feed_ws_write_failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
