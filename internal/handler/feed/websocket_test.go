package feed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
	feedService "github.com/zhouzirui/z-board/backend/internal/service/feed"
)

func TestWebSocketFeedDeliversEvents(t *testing.T) {
	hub := feedService.NewHub(8, nil)
	r := chi.NewRouter()
	NewWebSocketHandler(hub, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello outgoingMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)
	assert.Equal(t, 1, hub.Subscribers())

	hub.Publish(message.Event{
		ID:        "evt-1",
		Type:      message.EventLiked,
		MessageID: 7,
		At:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	var got struct {
		Type      string        `json:"type"`
		Data      message.Event `json:"data"`
		Timestamp int64         `json:"timestamp"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, string(message.EventLiked), got.Type)
	assert.Equal(t, "evt-1", got.Data.ID)
	assert.Equal(t, uint64(7), got.Data.MessageID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
