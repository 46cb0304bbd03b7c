package message

import "time"

// EventType names a committed mutation.
type EventType string

const (
	EventCreated EventType = "message.created"
	EventUpdated EventType = "message.updated"
	EventDeleted EventType = "message.deleted"
	EventLiked   EventType = "message.liked"
)

// Event describes a mutation after it has been applied to the store.
// Message carries the post-mutation state; it is nil for deletions.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	MessageID uint64    `json:"messageId"`
	Message   *Message  `json:"message,omitempty"`
	Actor     Principal `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}
