package message

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

// Publisher receives an event for every committed mutation. Publish is called
// while the store's write lock is held, so implementations must not block.
type Publisher interface {
	Publish(event message.Event)
}

// Recorder observes the outcome of each store operation.
type Recorder interface {
	RecordOperation(op, outcome string)
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source. The clock must never move backwards.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher attaches a mutation event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder attaches an operation outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service is the in-memory message store. A single RWMutex guards the message
// map, the id counter and the per-author counters, so multi-map updates are
// never observed half-applied.
type Service struct {
	mu           sync.RWMutex
	messages     map[uint64]*message.Message
	nextID       uint64
	authorCounts map[message.Principal]uint64

	now       func() time.Time
	publisher Publisher
	recorder  Recorder
}

// NewService returns an empty store whose first message id is 1.
func NewService(opts ...Option) *Service {
	s := &Service{
		messages:     make(map[uint64]*message.Message),
		nextID:       1,
		authorCounts: make(map[message.Principal]uint64),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateMessage stores a new message authored by caller. When parentID is set
// the new id is appended to the parent's replies.
func (s *Service) CreateMessage(_ context.Context, content string, parentID *uint64, caller message.Principal) (created message.Message, err error) {
	defer func() { s.record("create", err) }()

	if strings.TrimSpace(content) == "" {
		return message.Message{}, errEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var parent *message.Message
	if parentID != nil {
		p, ok := s.messages[*parentID]
		if !ok {
			return message.Message{}, errParentNotFound
		}
		parent = p
	}

	id := s.nextID
	s.nextID++

	msg := &message.Message{
		ID:        id,
		Author:    caller,
		Content:   content,
		CreatedAt: s.now(),
		Likes:     0,
		Replies:   []uint64{},
	}
	if parentID != nil {
		pid := *parentID
		msg.ParentID = &pid
		parent.Replies = append(parent.Replies, id)
	}

	s.authorCounts[caller]++
	s.messages[id] = msg

	created = msg.Clone()
	s.publish(message.EventCreated, id, &created, caller)
	return created, nil
}

// GetMessage returns a copy of the message with the given id.
func (s *Service) GetMessage(_ context.Context, id uint64) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		s.record("get", ErrNotFound)
		return message.Message{}, ErrNotFound
	}
	s.record("get", nil)
	return msg.Clone(), nil
}

// UpdateMessage replaces the content of a message owned by caller.
func (s *Service) UpdateMessage(_ context.Context, id uint64, newContent string, caller message.Principal) (updated message.Message, err error) {
	defer func() { s.record("update", err) }()

	if strings.TrimSpace(newContent) == "" {
		return message.Message{}, errEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return message.Message{}, ErrNotFound
	}
	if msg.Author != caller {
		return message.Message{}, errUpdateDenied
	}

	now := s.now()
	msg.Content = newContent
	msg.UpdatedAt = &now

	updated = msg.Clone()
	s.publish(message.EventUpdated, id, &updated, caller)
	return updated, nil
}

// DeleteMessage removes a message owned by caller. Replies of the deleted
// message are kept; their ParentID keeps pointing at the removed id.
func (s *Service) DeleteMessage(_ context.Context, id uint64, caller message.Principal) (err error) {
	defer func() { s.record("delete", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Author != caller {
		return errDeleteDenied
	}

	if msg.ParentID != nil {
		if parent, ok := s.messages[*msg.ParentID]; ok {
			parent.Replies = slices.DeleteFunc(parent.Replies, func(replyID uint64) bool {
				return replyID == id
			})
		}
	}

	delete(s.messages, id)
	s.decrementAuthor(msg.Author)

	s.publish(message.EventDeleted, id, nil, caller)
	return nil
}

// LikeMessage adds one like. Anyone may like any message, any number of times.
func (s *Service) LikeMessage(_ context.Context, id uint64) (err error) {
	defer func() { s.record("like", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Likes++

	liked := msg.Clone()
	s.publish(message.EventLiked, id, &liked, "")
	return nil
}

// AuthorMessageCount returns how many stored messages principal has authored.
func (s *Service) AuthorMessageCount(_ context.Context, principal message.Principal) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorCounts[principal]
}

// Len returns the number of stored messages.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// decrementAuthor lowers the author's counter, never below zero. Entries that
// reach zero are dropped; lookups of a missing author read as zero.
func (s *Service) decrementAuthor(author message.Principal) {
	count, ok := s.authorCounts[author]
	if !ok {
		return
	}
	if count <= 1 {
		delete(s.authorCounts, author)
		return
	}
	s.authorCounts[author] = count - 1
}

func (s *Service) publish(kind message.EventType, id uint64, msg *message.Message, actor message.Principal) {
	if s.publisher == nil {
		return
	}
	if msg != nil {
		c := msg.Clone()
		msg = &c
	}
	s.publisher.Publish(message.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		MessageID: id,
		Message:   msg,
		Actor:     actor,
		At:        s.now(),
	})
}

func (s *Service) record(op string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordOperation(op, outcome(err))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
