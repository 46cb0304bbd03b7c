package message

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

const day = 24 * time.Hour

// GetMessages returns one page of top-level messages. Page is 1-indexed and a
// page past the end yields an empty slice with accurate metadata.
func (s *Service) GetMessages(_ context.Context, req message.PageRequest) (page message.Page, err error) {
	defer func() { s.record("list", err) }()

	if req.Limit == 0 {
		return message.Page{}, errZeroLimit
	}
	if req.Page == 0 {
		return message.Page{}, errZeroPage
	}

	s.mu.RLock()
	top := make([]*message.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.IsTopLevel() {
			top = append(top, msg)
		}
	}
	slices.SortFunc(top, comparator(req.SortBy))

	total := uint64(len(top))
	limit := uint64(req.Limit)
	skip := uint64(req.Page-1) * limit

	items := make([]message.Message, 0, min(limit, total))
	for i := skip; i < total && i < skip+limit; i++ {
		items = append(items, top[i].Clone())
	}
	s.mu.RUnlock()

	totalPages := uint32((total + limit - 1) / limit)
	return message.Page{
		Messages:    items,
		Total:       total,
		Page:        req.Page,
		TotalPages:  totalPages,
		HasNext:     req.Page < totalPages,
		HasPrevious: req.Page > 1,
	}, nil
}

// comparator orders listings. Ties on the primary key fall back to id so the
// order is deterministic: newer ids first for "newest", older ids first otherwise.
func comparator(sortBy string) func(a, b *message.Message) int {
	switch sortBy {
	case message.SortOldest:
		return func(a, b *message.Message) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	case message.SortPopular:
		return func(a, b *message.Message) int {
			if c := cmp.Compare(b.Likes, a.Likes); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	default:
		return func(a, b *message.Message) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		}
	}
}

// GetMessageThread returns the message followed by its direct replies in reply
// order. Reply ids whose message no longer exists are skipped.
func (s *Service) GetMessageThread(_ context.Context, id uint64) (thread []message.Message, err error) {
	defer func() { s.record("thread", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}

	thread = make([]message.Message, 0, 1+len(root.Replies))
	thread = append(thread, root.Clone())
	for _, replyID := range root.Replies {
		if reply, ok := s.messages[replyID]; ok {
			thread = append(thread, reply.Clone())
		}
	}
	return thread, nil
}

// GetStats scans the store. Authors are counted from the stored messages
// rather than from the maintained per-author counters.
func (s *Service) GetStats(_ context.Context) message.Stats {
	defer s.record("stats", nil)

	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	authors := make(map[message.Principal]struct{})
	var today uint64
	for _, msg := range s.messages {
		authors[msg.Author] = struct{}{}
		if now.Sub(msg.CreatedAt) < day {
			today++
		}
	}

	return message.Stats{
		TotalMessages: uint64(len(s.messages)),
		TotalAuthors:  uint64(len(authors)),
		MessagesToday: today,
	}
}
