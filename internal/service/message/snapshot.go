package message

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

// Snapshot copies the full store state, messages ordered by id.
func (s *Service) Snapshot(_ context.Context) message.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]message.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		msgs = append(msgs, msg.Clone())
	}
	slices.SortFunc(msgs, func(a, b message.Message) int { return cmp.Compare(a.ID, b.ID) })

	return message.Snapshot{
		NextID:       s.nextID,
		Messages:     msgs,
		AuthorCounts: maps.Clone(s.authorCounts),
		TakenAt:      s.now(),
	}
}

// Restore replaces the store state with snap. When the snapshot carries no
// author counters they are rebuilt from its messages; counters that disagree
// with the messages, or reply links that do not match parent ids, reject the
// whole snapshot and leave the store untouched.
func (s *Service) Restore(_ context.Context, snap message.Snapshot) error {
	if snap.NextID == 0 {
		return &Error{Kind: KindValidation, Message: "snapshot next id must be at least 1"}
	}

	msgs := make(map[uint64]*message.Message, len(snap.Messages))
	for _, msg := range snap.Messages {
		if msg.ID == 0 || msg.ID >= snap.NextID {
			return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message id %d outside [1, %d)", msg.ID, snap.NextID)}
		}
		if _, dup := msgs[msg.ID]; dup {
			return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message id %d is duplicated", msg.ID)}
		}
		c := msg.Clone()
		msgs[msg.ID] = &c
	}
	if err := checkLinks(msgs, snap.NextID); err != nil {
		return err
	}

	counts := CountAuthors(snap.Messages)
	if snap.AuthorCounts != nil && !sameCounts(snap.AuthorCounts, counts) {
		return &Error{Kind: KindValidation, Message: "snapshot author counters do not match its messages"}
	}

	s.mu.Lock()
	s.messages = msgs
	s.nextID = snap.NextID
	s.authorCounts = counts
	s.mu.Unlock()
	return nil
}

// checkLinks verifies that every reply id names a stored message whose
// ParentID points back, and that every stored parent lists its replies.
// A ParentID whose message was deleted is kept as is.
func checkLinks(msgs map[uint64]*message.Message, nextID uint64) error {
	for id, msg := range msgs {
		seen := make(map[uint64]struct{}, len(msg.Replies))
		for _, replyID := range msg.Replies {
			if _, dup := seen[replyID]; dup {
				return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message %d lists reply %d twice", id, replyID)}
			}
			seen[replyID] = struct{}{}

			reply, ok := msgs[replyID]
			if !ok || reply.ParentID == nil || *reply.ParentID != id {
				return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message %d lists reply %d that does not point back", id, replyID)}
			}
		}

		if msg.ParentID == nil {
			continue
		}
		pid := *msg.ParentID
		if pid == 0 || pid == id || pid >= nextID {
			return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message %d has invalid parent %d", id, pid)}
		}
		if parent, ok := msgs[pid]; ok && !slices.Contains(parent.Replies, id) {
			return &Error{Kind: KindValidation, Message: fmt.Sprintf("snapshot message %d is missing from the replies of %d", id, pid)}
		}
	}
	return nil
}

// sameCounts compares counters, treating a zero entry as absent.
func sameCounts(stored, actual map[message.Principal]uint64) bool {
	for author, n := range stored {
		if actual[author] != n {
			return false
		}
	}
	for author, n := range actual {
		if stored[author] != n {
			return false
		}
	}
	return true
}

// CountAuthors rebuilds per-author message counters from scratch.
func CountAuthors(msgs []message.Message) map[message.Principal]uint64 {
	counts := make(map[message.Principal]uint64)
	for _, msg := range msgs {
		counts[msg.Author]++
	}
	return counts
}
