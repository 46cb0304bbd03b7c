package snapshot

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

const BackendMemory = "memory"

type memoryEntry struct {
	id      string
	payload []byte
}

// MemoryStore keeps encoded snapshots in process. Useful for tests and for
// running without a disk.
type MemoryStore struct {
	mu      sync.Mutex
	entries []memoryEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, snap message.Snapshot) (message.SnapshotInfo, error) {
	id, err := NewID(snap.TakenAt)
	if err != nil {
		return message.SnapshotInfo{}, err
	}
	payload, err := encode(snap)
	if err != nil {
		return message.SnapshotInfo{}, err
	}

	s.mu.Lock()
	s.entries = append(s.entries, memoryEntry{id: id, payload: payload})
	s.mu.Unlock()
	return infoFor(id, BackendMemory, snap), nil
}

func (s *MemoryStore) Latest(_ context.Context) (message.Snapshot, message.SnapshotInfo, error) {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return message.Snapshot{}, message.SnapshotInfo{}, ErrNoSnapshot
	}
	last := s.entries[len(s.entries)-1]
	s.mu.Unlock()

	snap, err := decode(last.payload)
	if err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, err
	}
	return snap, infoFor(last.id, BackendMemory, snap), nil
}

func (s *MemoryStore) Prune(_ context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) <= keep {
		return 0, nil
	}
	removed := len(s.entries) - keep
	s.entries = append([]memoryEntry(nil), s.entries[removed:]...)
	return removed, nil
}

// Len reports how many snapshots are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
