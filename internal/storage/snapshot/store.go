// Package snapshot persists point-in-time copies of the message store so the
// board survives restarts. Backends are interchangeable behind Store.
package snapshot

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

// ErrNoSnapshot is returned by Latest when nothing has been saved yet.
var ErrNoSnapshot = errors.New("snapshot: none saved")

// Store persists snapshots. Snapshot ids sort lexically in save order.
type Store interface {
	Save(ctx context.Context, snap message.Snapshot) (message.SnapshotInfo, error)
	Latest(ctx context.Context) (message.Snapshot, message.SnapshotInfo, error)
	// Prune deletes all but the newest keep snapshots and reports how many went.
	Prune(ctx context.Context, keep int) (int, error)
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID for a snapshot taken at t. Ids minted within the same
// millisecond still increase.
func NewID(t time.Time) (string, error) {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", fmt.Errorf("snapshot: new id: %w", err)
	}
	return id.String(), nil
}

func encode(snap message.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (message.Snapshot, error) {
	var snap message.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return message.Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return snap, nil
}

func infoFor(id, backend string, snap message.Snapshot) message.SnapshotInfo {
	return message.SnapshotInfo{
		ID:       id,
		TakenAt:  snap.TakenAt,
		Messages: len(snap.Messages),
		Backend:  backend,
	}
}
