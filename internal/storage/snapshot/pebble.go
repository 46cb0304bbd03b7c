package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

const BackendPebble = "pebble"

var (
	keyPrefix = []byte("snapshot/")
	// '0' is the byte after '/', so it bounds every snapshot/ key.
	keyUpper = []byte("snapshot0")
)

// PebbleStore keeps snapshots in a local Pebble database, one key per snapshot.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the database directory at path.
func OpenPebble(path string) (*PebbleStore, error) {
	if path == "" {
		return nil, errors.New("snapshot: pebble path is required")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open pebble %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func snapshotKey(id string) []byte {
	return append(append([]byte(nil), keyPrefix...), id...)
}

func (s *PebbleStore) Save(ctx context.Context, snap message.Snapshot) (message.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return message.SnapshotInfo{}, err
	}
	id, err := NewID(snap.TakenAt)
	if err != nil {
		return message.SnapshotInfo{}, err
	}
	payload, err := encode(snap)
	if err != nil {
		return message.SnapshotInfo{}, err
	}
	if err := s.db.Set(snapshotKey(id), payload, pebble.Sync); err != nil {
		return message.SnapshotInfo{}, fmt.Errorf("snapshot: pebble set: %w", err)
	}
	return infoFor(id, BackendPebble, snap), nil
}

func (s *PebbleStore) Latest(ctx context.Context) (message.Snapshot, message.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, err
	}
	iter, err := s.newIter()
	if err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return message.Snapshot{}, message.SnapshotInfo{}, fmt.Errorf("snapshot: pebble iterate: %w", err)
		}
		return message.Snapshot{}, message.SnapshotInfo{}, ErrNoSnapshot
	}

	id := string(iter.Key()[len(keyPrefix):])
	snap, err := decode(iter.Value())
	if err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, err
	}
	return snap, infoFor(id, BackendPebble, snap), nil
}

func (s *PebbleStore) Prune(ctx context.Context, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	iter, err := s.newIter()
	if err != nil {
		return 0, err
	}

	var stale [][]byte
	seen := 0
	for valid := iter.Last(); valid; valid = iter.Prev() {
		seen++
		if seen > keep {
			stale = append(stale, append([]byte(nil), iter.Key()...))
		}
	}
	iterErr := iter.Error()
	if err := iter.Close(); err != nil && iterErr == nil {
		iterErr = err
	}
	if iterErr != nil {
		return 0, fmt.Errorf("snapshot: pebble iterate: %w", iterErr)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, fmt.Errorf("snapshot: pebble delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("snapshot: pebble commit: %w", err)
	}
	return len(stale), nil
}

func (s *PebbleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *PebbleStore) newIter() (*pebble.Iterator, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: pebble iterator: %w", err)
	}
	return iter, nil
}
