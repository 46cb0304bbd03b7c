package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

// Source produces and restores store state.
type Source interface {
	Snapshot(ctx context.Context) message.Snapshot
	Restore(ctx context.Context, snap message.Snapshot) error
}

// Recorder counts snapshot attempts.
type Recorder interface {
	RecordSnapshot(err error)
}

// ErrBusy is returned by SaveNow when another save is still running.
var ErrBusy = errors.New("snapshot already in progress")

// Config controls scheduling and retention.
type Config struct {
	Cron   string
	Retain int
}

// Scheduler saves snapshots on a cron schedule and on demand.
type Scheduler struct {
	cfg      Config
	source   Source
	store    snapshot.Store
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewScheduler validates the cron expression. An empty Cron disables the
// periodic loop; SaveNow still works.
func NewScheduler(cfg Config, source Source, store snapshot.Store, recorder Recorder, log *slog.Logger) (*Scheduler, error) {
	if source == nil || store == nil {
		return nil, errors.New("snapshot: scheduler needs a source and a store")
	}
	if cfg.Cron != "" && !gronx.IsValid(cfg.Cron) {
		return nil, fmt.Errorf("snapshot: invalid cron expression %q", cfg.Cron)
	}
	if cfg.Retain < 1 {
		cfg.Retain = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		source:   source,
		store:    store,
		recorder: recorder,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RestoreLatest loads the newest persisted snapshot into the source.
// It reports false when nothing has been saved yet.
func (s *Scheduler) RestoreLatest(ctx context.Context) (message.SnapshotInfo, bool, error) {
	snap, info, err := s.store.Latest(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return message.SnapshotInfo{}, false, nil
	}
	if err != nil {
		return message.SnapshotInfo{}, false, err
	}
	if err := s.source.Restore(ctx, snap); err != nil {
		return message.SnapshotInfo{}, false, fmt.Errorf("restore snapshot %s: %w", info.ID, err)
	}
	return info, true, nil
}

// SaveNow persists the current state and prunes old snapshots. Concurrent
// calls do not overlap; the loser gets ErrBusy.
func (s *Scheduler) SaveNow(ctx context.Context) (info message.SnapshotInfo, err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return message.SnapshotInfo{}, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if s.recorder != nil {
			s.recorder.RecordSnapshot(err)
		}
	}()

	info, err = s.store.Save(ctx, s.source.Snapshot(ctx))
	if err != nil {
		return message.SnapshotInfo{}, err
	}

	removed, err := s.store.Prune(ctx, s.cfg.Retain)
	if err != nil {
		// The new snapshot is already durable; pruning is retried next run.
		s.log.Warn("snapshot_prune_failed", "error", err)
		err = nil
	} else if removed > 0 {
		s.log.Debug("snapshot_pruned", "removed", removed, "retain", s.cfg.Retain)
	}

	s.log.Info("snapshot_saved", "id", info.ID, "messages", info.Messages, "backend", info.Backend)
	return info, nil
}

// Run drives the cron loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cfg.Cron == "" {
		s.log.Info("snapshot_schedule_disabled")
		return
	}
	s.log.Info("snapshot_schedule_enabled", "cron", s.cfg.Cron, "retain", s.cfg.Retain)

	for {
		next, err := gronx.NextTickAfter(s.cfg.Cron, s.now(), false)
		if err != nil {
			s.log.Error("snapshot_nexttick_failed", "cron", s.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			if _, err := s.SaveNow(ctx); err != nil && !errors.Is(err, ErrBusy) {
				s.log.Error("snapshot_run_failed", "error", err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
