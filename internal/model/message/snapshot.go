package message

import "time"

// Snapshot is a point-in-time copy of the whole store, used by persistence
// backends to survive process restarts.
type Snapshot struct {
	NextID       uint64               `json:"nextId"`
	Messages     []Message            `json:"messages"`
	AuthorCounts map[Principal]uint64 `json:"authorCounts"`
	TakenAt      time.Time            `json:"takenAt"`
}

// SnapshotInfo identifies a persisted snapshot.
type SnapshotInfo struct {
	ID       string    `json:"id"`
	TakenAt  time.Time `json:"takenAt"`
	Messages int       `json:"messages"`
	Backend  string    `json:"backend"`
}
