package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

func TestInspectReportsDerivedStats(t *testing.T) {
	ctx := context.Background()
	taken := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	parent := uint64(1)

	store := snapshot.NewMemoryStore()
	_, err := store.Save(ctx, model.Snapshot{
		NextID: 5,
		Messages: []model.Message{
			{ID: 1, Author: "alice", Content: "root", CreatedAt: taken.Add(-time.Hour), Replies: []uint64{3}},
			{ID: 3, Author: "bob", Content: "reply", CreatedAt: taken.Add(-48 * time.Hour), ParentID: &parent},
			{ID: 4, Author: "carol", Content: "late", CreatedAt: taken.Add(-time.Minute)},
		},
		AuthorCounts: map[model.Principal]uint64{"alice": 1, "bob": 2, "ghost": 3},
		TakenAt:      taken,
	})
	require.NoError(t, err)

	r, err := inspect(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.NextID)
	assert.Equal(t, uint64(2), r.TopLevel)
	assert.Equal(t, model.Stats{TotalMessages: 3, TotalAuthors: 3, MessagesToday: 2}, r.Stats)
	assert.Equal(t, map[model.Principal][2]uint64{
		"bob":   {2, 1},
		"ghost": {3, 0},
		"carol": {0, 1},
	}, r.CountMismatch)
}

func TestInspectConsistentCounters(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	_, err := store.Save(ctx, model.Snapshot{
		NextID:       2,
		Messages:     []model.Message{{ID: 1, Author: "alice", Content: "hi"}},
		AuthorCounts: map[model.Principal]uint64{"alice": 1},
	})
	require.NoError(t, err)

	r, err := inspect(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, r.CountMismatch)
}

func TestInspectEmptyStore(t *testing.T) {
	_, err := inspect(context.Background(), snapshot.NewMemoryStore())
	assert.True(t, errors.Is(err, snapshot.ErrNoSnapshot))
}

func TestRunExportWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	_, err := store.Save(ctx, model.Snapshot{NextID: 2, Messages: []model.Message{{ID: 1, Author: "alice", Content: "hi"}}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runExport(ctx, store, &buf))

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, uint64(2), snap.NextID)
	assert.Len(t, snap.Messages, 1)
}
