package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/internal/service/message"
)

func ids(msgs []model.Message) []uint64 {
	out := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

// seed creates n top-level messages one second apart.
func seed(t *testing.T, n int) (*message.Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	svc := message.NewService(message.WithClock(clock.Now))
	for i := 0; i < n; i++ {
		_, err := svc.CreateMessage(context.Background(), "post", nil, alice)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	return svc, clock
}

func TestGetMessagesPagination(t *testing.T) {
	svc, _ := seed(t, 5)
	ctx := context.Background()

	first, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 4}, ids(first.Messages))
	assert.Equal(t, uint64(5), first.Total)
	assert.Equal(t, uint32(3), first.TotalPages)
	assert.Equal(t, uint32(1), first.Page)
	assert.False(t, first.HasPrevious)
	assert.True(t, first.HasNext)

	last, err := svc.GetMessages(ctx, model.PageRequest{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids(last.Messages))
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrevious)
}

func TestGetMessagesOutOfRangePage(t *testing.T) {
	svc, _ := seed(t, 3)

	page, err := svc.GetMessages(context.Background(), model.PageRequest{Page: 7, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.NotNil(t, page.Messages)
	assert.Equal(t, uint64(3), page.Total)
	assert.Equal(t, uint32(2), page.TotalPages)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrevious)
}

func TestGetMessagesEmptyStore(t *testing.T) {
	svc := message.NewService()

	page, err := svc.GetMessages(context.Background(), model.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrevious)
}

func TestGetMessagesRejectsZeroLimitAndPage(t *testing.T) {
	svc, _ := seed(t, 1)
	ctx := context.Background()

	_, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 0})
	assert.ErrorIs(t, err, message.ErrValidation)

	_, err = svc.GetMessages(ctx, model.PageRequest{Page: 0, Limit: 1})
	assert.ErrorIs(t, err, message.ErrValidation)
}

func TestGetMessagesExcludesReplies(t *testing.T) {
	svc, _ := seed(t, 2)
	ctx := context.Background()

	_, err := svc.CreateMessage(ctx, "reply", ptr(1), bob)
	require.NoError(t, err)

	page, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1}, ids(page.Messages))
	assert.Equal(t, uint64(2), page.Total)
}

func TestGetMessagesSortOrders(t *testing.T) {
	svc, _ := seed(t, 4)
	ctx := context.Background()

	for i, likes := range map[uint64]int{1: 1, 2: 3, 3: 3, 4: 0} {
		for n := 0; n < likes; n++ {
			require.NoError(t, svc.LikeMessage(ctx, i))
		}
	}

	tests := []struct {
		sortBy string
		want   []uint64
	}{
		{sortBy: "", want: []uint64{4, 3, 2, 1}},
		{sortBy: model.SortNewest, want: []uint64{4, 3, 2, 1}},
		{sortBy: "bogus", want: []uint64{4, 3, 2, 1}},
		{sortBy: model.SortOldest, want: []uint64{1, 2, 3, 4}},
		{sortBy: model.SortPopular, want: []uint64{2, 3, 1, 4}},
	}
	for _, tt := range tests {
		t.Run("sort="+tt.sortBy, func(t *testing.T) {
			page, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 10, SortBy: tt.sortBy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Messages))
		})
	}
}

func TestGetMessagesTieBreakOnEqualTimestamps(t *testing.T) {
	svc := message.NewService(message.WithClock(newFakeClock().Now))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateMessage(ctx, "same instant", nil, alice)
		require.NoError(t, err)
	}

	newest, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2, 1}, ids(newest.Messages))

	oldest, err := svc.GetMessages(ctx, model.PageRequest{Page: 1, Limit: 10, SortBy: model.SortOldest})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids(oldest.Messages))
}

func TestGetMessageThreadOneLevel(t *testing.T) {
	svc := message.NewService()
	ctx := context.Background()

	root, err := svc.CreateMessage(ctx, "root", nil, alice)
	require.NoError(t, err)
	a, err := svc.CreateMessage(ctx, "a", &root.ID, bob)
	require.NoError(t, err)
	b, err := svc.CreateMessage(ctx, "b", &root.ID, alice)
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, "nested", &a.ID, bob)
	require.NoError(t, err)

	thread, err := svc.GetMessageThread(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{root.ID, a.ID, b.ID}, ids(thread))

	require.NoError(t, svc.DeleteMessage(ctx, a.ID, bob))
	thread, err = svc.GetMessageThread(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{root.ID, b.ID}, ids(thread))
}

func TestGetStats(t *testing.T) {
	clock := newFakeClock()
	svc := message.NewService(message.WithClock(clock.Now))
	ctx := context.Background()

	for _, author := range []model.Principal{alice, alice, bob} {
		_, err := svc.CreateMessage(ctx, "hi", nil, author)
		require.NoError(t, err)
	}

	stats := svc.GetStats(ctx)
	assert.Equal(t, model.Stats{TotalMessages: 3, TotalAuthors: 2, MessagesToday: 3}, stats)
}

func TestGetStatsMessagesTodayWindow(t *testing.T) {
	clock := newFakeClock()
	svc := message.NewService(message.WithClock(clock.Now))
	ctx := context.Background()

	_, err := svc.CreateMessage(ctx, "old", nil, alice)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.CreateMessage(ctx, "recent", nil, bob)
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	stats := svc.GetStats(ctx)
	assert.Equal(t, uint64(2), stats.TotalMessages)
	assert.Equal(t, uint64(1), stats.MessagesToday, "exactly 24h old is outside the window")

	clock.Advance(time.Hour)
	assert.Zero(t, svc.GetStats(ctx).MessagesToday)
}
