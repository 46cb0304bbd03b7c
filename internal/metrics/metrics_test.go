package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-board/backend/internal/metrics"
)

func TestRecordOperation(t *testing.T) {
	m := metrics.New()

	m.RecordOperation("create", "ok")
	m.RecordOperation("create", "ok")
	m.RecordOperation("create", "validation")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations().WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues("create", "validation")))
}

func TestHandlerExposesBoardMetrics(t *testing.T) {
	m := metrics.New()
	m.TrackStored(func() int { return 7 })
	m.RecordSnapshot(nil)
	m.RecordSnapshot(errors.New("disk full"))
	m.FeedDropped()
	m.RecordOperation("like", "not_found")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "board_messages_stored 7")
	assert.Contains(t, text, `board_snapshots_total{outcome="error"} 1`)
	assert.Contains(t, text, "board_feed_dropped_total 1")
	assert.Contains(t, text, `board_operations_total{op="like",outcome="not_found"} 1`)
}
