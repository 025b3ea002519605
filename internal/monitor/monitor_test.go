package monitor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	buckets []string
	points  []*influxdb2_write.Point
	err     error
}

func (w *fakeWriter) WritePoint(bucket string, p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = append(w.buckets, bucket)
	w.points = append(w.points, p)
	return w.err
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

func TestSnapshot_BeforePublish(t *testing.T) {
	s := NewService(Dependencies{})
	st, ok := s.Snapshot()
	assert.False(t, ok)
	assert.Positive(t, st.Goroutines)
	assert.Equal(t, DefaultInterval, s.deps.Interval)
}

func TestPublish(t *testing.T) {
	s := NewService(Dependencies{})
	s.Publish(Status{Dataset: "d1", FrameID: "f3", Objects: 12, UndoDepth: 2})

	st, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "f3", st.FrameID)
	assert.Equal(t, 12, st.Objects)
	assert.False(t, st.Time.IsZero())
}

func TestPoint(t *testing.T) {
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p := Point(Status{Time: at, Dataset: "d1", Objects: 5, UndoDepth: 1})

	line := influxdb2_write.PointToLineProtocol(p, time.Second)
	assert.Contains(t, line, "session_status,dataset=d1 ")
	assert.Contains(t, line, "objects=5i")
	assert.Contains(t, line, "undo_depth=1i")
}

func TestStartStop_WritesStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := &fakeWriter{err: errors.New("offline")}
	s := NewService(Dependencies{
		Interval:   10 * time.Millisecond,
		StatusPath: path,
		Writer:     w,
		Bucket:     "editor_performance",
	})
	s.Publish(Status{Dataset: "d1", Frames: 3})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return w.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "d1", st.Dataset)
	assert.Equal(t, 3, st.Frames)
	assert.Equal(t, "editor_performance", w.buckets[0])
}

func TestTick_SkipsUntilPublished(t *testing.T) {
	w := &fakeWriter{}
	s := NewService(Dependencies{Writer: w})
	s.tick()
	assert.Equal(t, 0, w.count())
}
