// Package monitor periodically records the state of the editing session to a
// status file and to the performance bucket.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = 10 * time.Second

// Status is a snapshot of the session published by the command loop.
type Status struct {
	Time        time.Time `json:"time"`
	Dataset     string    `json:"dataset"`
	FrameID     string    `json:"frameId"`
	Frames      int       `json:"frames"`
	DirtyFrames int       `json:"dirtyFrames"`
	Objects     int       `json:"objects"`
	Tracks      int       `json:"tracks"`
	UndoDepth   int       `json:"undoDepth"`
	RedoDepth   int       `json:"redoDepth"`

	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heapAllocMb"`
}

// PointWriter receives one performance point per tick. *influx.Manager
// satisfies it.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	Interval   time.Duration
	StatusPath string      // rewritten every tick; empty disables the file
	Writer     PointWriter // optional
	Bucket     string
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	last      Status
	published bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Publish replaces the snapshot written on the next tick. The editor is
// single-threaded, so the command loop hands over copies instead of the
// monitor reading it.
func (s *Service) Publish(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = st
	s.published = true
}

// Snapshot returns the last published status with runtime figures filled in.
// ok is false before the first Publish.
func (s *Service) Snapshot() (st Status, ok bool) {
	s.mu.RLock()
	st, ok = s.last, s.published
	s.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	st.Time = time.Now()
	st.Goroutines = runtime.NumGoroutine()
	st.HeapAllocMB = float64(mem.HeapAlloc) / (1 << 20)
	return st, ok
}

// Point converts a status into a performance point.
func Point(st Status) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("session_status").
		AddField("frames", st.Frames).
		AddField("dirty_frames", st.DirtyFrames).
		AddField("objects", st.Objects).
		AddField("tracks", st.Tracks).
		AddField("undo_depth", st.UndoDepth).
		AddField("redo_depth", st.RedoDepth).
		AddField("goroutines", st.Goroutines).
		AddField("heap_alloc_mb", st.HeapAllocMB).
		SetTime(st.Time)
	if st.Dataset != "" {
		p.AddTag("dataset", st.Dataset)
	}
	return p
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	return nil
}

func (s *Service) tick() {
	st, ok := s.Snapshot()
	if !ok {
		return
	}
	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Writer != nil {
		if err := s.deps.Writer.WritePoint(s.deps.Bucket, Point(st)); err != nil {
			s.deps.Logger.Debug("Status point dropped", "error", err)
		}
	}
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
