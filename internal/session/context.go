// Package session holds the state of the running editing session that log
// records and telemetry are tagged with.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// Context holds the current dataset and frame. It is written by the command
// loop and read from logging handlers on other goroutines.
type Context struct {
	mu        sync.RWMutex
	dataset   string
	startedAt time.Time
	frameID   string
	undoDepth int
	storage   string
}

// NewContext creates a new Context with default values
func NewContext(startedAt time.Time) *Context {
	return &Context{
		dataset:   "No dataset loaded",
		startedAt: startedAt,
	}
}

// Dataset returns the current dataset name.
func (c *Context) Dataset() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataset
}

// SetDataset sets the dataset name.
func (c *Context) SetDataset(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = name
}

// FrameID returns the id of the loaded frame, or "".
func (c *Context) FrameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameID
}

// SetStorage records the storage backend type in use.
func (c *Context) SetStorage(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage = kind
}

// Update records the loaded frame and history depth after a command ran.
func (c *Context) Update(frameID string, undoDepth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameID = frameID
	c.undoDepth = undoDepth
}

// StartedAt returns the session start time.
func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// Attrs returns the attributes added to every log record. It has the
// logging.ContextProvider signature.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{
		slog.String("dataset", c.dataset),
		slog.Int("undoDepth", c.undoDepth),
	}
	if c.frameID != "" {
		attrs = append(attrs, slog.String("frame", c.frameID))
	}
	if c.storage != "" {
		attrs = append(attrs, slog.String("storage", c.storage))
	}
	return attrs
}
