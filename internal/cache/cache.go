package cache

import (
	"sync"

	"github.com/basicai/pceditor/pkg/core"
)

// ClassCache holds the label classes of the current task, looked up either by
// id or by name.
type ClassCache struct {
	m      sync.Mutex
	byID   map[string]core.ClassType
	byName map[string]core.ClassType
	order  []string
}

func NewClassCache() *ClassCache {
	return &ClassCache{
		m:      sync.Mutex{},
		byID:   make(map[string]core.ClassType),
		byName: make(map[string]core.ClassType),
	}
}

func (c *ClassCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.byID = make(map[string]core.ClassType)
	c.byName = make(map[string]core.ClassType)
	c.order = nil
}

// Set replaces the cached classes.
func (c *ClassCache) Set(classes []core.ClassType) {
	c.m.Lock()
	defer c.m.Unlock()
	c.byID = make(map[string]core.ClassType, len(classes))
	c.byName = make(map[string]core.ClassType, len(classes))
	c.order = c.order[:0]
	for _, cl := range classes {
		c.byID[cl.ID] = cl
		c.byName[cl.Name] = cl
		c.order = append(c.order, cl.ID)
	}
}

// Get resolves a class by id first, then by name.
func (c *ClassCache) Get(ref string) (core.ClassType, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if cl, ok := c.byID[ref]; ok {
		return cl, true
	}
	if cl, ok := c.byName[ref]; ok {
		return cl, true
	}
	return core.ClassType{}, false
}

// All returns the classes in the order they were set.
func (c *ClassCache) All() []core.ClassType {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]core.ClassType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Color returns the configured color for the class, or core.DefaultColor.
func (c *ClassCache) Color(ref string) string {
	cl, ok := c.Get(ref)
	if !ok || cl.Color == "" {
		return core.DefaultColor
	}
	return cl.Color
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

// Next returns the current value and increments the counter.
func (c *SafeCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.v
	c.v++
	return v
}
