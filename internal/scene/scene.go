package scene

import (
	"sort"
	"sync"

	"github.com/basicai/pceditor/pkg/core"
)

// PickRadius is the distance from a ray within which a point counts as hit.
const PickRadius = 0.1

// Hit is one ray intersection result.
type Hit struct {
	Visual   Visual
	Distance float64
	Point    core.Vec3
}

// Scene is the rendering collaborator. Render requests are coalesced.
type Scene interface {
	Add(v Visual)
	Remove(v Visual)
	SetVisible(v Visual, visible bool)
	Render()
	Intersects(ray core.Ray) []Hit
}

type entry struct {
	visual  Visual
	visible bool
	seq     uint64
}

// Memory is an in-process Scene that records what a renderer would draw.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
	pending bool
	frames  int
}

// NewMemory creates an empty scene.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

func (s *Memory) Add(v Visual) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[v.VisualID()]; ok {
		e.visual = v
		return
	}
	s.seq++
	s.entries[v.VisualID()] = &entry{visual: v, visible: true, seq: s.seq}
}

func (s *Memory) Remove(v Visual) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, v.VisualID())
}

func (s *Memory) SetVisible(v Visual, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[v.VisualID()]; ok {
		e.visible = visible
	}
}

// Render schedules a redraw. Multiple calls before Flush produce one frame.
func (s *Memory) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
}

// Flush performs the pending redraw, if any, and reports whether one ran.
func (s *Memory) Flush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return false
	}
	s.pending = false
	s.frames++
	return true
}

// Frames returns the number of redraws performed.
func (s *Memory) Frames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Contains reports whether a visual with the given id is in the scene.
func (s *Memory) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Visible reports whether the visual is in the scene and visible.
func (s *Memory) Visible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return ok && e.visible
}

// Len returns the number of visuals in the scene.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Visuals returns the scene content in insertion order.
func (s *Memory) Visuals() []Visual {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]Visual, len(list))
	for i, e := range list {
		out[i] = e.visual
	}
	return out
}

// Intersects returns visible locatable visuals within PickRadius of the ray,
// nearest first. Visuals behind the ray origin are ignored.
func (s *Memory) Intersects(ray core.Ray) []Hit {
	dir := ray.Direction
	n := dir.Length()
	if n == 0 {
		return nil
	}
	dir = dir.Scale(1 / n)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for _, e := range s.entries {
		if !e.visible {
			continue
		}
		loc, ok := e.visual.(Locatable)
		if !ok {
			continue
		}
		p := loc.Location()
		rel := p.Sub(ray.Origin)
		t := rel.X*dir.X + rel.Y*dir.Y + rel.Z*dir.Z
		if t < 0 {
			continue
		}
		closest := ray.Origin.Add(dir.Scale(t))
		if closest.DistanceTo(p) > PickRadius {
			continue
		}
		hits = append(hits, Hit{Visual: e.visual, Distance: t, Point: p})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}
