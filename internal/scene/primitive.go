package scene

import (
	"fmt"

	"github.com/basicai/pceditor/pkg/core"
)

// Visual is anything the scene can hold.
type Visual interface {
	VisualID() string
}

// Locatable visuals can be picked by ray intersection.
type Locatable interface {
	Visual
	Location() core.Vec3
}

// Point is a rendered marker for a chain node.
type Point struct {
	ID       string
	Position core.Vec3
	Color    string
}

// NewPoint creates a point marker at pos.
func NewPoint(id string, pos core.Vec3) *Point {
	return &Point{ID: id, Position: pos, Color: "#ff0000"}
}

func (p *Point) VisualID() string { return p.ID }
func (p *Point) Location() core.Vec3 { return p.Position }

// Line is a rendered segment joining two points. Its endpoints are copies of
// the point positions and must be refreshed with SetEndpoints when a point moves.
type Line struct {
	ID    string
	Start core.Vec3
	End   core.Vec3
	Color string

	// Updates counts in-place endpoint rewrites.
	Updates int
}

// NewLine creates a segment between a and b. Both endpoints are required;
// a nil endpoint is a programming error and panics.
func NewLine(id string, a, b *Point) *Line {
	if a == nil || b == nil {
		panic(fmt.Sprintf("scene: line %s created with missing endpoint", id))
	}
	return &Line{ID: id, Start: a.Position, End: b.Position, Color: "#00ff00"}
}

func (l *Line) VisualID() string { return l.ID }

// SetEndpoints rewrites the segment geometry in place.
func (l *Line) SetEndpoints(a, b core.Vec3) {
	l.Start = a
	l.End = b
	l.Updates++
}
