package geo

import (
	"encoding/json"
	"fmt"

	"github.com/basicai/pceditor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParsePolyline parses a JSON array of coordinates into chain positions.
// Input format: "[[x1,y1,z1],[x2,y2],...]"; a missing z is 0.
func ParsePolyline(input string) ([]core.Vec3, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	out := make([]core.Vec3, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		out[i] = core.Vec3{X: coord[0], Y: coord[1]}
		if len(coord) > 2 {
			out[i].Z = coord[2]
		}
	}
	return out, nil
}

// LineString builds a 3D line string from chain positions. A single point
// chain is not a valid line and yields an empty geometry.
func LineString(points []core.Vec3) geom.LineString {
	if len(points) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(points)*3)
	for _, p := range points {
		flat = append(flat, p.X, p.Y, p.Z)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
}

// Points returns the positions of a line string, 0 for a missing Z.
func Points(ls geom.LineString) []core.Vec3 {
	seq := ls.Coordinates()
	out := make([]core.Vec3, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = core.Vec3{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out
}

// Length returns the 3D length of a polyline.
func Length(points []core.Vec3) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}
