package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/basicai/pceditor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Frame ego locations are stored as EPSG:3857 points so that SQLite, which has
// no spatial awareness, can still round-trip them through WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Vec3FromString parses "x,y" or "x,y,z" into a core.Vec3.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	return core.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// LocationTo3857 projects a WGS84 frame location into a web mercator point,
// keeping altitude as Z.
func LocationTo3857(loc core.GeoLocation) (geom.Point, error) {
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return geom.NewEmptyPoint(geom.DimXYZ), ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(loc.Longitude, loc.Latitude, 0)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    loc.Altitude,
		Type: geom.DimXYZ,
	}), nil
}

// LocationFrom3857 reverses LocationTo3857.
func LocationFrom3857(p geom.Point) (core.GeoLocation, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.GeoLocation{}, false
	}
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ := f(c.X, c.Y, 0)
	return core.GeoLocation{Latitude: lat, Longitude: lon, Altitude: c.Z}, true
}
