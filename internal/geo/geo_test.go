package geo

import (
	"testing"

	"github.com/basicai/pceditor/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3FromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    core.Vec3
		wantErr bool
	}{
		{name: "with z", input: "100.5,200.25,50.0", want: core.Vec3{X: 100.5, Y: 200.25, Z: 50}},
		{name: "without z", input: "1,2", want: core.Vec3{X: 1, Y: 2}},
		{name: "negative", input: "-1.5, -2, -3", want: core.Vec3{X: -1.5, Y: -2, Z: -3}},
		{name: "single value", input: "1", wantErr: true},
		{name: "too many values", input: "1,2,3,4", wantErr: true},
		{name: "not a number", input: "a,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Vec3FromString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinates)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationTo3857_RoundTrip(t *testing.T) {
	loc := core.GeoLocation{Latitude: 48.8566, Longitude: 2.3522, Altitude: 35}

	p, err := LocationTo3857(loc)
	require.NoError(t, err)

	c, ok := p.Coordinates()
	require.True(t, ok)
	// web mercator x for 2.3522°E is roughly 261845 m
	assert.InDelta(t, 261845, c.X, 50)
	assert.Equal(t, 35.0, c.Z)

	back, ok := LocationFrom3857(p)
	require.True(t, ok)
	assert.InDelta(t, loc.Latitude, back.Latitude, 1e-6)
	assert.InDelta(t, loc.Longitude, back.Longitude, 1e-6)
	assert.Equal(t, loc.Altitude, back.Altitude)
}

func TestLocationTo3857_OutOfRange(t *testing.T) {
	_, err := LocationTo3857(core.GeoLocation{Latitude: 91})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}
