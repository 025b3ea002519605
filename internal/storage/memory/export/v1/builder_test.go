package v1

import (
	"bytes"
	"testing"
	"time"

	"github.com/basicai/pceditor/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportTime = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

func sampleResults() []core.FrameResult {
	return []core.FrameResult{
		{
			FrameID:    "f2",
			FrameIndex: 1,
			Objects: []core.ObjectRecord{
				{Kind: core.KindPoint, UserData: core.UserData{ID: "p2", TrackID: "l", TrackName: "2", ChainID: "f2/l"}, Position: core.Vec3{X: 3, Y: 4}, ChainIndex: 1},
				{Kind: core.KindPoint, UserData: core.UserData{ID: "p1", TrackID: "l", TrackName: "2", ChainID: "f2/l"}, ChainIndex: 0},
			},
		},
		{
			FrameID:    "f1",
			FrameIndex: 0,
			Objects: []core.ObjectRecord{
				{Kind: core.KindBox3D, UserData: core.UserData{ID: "b1", TrackID: "t", TrackName: "1", ClassID: "c1", Attrs: map[string]any{"a": "x"}}},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	export := Build(sampleResults(), nil, exportTime)

	assert.Equal(t, Version, export.Version)
	assert.Equal(t, exportTime, export.ExportedAt)
	assert.Equal(t, 2, export.FrameCount)
	assert.Equal(t, 3, export.ObjectCount)
	require.Len(t, export.Frames, 2)
	assert.Equal(t, "f1", export.Frames[0].FrameID)

	require.Len(t, export.Tracks, 2)
	assert.Equal(t, "t", export.Tracks[0].TrackID)
	assert.Equal(t, "x", export.Tracks[0].Attrs["a"])
	assert.Equal(t, "l", export.Tracks[1].TrackID)

	require.Len(t, export.Chains, 1)
	ch := export.Chains[0]
	assert.Equal(t, "f2/l", ch.ChainID)
	assert.Equal(t, []core.Vec3{{}, {X: 3, Y: 4}}, ch.Points)
	assert.InDelta(t, 5.0, ch.Length, 1e-9)
}

func TestBuild_UsesGivenTracks(t *testing.T) {
	tracks := []core.TrackObject{{TrackID: "t", TrackName: "renamed"}}
	export := Build(sampleResults(), tracks, exportTime)
	assert.Equal(t, tracks, export.Tracks)
}

func TestBuild_Empty(t *testing.T) {
	export := Build(nil, nil, exportTime)
	assert.Zero(t, export.FrameCount)
	assert.NotNil(t, export.Tracks)
}

func TestWriteRead(t *testing.T) {
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, Build(sampleResults(), nil, exportTime), compress))
		if compress {
			assert.Equal(t, []byte{0x1f, 0x8b}, buf.Bytes()[:2])
		}

		got, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, 2, got.FrameCount)
		assert.Equal(t, "b1", got.Frames[0].Objects[0].UserData.ID)
	}
}

func TestRead_RejectsUnknownVersion(t *testing.T) {
	_, err := Read(bytes.NewBufferString(`{"version":9}`))
	require.Error(t, err)
}
