package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/cache"
	"github.com/basicai/pceditor/pkg/core"
)

type recordingExecutor struct {
	names    []string
	payloads []any
}

func (r *recordingExecutor) Execute(ctx context.Context, name string, payload any) error {
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, payload)
	if u, ok := payload.(VisibilityUpdate); ok {
		for _, o := range u.Objects {
			o.SetVisible(u.Visible)
		}
	}
	return nil
}

func newObjects(t *testing.T, confidences ...*float64) []annotate.Object {
	t.Helper()
	m := annotate.NewModel(&cache.SafeCounter{})
	out := make([]annotate.Object, 0, len(confidences))
	for _, c := range confidences {
		b, err := m.CreateBox3D("f1", annotate.BoxParams{Scale: core.Vec3{X: 1, Y: 1, Z: 1}}, core.UserData{Confidence: c})
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestFilterByConfidence_KeepsInclusiveRange(t *testing.T) {
	objs := newObjects(t, core.Float64Ptr(0.1), core.Float64Ptr(0.5), core.Float64Ptr(0.9))

	got := FilterByConfidence(objs, Range{Min: 0.2, Max: 1})

	require.Len(t, got, 2)
	assert.Equal(t, objs[1].ID(), got[0].ID())
	assert.Equal(t, objs[2].ID(), got[1].ID())
}

func TestFilterByConfidence_BoundsAndMissing(t *testing.T) {
	objs := newObjects(t, core.Float64Ptr(0.2), core.Float64Ptr(1), nil)

	got := FilterByConfidence(objs, Range{Min: 0.2, Max: 1})
	assert.Len(t, got, 2, "both bounds are inclusive")

	withZero := FilterByConfidence(objs, Range{Min: 0, Max: 0.1})
	require.Len(t, withZero, 1, "missing confidence counts as 0")
	assert.Equal(t, objs[2].ID(), withZero[0].ID())
}

func TestRange_Validate(t *testing.T) {
	assert.NoError(t, Range{Min: 0, Max: 1}.Validate())
	assert.Error(t, Range{Min: 0.8, Max: 0.2}.Validate())
	assert.Error(t, Range{Min: -0.1, Max: 1}.Validate())
	assert.Error(t, Range{Min: 0, Max: 1.5}.Validate())
}

func TestView_RecomputesOnlyWhenAsked(t *testing.T) {
	objs := newObjects(t, core.Float64Ptr(0.1), core.Float64Ptr(0.5), core.Float64Ptr(0.9))
	v := NewView(Range{Min: 0.2, Max: 1})
	v.SetInstances(objs)
	require.Len(t, v.Filtered(), 2)

	require.NoError(t, v.SetRange(Range{Min: 0, Max: 0.3}))
	assert.Len(t, v.Filtered(), 1)

	assert.Error(t, v.SetRange(Range{Min: 1, Max: 0}))
	assert.Equal(t, Range{Min: 0, Max: 0.3}, v.Range(), "invalid range is not applied")

	// a confidence edit shows up only after Recompute
	u := objs[2].UserData()
	u.Confidence = core.Float64Ptr(0.25)
	objs[2].SetUserData(u)
	assert.Len(t, v.Filtered(), 1)
	v.Recompute()
	assert.Len(t, v.Filtered(), 2)
}

func TestView_ClassAndSourceFilters(t *testing.T) {
	m := annotate.NewModel(&cache.SafeCounter{})
	mk := func(class, source string) annotate.Object {
		b, err := m.CreateBox3D("f1", annotate.BoxParams{Scale: core.Vec3{X: 1, Y: 1, Z: 1}},
			core.UserData{ClassType: class, SourceID: source, Confidence: core.Float64Ptr(1)})
		require.NoError(t, err)
		return b
	}
	objs := []annotate.Object{mk("Car", "manual"), mk("Car", "model-1"), mk("Truck", "manual")}
	v := NewView(Range{Min: 0, Max: 1})
	v.SetInstances(objs)

	v.SetClassFilter("Car")
	assert.Len(t, v.Filtered(), 2)

	v.SetSourceFilter("manual")
	assert.Len(t, v.Filtered(), 1)

	v.SetClassFilter("")
	v.SetSourceFilter(FilterAll)
	assert.Len(t, v.Filtered(), 3)
}

func TestToggleVisible_OnlyPassedObjects(t *testing.T) {
	objs := newObjects(t, nil, nil, nil)
	exec := &recordingExecutor{}

	require.NoError(t, ToggleVisible(context.Background(), exec, objs[:2], false))

	require.Equal(t, []string{CmdToggleVisible}, exec.names)
	assert.False(t, objs[0].Visible())
	assert.False(t, objs[1].Visible())
	assert.True(t, objs[2].Visible())
}

func TestToggleVisible_EmptyIsNoOp(t *testing.T) {
	exec := &recordingExecutor{}
	require.NoError(t, ToggleVisible(context.Background(), exec, nil, false))
	assert.Empty(t, exec.names)
}

func TestView_ToggleBatch(t *testing.T) {
	objs := newObjects(t, core.Float64Ptr(0.1), core.Float64Ptr(0.5), core.Float64Ptr(0.9))
	v := NewView(Range{Min: 0.2, Max: 1})
	v.SetInstances(objs)
	exec := &recordingExecutor{}

	assert.True(t, v.BatchVisible())
	require.NoError(t, v.ToggleBatch(context.Background(), exec))

	assert.False(t, v.BatchVisible())
	assert.True(t, objs[0].Visible(), "filtered-out object is untouched")

	require.NoError(t, v.ToggleBatch(context.Background(), exec))
	assert.True(t, v.BatchVisible())
}
