package chain

import (
	"testing"

	"github.com/basicai/pceditor/internal/scene"
	"github.com/basicai/pceditor/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	p1 = core.Vec3{X: 0, Y: 0, Z: 0}
	p2 = core.Vec3{X: 1, Y: 0, Z: 0}
	p3 = core.Vec3{X: 2, Y: 0, Z: 0}
)

func newTestEngine(t *testing.T) (*Engine, *scene.Memory) {
	t.Helper()
	s := scene.NewMemory()
	return NewEngine(s), s
}

func buildChain(t *testing.T, e *Engine, chain ChainID, pts ...core.Vec3) []NodeID {
	t.Helper()
	ids := make([]NodeID, 0, len(pts))
	for _, p := range pts {
		id, err := e.AppendPoint(chain, p)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, e.Validate(chain))
	return ids
}

func positions(t *testing.T, e *Engine, chain ChainID) []core.Vec3 {
	t.Helper()
	pos, err := e.Positions(chain)
	require.NoError(t, err)
	return pos
}

func TestAppendPoint_ThreeNodesTwoSegments(t *testing.T) {
	e, s := newTestEngine(t)

	ids := buildChain(t, e, "c1", p1, p2, p3)

	segs, err := e.Segments("c1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, p1, segs[0].Start)
	assert.Equal(t, p2, segs[0].End)
	assert.Equal(t, p2, segs[1].Start)
	assert.Equal(t, p3, segs[1].End)

	fwd, err := e.Nodes("c1")
	require.NoError(t, err)
	assert.Equal(t, ids, fwd)

	back, err := e.Backward("c1")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{ids[2], ids[1], ids[0]}, back)

	// 3 markers + 2 segments
	assert.Equal(t, 5, s.Len())
}

func TestAppendPoint_EmptyChainID(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AppendPoint("", p1)
	assert.ErrorIs(t, err, ErrInvalidChain)
}

func TestRemove_MiddleRelinksWithOneSegment(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)

	require.NoError(t, e.Remove(ids[1]))
	require.NoError(t, e.Validate("c1"))

	segs, err := e.Segments("c1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, p1, segs[0].Start)
	assert.Equal(t, p3, segs[0].End)
	assert.False(t, s.Contains(ids[1].String()))
	assert.Equal(t, 3, s.Len())
	assert.False(t, e.Has(ids[1]))
}

func TestRemove_HeadAndTail(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)

	require.NoError(t, e.Remove(ids[0]))
	require.NoError(t, e.Validate("c1"))
	assert.Equal(t, []core.Vec3{p2, p3}, positions(t, e, "c1"))

	require.NoError(t, e.Remove(ids[2]))
	require.NoError(t, e.Validate("c1"))
	assert.Equal(t, []core.Vec3{p2}, positions(t, e, "c1"))

	segs, err := e.Segments("c1")
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestRemove_LastNodeDropsChain(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1)

	require.NoError(t, e.Remove(ids[0]))

	_, err := e.Nodes("c1")
	assert.ErrorIs(t, err, ErrChainNotFound)
	assert.Equal(t, 0, e.Len("c1"))
	assert.Equal(t, 0, s.Len())
}

func TestRemove_NotFoundIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	buildChain(t, e, "c1", p1, p2)

	err := e.Remove(NodeID(99))
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, 2, e.Len("c1"))
	require.NoError(t, e.Validate("c1"))
}

func TestInsertAfter_ReusesSegmentAndAddsOne(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p3)
	before, err := e.Segments("c1")
	require.NoError(t, err)
	orig := before[0]

	mid, err := e.InsertAfter(ids[0], p2)
	require.NoError(t, err)
	require.NoError(t, e.Validate("c1"))

	segs, err := e.Segments("c1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	// the original segment now joins the new node to the old successor
	assert.Same(t, orig, segs[1])
	assert.Equal(t, p2, orig.Start)
	assert.Equal(t, p3, orig.End)

	fwd, _ := e.Nodes("c1")
	assert.Equal(t, []NodeID{ids[0], mid, ids[1]}, fwd)
}

func TestInsertAfter_TailBecomesNewNode(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2)

	id, err := e.InsertAfter(ids[1], p3)
	require.NoError(t, err)
	require.NoError(t, e.Validate("c1"))

	back, _ := e.Backward("c1")
	assert.Equal(t, id, back[0])
}

func TestInsertAfterIn_RejectsOtherChain(t *testing.T) {
	e, _ := newTestEngine(t)
	a := buildChain(t, e, "a", p1, p2)
	buildChain(t, e, "b", p1, p2)

	_, err := e.InsertAfterIn("b", a[0], p3)
	assert.ErrorIs(t, err, ErrChainMismatch)
	assert.Equal(t, 2, e.Len("a"))
	assert.Equal(t, 2, e.Len("b"))

	_, err = e.InsertAfterIn("a", a[0], p3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Len("a"))
}

func TestInsertThenRemove_RoundTrips(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)
	want := positions(t, e, "c1")
	wantVisuals := s.Len()

	id, err := e.InsertAfter(ids[1], core.Vec3{X: 1.5, Y: 1})
	require.NoError(t, err)
	require.NoError(t, e.Remove(id))
	require.NoError(t, e.Validate("c1"))

	assert.Equal(t, want, positions(t, e, "c1"))
	fwd, _ := e.Nodes("c1")
	assert.Equal(t, ids, fwd)
	assert.Equal(t, wantVisuals, s.Len())
}

func TestMove_UpdatesAdjacentSegmentsInPlace(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3, core.Vec3{X: 3})
	segs, _ := e.Segments("c1")

	target := core.Vec3{X: 1, Y: 5}
	require.NoError(t, e.Move(ids[1], target))
	require.NoError(t, e.Validate("c1"))

	after, _ := e.Segments("c1")
	for i := range segs {
		assert.Same(t, segs[i], after[i])
	}
	assert.Equal(t, 1, segs[0].Updates)
	assert.Equal(t, 1, segs[1].Updates)
	assert.Equal(t, 0, segs[2].Updates)
	assert.Equal(t, target, segs[0].End)
	assert.Equal(t, target, segs[1].Start)
}

func TestMove_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)
	target := core.Vec3{X: 4, Y: 4, Z: 4}

	require.NoError(t, e.Move(ids[1], target))
	once := positions(t, e, "c1")
	require.NoError(t, e.Move(ids[1], target))
	require.NoError(t, e.Validate("c1"))

	assert.Equal(t, once, positions(t, e, "c1"))
}

func TestMove_NotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Move(NodeID(7), p1), ErrNodeNotFound)
}

func TestDetachAttach_RestoresSameID(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)

	snap, err := e.Detach(ids[1])
	require.NoError(t, err)
	require.NoError(t, e.Validate("c1"))

	require.NoError(t, e.Attach(snap))
	require.NoError(t, e.Validate("c1"))

	fwd, _ := e.Nodes("c1")
	assert.Equal(t, ids, fwd)
	assert.Equal(t, 5, s.Len())

	// ids keep growing after an attach
	next, err := e.AppendPoint("c1", core.Vec3{X: 9})
	require.NoError(t, err)
	assert.Greater(t, next, ids[2])
}

func TestAttach_RejectsBrokenNeighbours(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)

	snap, err := e.Detach(ids[1])
	require.NoError(t, err)
	_, err = e.InsertAfter(ids[0], core.Vec3{X: 0.5})
	require.NoError(t, err)

	assert.ErrorIs(t, e.Attach(snap), ErrBrokenLink)
}

func TestAttach_RejectsExistingID(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1)
	assert.ErrorIs(t, e.Attach(Snapshot{ID: ids[0], Chain: "c1"}), ErrNodeExists)
}

func TestDeleteChain_SnapshotsRebuild(t *testing.T) {
	e, s := newTestEngine(t)
	buildChain(t, e, "c1", p1, p2, p3)
	want := positions(t, e, "c1")

	snaps, err := e.DeleteChain("c1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, e.Chains())

	for _, snap := range snaps {
		require.NoError(t, e.Attach(snap))
	}
	require.NoError(t, e.Validate("c1"))
	assert.Equal(t, want, positions(t, e, "c1"))
}

func TestSetVisible_HidesNodeAndSegments(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)
	segs, _ := e.Segments("c1")

	require.NoError(t, e.SetVisible(ids[1], false))

	assert.False(t, s.Visible(ids[1].String()))
	assert.False(t, s.Visible(segs[0].ID))
	assert.False(t, s.Visible(segs[1].ID))
	assert.True(t, s.Visible(ids[0].String()))

	n, err := e.Node(ids[1])
	require.NoError(t, err)
	assert.False(t, n.Visible)
}

func TestSetChainShown_KeepsNodeVisibility(t *testing.T) {
	e, s := newTestEngine(t)
	ids := buildChain(t, e, "c1", p1, p2, p3)
	other := buildChain(t, e, "c2", p1, p2)
	segs, _ := e.Segments("c1")
	require.NoError(t, e.SetVisible(ids[2], false))

	e.SetChainShown("c1", false)
	assert.False(t, e.ChainShown("c1"))
	for _, id := range ids {
		assert.False(t, s.Visible(id.String()), id)
	}
	for _, l := range segs {
		assert.False(t, s.Visible(l.ID))
	}
	assert.True(t, s.Visible(other[0].String()))

	n, err := e.Node(ids[0])
	require.NoError(t, err)
	assert.True(t, n.Visible)

	// attached while hidden
	id, err := e.InsertAfter(ids[0], core.Vec3{X: 0.5})
	require.NoError(t, err)
	assert.False(t, s.Visible(id.String()))

	e.SetChainShown("c1", true)
	assert.True(t, s.Visible(ids[0].String()))
	assert.True(t, s.Visible(id.String()))
	assert.True(t, s.Visible(ids[1].String()))
	assert.False(t, s.Visible(ids[2].String()))
	segs, _ = e.Segments("c1")
	require.Len(t, segs, 3)
	assert.True(t, s.Visible(segs[0].ID))
	assert.True(t, s.Visible(segs[1].ID))
	assert.False(t, s.Visible(segs[2].ID))
	require.NoError(t, e.Validate("c1"))
}

func TestMutationsRequestRender(t *testing.T) {
	e, s := newTestEngine(t)
	buildChain(t, e, "c1", p1, p2)
	assert.True(t, s.Flush())
	assert.False(t, s.Flush())
}

func TestValidateAll(t *testing.T) {
	e, _ := newTestEngine(t)
	buildChain(t, e, "a", p1, p2)
	buildChain(t, e, "b", p1, p2, p3)
	assert.NoError(t, e.ValidateAll())

	// corrupt a segment behind the engine's back
	segs, _ := e.Segments("b")
	segs[0].End = core.Vec3{X: 100}
	assert.ErrorIs(t, e.ValidateAll(), ErrCorrupt)
}
