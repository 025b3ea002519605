// Package chain keeps ordered point chains (3D polylines) and the segments
// joining consecutive points. Nodes live in an arena and are addressed by
// NodeID; links between nodes are ids, never pointers.
package chain

import (
	"errors"
	"fmt"

	"github.com/basicai/pceditor/internal/scene"
	"github.com/basicai/pceditor/pkg/core"
)

var (
	ErrNodeNotFound  = errors.New("chain node not found")
	ErrChainNotFound = errors.New("chain not found")
	ErrChainMismatch = errors.New("node belongs to a different chain")
	ErrNodeExists    = errors.New("chain node already exists")
	ErrBrokenLink    = errors.New("chain neighbours are no longer adjacent")
	ErrInvalidChain  = errors.New("invalid chain id")
)

// NodeID identifies a node. Ids are issued monotonically and never reused.
// The zero value means "no node".
type NodeID uint64

func (id NodeID) String() string {
	return fmt.Sprintf("node-%d", uint64(id))
}

// ChainID identifies a chain.
type ChainID string

// Node is a read-only view of a chain node.
type Node struct {
	ID       NodeID
	Chain    ChainID
	Position core.Vec3
	Visible  bool
	Prev     NodeID
	Next     NodeID
}

type node struct {
	Node
	point *scene.Point
	// segment from this node to Next; nil at the tail
	out *scene.Line
}

type record struct {
	head  NodeID
	tail  NodeID
	count int
}

// Snapshot captures a detached node and the neighbours it sat between, so
// it can be attached again under the same id.
type Snapshot struct {
	ID       NodeID
	Chain    ChainID
	Position core.Vec3
	Visible  bool
	Prev     NodeID
	Next     NodeID
}

// Engine owns all chains of a frame.
type Engine struct {
	scene  scene.Scene
	nodes  map[NodeID]*node
	chains map[ChainID]*record
	hidden map[ChainID]bool
	lastID NodeID
	segSeq uint64
}

// NewEngine creates an engine drawing into s.
func NewEngine(s scene.Scene) *Engine {
	return &Engine{
		scene:  s,
		nodes:  make(map[NodeID]*node),
		chains: make(map[ChainID]*record),
		hidden: make(map[ChainID]bool),
	}
}

// shown reports whether n is drawn: visible itself and its chain not hidden.
func (e *Engine) shown(n *node) bool {
	return n.Visible && !e.hidden[n.Chain]
}

func (e *Engine) addPoint(n *node) {
	e.scene.Add(n.point)
	if !e.shown(n) {
		e.scene.SetVisible(n.point, false)
	}
}

func (e *Engine) newNode(chain ChainID, pos core.Vec3) *node {
	e.lastID++
	n := &node{Node: Node{ID: e.lastID, Chain: chain, Position: pos, Visible: true}}
	n.point = scene.NewPoint(n.ID.String(), pos)
	return n
}

func (e *Engine) newSegment(a, b *node) *scene.Line {
	e.segSeq++
	l := scene.NewLine(fmt.Sprintf("seg-%d", e.segSeq), a.point, b.point)
	e.scene.Add(l)
	if !e.shown(a) || !e.shown(b) {
		e.scene.SetVisible(l, false)
	}
	return l
}

func (e *Engine) dropSegment(n *node) {
	if n.out != nil {
		e.scene.Remove(n.out)
		n.out = nil
	}
}

func (e *Engine) lookup(id NodeID) (*node, error) {
	n, ok := e.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// AppendPoint adds a node at the tail of chain, creating the chain when it
// does not exist yet.
func (e *Engine) AppendPoint(chain ChainID, pos core.Vec3) (NodeID, error) {
	if chain == "" {
		return 0, ErrInvalidChain
	}
	rec, ok := e.chains[chain]
	if !ok {
		rec = &record{}
		e.chains[chain] = rec
	}

	n := e.newNode(chain, pos)
	e.nodes[n.ID] = n
	e.addPoint(n)

	if rec.tail != 0 {
		tail := e.nodes[rec.tail]
		tail.Next = n.ID
		n.Prev = tail.ID
		tail.out = e.newSegment(tail, n)
	} else {
		rec.head = n.ID
	}
	rec.tail = n.ID
	rec.count++

	e.scene.Render()
	return n.ID, nil
}

// InsertAfter adds a node directly after id. The segment that joined id to
// its old successor is reused for new→successor and one new segment joins
// id→new.
func (e *Engine) InsertAfter(id NodeID, pos core.Vec3) (NodeID, error) {
	at, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	rec := e.chains[at.Chain]

	n := e.newNode(at.Chain, pos)
	e.nodes[n.ID] = n
	e.addPoint(n)

	n.Prev = at.ID
	n.Next = at.Next
	if next, ok := e.nodes[at.Next]; ok {
		next.Prev = n.ID
		n.out = at.out
		n.out.SetEndpoints(n.Position, next.Position)
		e.scene.SetVisible(n.out, e.shown(n) && e.shown(next))
	} else {
		rec.tail = n.ID
	}
	at.Next = n.ID
	at.out = e.newSegment(at, n)
	rec.count++

	e.scene.Render()
	return n.ID, nil
}

// InsertAfterIn is InsertAfter restricted to nodes of chain.
func (e *Engine) InsertAfterIn(chain ChainID, id NodeID, pos core.Vec3) (NodeID, error) {
	at, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if at.Chain != chain {
		return 0, fmt.Errorf("%w: %s is in %q, not %q", ErrChainMismatch, id, at.Chain, chain)
	}
	return e.InsertAfter(id, pos)
}

// Move sets the node position and rewrites at most the two adjacent
// segments in place.
func (e *Engine) Move(id NodeID, pos core.Vec3) error {
	n, err := e.lookup(id)
	if err != nil {
		return err
	}
	n.Position = pos
	n.point.Position = pos

	if prev, ok := e.nodes[n.Prev]; ok && prev.out != nil {
		prev.out.SetEndpoints(prev.Position, pos)
	}
	if next, ok := e.nodes[n.Next]; ok && n.out != nil {
		n.out.SetEndpoints(pos, next.Position)
	}

	e.scene.Render()
	return nil
}

// Remove deletes the node. Its neighbours, when both exist, are joined by
// exactly one new segment.
func (e *Engine) Remove(id NodeID) error {
	_, err := e.Detach(id)
	return err
}

// Detach removes the node and returns what is needed to attach it again.
func (e *Engine) Detach(id NodeID) (Snapshot, error) {
	n, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ID:       n.ID,
		Chain:    n.Chain,
		Position: n.Position,
		Visible:  n.Visible,
		Prev:     n.Prev,
		Next:     n.Next,
	}
	rec := e.chains[n.Chain]

	e.scene.Remove(n.point)
	e.dropSegment(n)

	prev, hasPrev := e.nodes[n.Prev]
	next, hasNext := e.nodes[n.Next]
	if hasPrev {
		e.dropSegment(prev)
		prev.Next = n.Next
	} else {
		rec.head = n.Next
	}
	if hasNext {
		next.Prev = n.Prev
	} else {
		rec.tail = n.Prev
	}
	if hasPrev && hasNext {
		prev.out = e.newSegment(prev, next)
	}

	delete(e.nodes, id)
	rec.count--
	if rec.count == 0 {
		delete(e.chains, n.Chain)
	}

	e.scene.Render()
	return snap, nil
}

// Attach re-inserts a detached node between the neighbours recorded in
// snap. The neighbours must still be adjacent.
func (e *Engine) Attach(snap Snapshot) error {
	if snap.ID == 0 || snap.Chain == "" {
		return ErrInvalidChain
	}
	if _, ok := e.nodes[snap.ID]; ok {
		return fmt.Errorf("%w: %s", ErrNodeExists, snap.ID)
	}

	rec, ok := e.chains[snap.Chain]
	if !ok {
		if snap.Prev != 0 || snap.Next != 0 {
			return fmt.Errorf("%w: %q", ErrChainNotFound, snap.Chain)
		}
		rec = &record{}
	}

	var prev, next *node
	if snap.Prev != 0 {
		p, err := e.lookup(snap.Prev)
		if err != nil {
			return err
		}
		if p.Chain != snap.Chain || p.Next != snap.Next {
			return fmt.Errorf("%w: %s", ErrBrokenLink, snap.ID)
		}
		prev = p
	} else if ok && rec.head != snap.Next {
		return fmt.Errorf("%w: %s", ErrBrokenLink, snap.ID)
	}
	if snap.Next != 0 {
		nx, err := e.lookup(snap.Next)
		if err != nil {
			return err
		}
		if nx.Chain != snap.Chain {
			return fmt.Errorf("%w: %s", ErrBrokenLink, snap.ID)
		}
		next = nx
	}

	n := &node{Node: Node{
		ID:       snap.ID,
		Chain:    snap.Chain,
		Position: snap.Position,
		Visible:  snap.Visible,
		Prev:     snap.Prev,
		Next:     snap.Next,
	}}
	n.point = scene.NewPoint(n.ID.String(), n.Position)
	e.nodes[n.ID] = n
	e.chains[snap.Chain] = rec
	e.addPoint(n)
	if snap.ID > e.lastID {
		e.lastID = snap.ID
	}

	if prev != nil {
		e.dropSegment(prev)
		prev.Next = n.ID
		prev.out = e.newSegment(prev, n)
	} else {
		rec.head = n.ID
	}
	if next != nil {
		next.Prev = n.ID
		n.out = e.newSegment(n, next)
	} else {
		rec.tail = n.ID
	}
	rec.count++

	e.scene.Render()
	return nil
}

// DeleteChain removes every node of the chain and returns snapshots that,
// attached in order, rebuild it.
func (e *Engine) DeleteChain(chain ChainID) ([]Snapshot, error) {
	ids, err := e.Nodes(chain)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(ids))
	for i, id := range ids {
		n := e.nodes[id]
		s := Snapshot{ID: id, Chain: chain, Position: n.Position, Visible: n.Visible}
		if i > 0 {
			s.Prev = ids[i-1]
		}
		snaps = append(snaps, s)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if _, err := e.Detach(ids[i]); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// SetVisible shows or hides a node and the segments touching it.
func (e *Engine) SetVisible(id NodeID, visible bool) error {
	n, err := e.lookup(id)
	if err != nil {
		return err
	}
	n.Visible = visible
	e.redraw(n)
	e.scene.Render()
	return nil
}

func (e *Engine) redraw(n *node) {
	e.scene.SetVisible(n.point, e.shown(n))
	if prev, ok := e.nodes[n.Prev]; ok && prev.out != nil {
		e.scene.SetVisible(prev.out, e.shown(n) && e.shown(prev))
	}
	if next, ok := e.nodes[n.Next]; ok && n.out != nil {
		e.scene.SetVisible(n.out, e.shown(n) && e.shown(next))
	}
}

// SetChainShown hides or shows a whole chain without changing the
// visibility of its nodes. Nodes attached to a hidden chain stay hidden
// until it is shown again. The state is kept for chains that do not exist
// (yet).
func (e *Engine) SetChainShown(chain ChainID, shown bool) {
	if shown {
		delete(e.hidden, chain)
	} else {
		e.hidden[chain] = true
	}
	rec, ok := e.chains[chain]
	if !ok {
		return
	}
	for id := rec.head; id != 0; id = e.nodes[id].Next {
		e.redraw(e.nodes[id])
	}
	e.scene.Render()
}

// ChainShown reports whether chain is drawn at all.
func (e *Engine) ChainShown(chain ChainID) bool {
	return !e.hidden[chain]
}

// Forget drops the shown state of every chain.
func (e *Engine) Forget() {
	clear(e.hidden)
}

// Node returns a copy of the node state.
func (e *Engine) Node(id NodeID) (Node, error) {
	n, err := e.lookup(id)
	if err != nil {
		return Node{}, err
	}
	return n.Node, nil
}

// Has reports whether the node exists.
func (e *Engine) Has(id NodeID) bool {
	_, ok := e.nodes[id]
	return ok
}

// Nodes returns the chain's node ids walking forward from the head.
func (e *Engine) Nodes(chain ChainID) ([]NodeID, error) {
	rec, ok := e.chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChainNotFound, chain)
	}
	out := make([]NodeID, 0, rec.count)
	for id := rec.head; id != 0; id = e.nodes[id].Next {
		out = append(out, id)
	}
	return out, nil
}

// Backward returns the chain's node ids walking backward from the tail.
func (e *Engine) Backward(chain ChainID) ([]NodeID, error) {
	rec, ok := e.chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChainNotFound, chain)
	}
	out := make([]NodeID, 0, rec.count)
	for id := rec.tail; id != 0; id = e.nodes[id].Prev {
		out = append(out, id)
	}
	return out, nil
}

// Positions returns node positions in chain order.
func (e *Engine) Positions(chain ChainID) ([]core.Vec3, error) {
	ids, err := e.Nodes(chain)
	if err != nil {
		return nil, err
	}
	out := make([]core.Vec3, len(ids))
	for i, id := range ids {
		out[i] = e.nodes[id].Position
	}
	return out, nil
}

// Segments returns the chain's segments in order.
func (e *Engine) Segments(chain ChainID) ([]*scene.Line, error) {
	ids, err := e.Nodes(chain)
	if err != nil {
		return nil, err
	}
	var out []*scene.Line
	for _, id := range ids {
		if l := e.nodes[id].out; l != nil {
			out = append(out, l)
		}
	}
	return out, nil
}

// Len returns the number of nodes in the chain, 0 if it does not exist.
func (e *Engine) Len(chain ChainID) int {
	if rec, ok := e.chains[chain]; ok {
		return rec.count
	}
	return 0
}

// Chains returns the ids of all non-empty chains.
func (e *Engine) Chains() []ChainID {
	out := make([]ChainID, 0, len(e.chains))
	for id := range e.chains {
		out = append(out, id)
	}
	return out
}
