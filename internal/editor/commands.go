package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/internal/command"
	"github.com/basicai/pceditor/internal/filter"
	"github.com/basicai/pceditor/pkg/core"
)

// ChainAppend is the payload of chain-append.
type ChainAppend struct {
	FrameID  string
	Chain    chain.ChainID
	Position core.Vec3
	// UserData must carry an id; the created point is looked up by it.
	UserData core.UserData
}

// ChainInsert is the payload of chain-insert.
type ChainInsert struct {
	FrameID  string
	After    chain.NodeID
	Position core.Vec3
	UserData core.UserData
}

// ChainMove is the payload of chain-move. From is where the node was when
// the drag started.
type ChainMove struct {
	Node chain.NodeID
	From core.Vec3
	To   core.Vec3
}

func (e *Editor) register() {
	e.cmds.Register(CmdAddObject, e.newAddObject, command.Logged())
	e.cmds.Register(CmdDeleteObject, e.newDeleteObject, command.Logged())
	e.cmds.Register(CmdSelectObject, e.newSelectObject)
	e.cmds.Register(filter.CmdToggleVisible, e.newToggleVisible, command.Logged())
	e.cmds.Register(CmdChainAppend, e.newChainAppend, command.Logged())
	e.cmds.Register(CmdChainInsert, e.newChainInsert, command.Logged())
	e.cmds.Register(CmdChainMove, e.newChainMove)
}

func objectsPayload(payload any) ([]annotate.Object, bool) {
	switch p := payload.(type) {
	case []annotate.Object:
		return append([]annotate.Object(nil), p...), true
	case annotate.Object:
		return []annotate.Object{p}, true
	default:
		return nil, false
	}
}

func (e *Editor) markDirty(frameID string) {
	if i, ok := e.frameByID[frameID]; ok {
		e.frames[i].NeedSave = true
	}
}

// show puts obj in the scene when it belongs to the current frame.
func (e *Editor) show(obj annotate.Object) {
	if obj.IsPoint() {
		return
	}
	if cur := e.CurrentFrameID(); cur != "" && obj.FrameID() != cur {
		return
	}
	e.scene.Add(obj)
	if !obj.Visible() {
		e.scene.SetVisible(obj, false)
	}
}

func (e *Editor) hide(obj annotate.Object) {
	if !obj.IsPoint() {
		e.scene.Remove(obj)
	}
}

func (e *Editor) newAddObject(payload any) (command.Command, error) {
	objects, ok := objectsPayload(payload)
	if !ok || len(objects) == 0 {
		return nil, fmt.Errorf("%w: want annotation objects", command.ErrInvalidPayload)
	}
	remove := func(n int) {
		for i := n - 1; i >= 0; i-- {
			o := objects[i]
			if _, _, err := e.index.Remove(o.ID()); err != nil {
				e.logger.Warn("undo add of missing object", "id", o.ID(), "error", err)
				continue
			}
			e.hide(o)
			e.markDirty(o.FrameID())
		}
	}
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			for i, o := range objects {
				if err := e.index.Add(o); err != nil {
					remove(i)
					return err
				}
				e.show(o)
				e.ObjectChanged(o)
			}
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			remove(len(objects))
			return nil
		},
	}, nil
}

// removed remembers where a deleted object sat so undo can put it back.
type removed struct {
	obj  annotate.Object
	pos  int
	snap chain.Snapshot
}

func (e *Editor) newDeleteObject(payload any) (command.Command, error) {
	objects, ok := objectsPayload(payload)
	if !ok || len(objects) == 0 {
		return nil, fmt.Errorf("%w: want annotation objects", command.ErrInvalidPayload)
	}
	var done []removed

	restore := func() error {
		var errs []error
		for i := len(done) - 1; i >= 0; i-- {
			r := done[i]
			if p, ok := r.obj.(*annotate.PointNode); ok {
				if err := e.chains.Attach(r.snap); err != nil {
					errs = append(errs, fmt.Errorf("restoring %s: %w", p.Node, err))
					continue
				}
			} else {
				e.show(r.obj)
			}
			if err := e.index.InsertAt(r.obj, r.pos); err != nil {
				errs = append(errs, err)
				continue
			}
			e.markDirty(r.obj.FrameID())
		}
		done = nil
		return errors.Join(errs...)
	}

	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			done = done[:0]
			for _, o := range objects {
				obj, pos, err := e.index.Remove(o.ID())
				if err != nil {
					return errors.Join(err, restore())
				}
				r := removed{obj: obj, pos: pos}
				if p, ok := obj.(*annotate.PointNode); ok {
					snap, err := e.chains.Detach(p.Node)
					if err != nil {
						_ = e.index.InsertAt(obj, pos)
						return errors.Join(err, restore())
					}
					r.snap = snap
				} else {
					e.hide(obj)
				}
				done = append(done, r)
				e.markDirty(obj.FrameID())
			}
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			return restore()
		},
	}, nil
}

func (e *Editor) setVisible(obj annotate.Object, visible bool) error {
	obj.SetVisible(visible)
	if p, ok := obj.(*annotate.PointNode); ok {
		return e.chains.SetVisible(p.Node, visible)
	}
	e.scene.SetVisible(obj, visible)
	return nil
}

func (e *Editor) newToggleVisible(payload any) (command.Command, error) {
	u, ok := payload.(filter.VisibilityUpdate)
	if !ok || len(u.Objects) == 0 {
		return nil, fmt.Errorf("%w: want filter.VisibilityUpdate with objects", command.ErrInvalidPayload)
	}
	objects := append([]annotate.Object(nil), u.Objects...)
	prev := make([]bool, len(objects))
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			for i, o := range objects {
				prev[i] = o.Visible()
				if err := e.setVisible(o, u.Visible); err != nil {
					return err
				}
			}
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			var errs []error
			for i := len(objects) - 1; i >= 0; i-- {
				errs = append(errs, e.setVisible(objects[i], prev[i]))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (e *Editor) newSelectObject(payload any) (command.Command, error) {
	var objects []annotate.Object
	if payload != nil {
		var ok bool
		if objects, ok = objectsPayload(payload); !ok {
			return nil, fmt.Errorf("%w: want annotation objects", command.ErrInvalidPayload)
		}
	}
	var prev []annotate.Object
	var prevTrack string
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			prev, prevTrack = e.selection, e.currentTrack
			e.selection = objects
			if len(objects) > 0 {
				e.currentTrack = objects[0].UserData().TrackID
			}
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			e.selection, e.currentTrack = prev, prevTrack
			return nil
		},
	}, nil
}

// chainNode is shared by chain-append and chain-insert: the first apply
// creates the node, redo attaches the same node again.
type chainNode struct {
	e      *Editor
	create func() (*annotate.PointNode, error)
	obj    *annotate.PointNode
	snap   chain.Snapshot
	pos    int
}

func (c *chainNode) Apply(ctx context.Context) error {
	if c.obj == nil {
		obj, err := c.create()
		if err != nil {
			return err
		}
		c.obj = obj
		if err := c.e.index.Add(obj); err != nil {
			_ = c.e.chains.Remove(obj.Node)
			c.obj = nil
			return err
		}
	} else {
		if err := c.e.chains.Attach(c.snap); err != nil {
			return err
		}
		if err := c.e.index.InsertAt(c.obj, c.pos); err != nil {
			return err
		}
	}
	c.e.ObjectChanged(c.obj)
	return nil
}

func (c *chainNode) Undo(ctx context.Context) error {
	snap, err := c.e.chains.Detach(c.obj.Node)
	if err != nil {
		return err
	}
	c.snap = snap
	_, pos, err := c.e.index.Remove(c.obj.ID())
	if err != nil {
		return err
	}
	c.pos = pos
	c.e.markDirty(c.obj.FrameID())
	return nil
}

func (e *Editor) newChainAppend(payload any) (command.Command, error) {
	p, ok := payload.(ChainAppend)
	if !ok || p.Chain == "" || p.UserData.ID == "" {
		return nil, fmt.Errorf("%w: want editor.ChainAppend with chain and id", command.ErrInvalidPayload)
	}
	return &chainNode{e: e, create: func() (*annotate.PointNode, error) {
		id, err := e.chains.AppendPoint(p.Chain, p.Position)
		if err != nil {
			return nil, err
		}
		obj, err := e.model.CreatePoint(p.FrameID, annotate.PointParams{Chain: p.Chain, Node: id}, p.UserData)
		if err != nil {
			_ = e.chains.Remove(id)
			return nil, err
		}
		return obj, nil
	}}, nil
}

func (e *Editor) newChainInsert(payload any) (command.Command, error) {
	p, ok := payload.(ChainInsert)
	if !ok || p.After == 0 || p.UserData.ID == "" {
		return nil, fmt.Errorf("%w: want editor.ChainInsert with node and id", command.ErrInvalidPayload)
	}
	return &chainNode{e: e, create: func() (*annotate.PointNode, error) {
		after, err := e.chains.Node(p.After)
		if err != nil {
			return nil, err
		}
		id, err := e.chains.InsertAfter(p.After, p.Position)
		if err != nil {
			return nil, err
		}
		obj, err := e.model.CreatePoint(p.FrameID, annotate.PointParams{Chain: after.Chain, Node: id}, p.UserData)
		if err != nil {
			_ = e.chains.Remove(id)
			return nil, err
		}
		return obj, nil
	}}, nil
}

func (e *Editor) newChainMove(payload any) (command.Command, error) {
	p, ok := payload.(ChainMove)
	if !ok || p.Node == 0 {
		return nil, fmt.Errorf("%w: want editor.ChainMove", command.ErrInvalidPayload)
	}
	move := func(to core.Vec3) error {
		if err := e.chains.Move(p.Node, to); err != nil {
			return err
		}
		if obj := e.pointObject(p.Node); obj != nil {
			e.markDirty(obj.FrameID())
		}
		return nil
	}
	return command.Func{
		ApplyFn: func(ctx context.Context) error { return move(p.To) },
		UndoFn:  func(ctx context.Context) error { return move(p.From) },
	}, nil
}

// pointObject finds the annotation object bound to a chain node.
func (e *Editor) pointObject(id chain.NodeID) *annotate.PointNode {
	for _, fid := range e.index.Frames() {
		for _, o := range e.index.Frame(fid) {
			if p, ok := o.(*annotate.PointNode); ok && p.Node == id {
				return p
			}
		}
	}
	return nil
}
