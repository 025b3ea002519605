package editor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/internal/track"
	"github.com/basicai/pceditor/pkg/core"
)

// ErrStaleFit marks a fit result computed for a frame that is no longer
// current.
var ErrStaleFit = errors.New("fit result is for another frame")

// boxHeight is the height given to boxes drawn from three ground points.
const boxHeight = 2.0

// TransformFrom3Points builds box geometry from three ground clicks: the
// first two give the heading edge, the third the width. The box sits on
// groundZ and every axis is at least minScale.
func TransformFrom3Points(p [3]core.Vec3, groundZ, minScale float64) annotate.BoxParams {
	dx, dy := p[1].X-p[0].X, p[1].Y-p[0].Y
	length := math.Hypot(dx, dy)
	heading := math.Atan2(dy, dx)

	nx, ny := -math.Sin(heading), math.Cos(heading)
	width := (p[2].X-p[0].X)*nx + (p[2].Y-p[0].Y)*ny

	center := core.Vec3{
		X: p[0].X + dx/2 + nx*width/2,
		Y: p[0].Y + dy/2 + ny*width/2,
		Z: groundZ + boxHeight/2,
	}
	return annotate.BoxParams{
		Position: center,
		Scale: core.Vec3{
			X: math.Max(length, minScale),
			Y: math.Max(math.Abs(width), minScale),
			Z: math.Max(boxHeight, minScale),
		},
		Rotation: core.Euler{Z: heading},
	}
}

// clampScale keeps every axis at least floor.
func clampScale(s core.Vec3, floor float64) core.Vec3 {
	return core.Vec3{X: math.Max(s.X, floor), Y: math.Max(s.Y, floor), Z: math.Max(s.Z, floor)}
}

// newUserData prepares the label of a freshly drawn object: a true value of
// the current class, on the current track when that track has no object of
// the given kind on frameID yet.
func (e *Editor) newUserData(frameID string, kind core.ObjectKind) core.UserData {
	u := core.UserData{
		ResultStatus: core.StatusTrueValue,
		ResultType:   core.ResultTypeManual,
	}
	if class, ok := e.classes.Get(e.currentClass); ok {
		u.ClassID = class.ID
		u.ClassType = class.Name
	}
	if e.currentTrack == "" {
		return u
	}
	for _, o := range e.index.FrameTrackAll(frameID, e.currentTrack) {
		if o.Kind() == kind {
			return u
		}
	}
	u.TrackID = e.currentTrack
	if t, ok := e.tracks.Track(e.currentTrack); ok {
		u.TrackName = t.TrackName
	} else if objs := e.index.Track(e.currentTrack); len(objs) > 0 {
		u.TrackName = objs[0].UserData().TrackName
	}
	return u
}

func trackRecord(u core.UserData) core.TrackObject {
	return core.TrackObject{
		TrackID:   u.TrackID,
		TrackName: u.TrackName,
		ClassID:   u.ClassID,
		ClassType: u.ClassType,
	}
}

// commitCreated runs add-object, add-track (series only) and select-object
// as one undo step.
func (e *Editor) commitCreated(ctx context.Context, obj annotate.Object) error {
	return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		if err := e.Execute(ctx, CmdAddObject, obj); err != nil {
			return err
		}
		if e.cfg.SeriesFrame {
			if err := e.Execute(ctx, track.CmdAddTrack, trackRecord(obj.UserData())); err != nil {
				return err
			}
		}
		return e.Execute(ctx, CmdSelectObject, obj)
	})
}

// CreateBox draws a 3D box on the current frame from three ground clicks.
func (e *Editor) CreateBox(ctx context.Context, points [3]core.Vec3) (*annotate.Box3D, error) {
	return e.createBox(ctx, TransformFrom3Points(points, e.cfg.GroundZ, e.cfg.MinBoxScale))
}

func (e *Editor) createBox(ctx context.Context, params annotate.BoxParams) (*annotate.Box3D, error) {
	frame, err := e.CurrentFrame()
	if err != nil {
		return nil, err
	}
	params.Scale = clampScale(params.Scale, e.cfg.MinBoxScale)
	box, err := e.model.CreateBox3D(frame.ID, params, e.newUserData(frame.ID, core.KindBox3D))
	if err != nil {
		return nil, err
	}
	if err := e.commitCreated(ctx, box); err != nil {
		return nil, err
	}
	return box, nil
}

// CreateRect draws a rectangle on one camera image of the current frame.
func (e *Editor) CreateRect(ctx context.Context, params annotate.RectParams) (*annotate.Rect2D, error) {
	frame, err := e.CurrentFrame()
	if err != nil {
		return nil, err
	}
	rect, err := e.model.CreateRect(frame.ID, params, e.newUserData(frame.ID, core.KindRect2D))
	if err != nil {
		return nil, err
	}
	if err := e.commitCreated(ctx, rect); err != nil {
		return nil, err
	}
	return rect, nil
}

// CreateBox2D draws a projected box on one camera image of the current
// frame.
func (e *Editor) CreateBox2D(ctx context.Context, params annotate.Box2DParams) (*annotate.Box2D, error) {
	frame, err := e.CurrentFrame()
	if err != nil {
		return nil, err
	}
	box, err := e.model.CreateBox2D(frame.ID, params, e.newUserData(frame.ID, core.KindBox2D))
	if err != nil {
		return nil, err
	}
	if err := e.commitCreated(ctx, box); err != nil {
		return nil, err
	}
	return box, nil
}

// Fitter estimates a box around the points enclosed by a top-view drag.
type Fitter interface {
	Fit(ctx context.Context, req FitRequest) (annotate.BoxParams, error)
}

// FitRequest is a two-corner drag on the current frame.
type FitRequest struct {
	FrameID string
	From    core.Vec3
	To      core.Vec3
}

// FitResult is what a fitter produced for a request.
type FitResult struct {
	Request FitRequest
	Box     annotate.BoxParams
	Err     error
}

// StartFit runs the fitter in the background and delivers exactly one
// result on the returned channel. Pass it to CompleteFit on the editor
// goroutine.
func (e *Editor) StartFit(ctx context.Context, from, to core.Vec3) (<-chan FitResult, error) {
	frame, err := e.CurrentFrame()
	if err != nil {
		return nil, err
	}
	req := FitRequest{FrameID: frame.ID, From: from, To: to}
	out := make(chan FitResult, 1)
	if e.fitter == nil {
		out <- FitResult{Request: req, Err: errors.New("no fitter configured")}
		close(out)
		return out, nil
	}
	fitter := e.fitter
	go func() {
		defer close(out)
		box, err := fitter.Fit(ctx, req)
		out <- FitResult{Request: req, Box: box, Err: err}
	}()
	return out, nil
}

// CompleteFit creates the box for a finished fit. A failed fit, or one
// computed for a frame that is no longer current, falls back to the box
// spanned by the drag corners.
func (e *Editor) CompleteFit(ctx context.Context, res FitResult) (*annotate.Box3D, error) {
	cur := e.CurrentFrameID()
	err := res.Err
	if err == nil && res.Request.FrameID != cur {
		err = ErrStaleFit
	}
	if err == nil {
		return e.createBox(ctx, res.Box)
	}

	e.logger.Debug("box fit discarded, using drag corners", "frame", cur, "error", err)
	a, b := res.Request.From, res.Request.To
	return e.CreateBox(ctx, [3]core.Vec3{a, {X: a.X, Y: b.Y, Z: a.Z}, b})
}

func lineChain(frameID, trackID string) chain.ChainID {
	return chain.ChainID(frameID + "/" + trackID)
}

// CreateLine draws a 3D polyline on the current frame. Every node becomes a
// point object of one shared track, and the whole line is one undo step.
func (e *Editor) CreateLine(ctx context.Context, points []core.Vec3) ([]*annotate.PointNode, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(points))
	}
	frame, err := e.CurrentFrame()
	if err != nil {
		return nil, err
	}
	// a line always starts its own track
	base := e.newUserData(frame.ID, core.KindPoint)
	base.TrackID, base.TrackName = "", ""
	base.IsPoint = true
	e.model.SetIDInfo(&base)
	ch := lineChain(frame.ID, base.TrackID)
	base.ChainID = string(ch)

	ids := make([]string, len(points))
	err = e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		for i, p := range points {
			u := base.Clone()
			u.ID = uuid.NewString()
			ids[i] = u.ID
			err := e.Execute(ctx, CmdChainAppend, ChainAppend{
				FrameID:  frame.ID,
				Chain:    ch,
				Position: p,
				UserData: u,
			})
			if err != nil {
				return err
			}
		}
		if e.cfg.SeriesFrame {
			if err := e.Execute(ctx, track.CmdAddTrack, trackRecord(base)); err != nil {
				return err
			}
		}
		return e.Execute(ctx, CmdSelectObject, e.lookupAll(ids))
	})
	if err != nil {
		return nil, err
	}

	out := make([]*annotate.PointNode, 0, len(ids))
	for _, o := range e.lookupAll(ids) {
		out = append(out, o.(*annotate.PointNode))
	}
	return out, nil
}

func (e *Editor) lookupAll(ids []string) []annotate.Object {
	out := make([]annotate.Object, 0, len(ids))
	for _, id := range ids {
		if o, ok := e.index.Get(id); ok {
			out = append(out, o)
		}
	}
	return out
}

// AppendPoint extends the chain of an existing line by one node.
func (e *Editor) AppendPoint(ctx context.Context, after *annotate.PointNode, pos core.Vec3) (*annotate.PointNode, error) {
	tail, err := e.chains.Backward(after.Chain)
	if err != nil {
		return nil, err
	}
	if len(tail) > 0 && tail[0] != after.Node {
		return e.InsertPoint(ctx, after, pos)
	}
	u := e.pointUserData(after)
	err = e.Execute(ctx, CmdChainAppend, ChainAppend{
		FrameID:  after.FrameID(),
		Chain:    after.Chain,
		Position: pos,
		UserData: u,
	})
	if err != nil {
		return nil, err
	}
	return e.pointByID(u.ID)
}

// InsertPoint adds a node right after the given one.
func (e *Editor) InsertPoint(ctx context.Context, after *annotate.PointNode, pos core.Vec3) (*annotate.PointNode, error) {
	u := e.pointUserData(after)
	err := e.Execute(ctx, CmdChainInsert, ChainInsert{
		FrameID:  after.FrameID(),
		After:    after.Node,
		Position: pos,
		UserData: u,
	})
	if err != nil {
		return nil, err
	}
	return e.pointByID(u.ID)
}

// pointUserData copies the label of a sibling node under a fresh id.
func (e *Editor) pointUserData(sibling *annotate.PointNode) core.UserData {
	u := sibling.UserData()
	u.ID = uuid.NewString()
	return u
}

func (e *Editor) pointByID(id string) (*annotate.PointNode, error) {
	o, ok := e.index.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", annotate.ErrObjectNotFound, id)
	}
	p, ok := o.(*annotate.PointNode)
	if !ok {
		return nil, fmt.Errorf("%s is not a point", id)
	}
	return p, nil
}

// DragPoint moves a node live, without recording history. Finish the drag
// with CommitMove.
func (e *Editor) DragPoint(p *annotate.PointNode, pos core.Vec3) error {
	return e.chains.Move(p.Node, pos)
}

// CommitMove records a finished drag that started at from as one undoable
// move.
func (e *Editor) CommitMove(ctx context.Context, p *annotate.PointNode, from core.Vec3) error {
	n, err := e.chains.Node(p.Node)
	if err != nil {
		return err
	}
	return e.Execute(ctx, CmdChainMove, ChainMove{Node: p.Node, From: from, To: n.Position})
}

// RemovePoint deletes one node of a line; its neighbours are joined.
func (e *Editor) RemovePoint(ctx context.Context, p *annotate.PointNode) error {
	return e.Execute(ctx, CmdDeleteObject, p)
}
