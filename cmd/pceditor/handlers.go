package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/dispatcher"
	"github.com/basicai/pceditor/internal/editor"
	"github.com/basicai/pceditor/internal/filter"
	"github.com/basicai/pceditor/internal/geo"
	"github.com/basicai/pceditor/internal/influx"
	"github.com/basicai/pceditor/internal/monitor"
	"github.com/basicai/pceditor/internal/session"
	"github.com/basicai/pceditor/internal/util"
	"github.com/basicai/pceditor/pkg/core"
)

var errArgs = errors.New("wrong number of arguments")

// app ties the editor to the command front end. Every editor handler runs
// on the dispatching goroutine.
type app struct {
	logger  *slog.Logger
	editor  *editor.Editor
	session *session.Context
	influx  *influx.Manager
	monitor *monitor.Service
}

func (a *app) ctx() context.Context {
	return context.Background()
}

// afterDispatch refreshes the session attributes logged with every record
// and the snapshot the status monitor writes.
func (a *app) afterDispatch() {
	cmds := a.editor.Commands()
	a.session.Update(a.editor.CurrentFrameID(), cmds.UndoDepth())
	if a.monitor == nil {
		return
	}
	a.monitor.Publish(monitor.Status{
		Dataset:     a.session.Dataset(),
		FrameID:     a.editor.CurrentFrameID(),
		Frames:      len(a.editor.Frames()),
		DirtyFrames: len(a.editor.DirtyFrames()),
		Objects:     a.editor.Index().Len(),
		Tracks:      len(a.editor.Tracks().Tracks()),
		UndoDepth:   cmds.UndoDepth(),
		RedoDepth:   cmds.RedoDepth(),
	})
}

func needArgs(e dispatcher.Event, n int) error {
	if len(e.Args) < n {
		return fmt.Errorf("%s: %w: want %d, got %d", e.Command, errArgs, n, len(e.Args))
	}
	return nil
}

func arg(e dispatcher.Event, i int) string {
	return util.FixEscapeQuotes(util.TrimQuotes(e.Args[i]))
}

// parseVec3 reads "[x,y,z]"; a missing z is 0.
func parseVec3(s string) (core.Vec3, error) {
	var c []float64
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return core.Vec3{}, fmt.Errorf("failed to parse position: %w", err)
	}
	if len(c) < 2 {
		return core.Vec3{}, fmt.Errorf("position needs at least 2 values, got %d", len(c))
	}
	v := core.Vec3{X: c[0], Y: c[1]}
	if len(c) > 2 {
		v.Z = c[2]
	}
	return v, nil
}

func (a *app) point(id string) (*annotate.PointNode, error) {
	o, ok := a.editor.Index().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", annotate.ErrObjectNotFound, id)
	}
	p, ok := o.(*annotate.PointNode)
	if !ok {
		return nil, fmt.Errorf("%s is a %s, not a point", id, o.Kind())
	}
	return p, nil
}

func objectIDs[T annotate.Object](objs []T) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ID()
	}
	return out
}

func registerLifecycleHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentVersion, BuildDate}, nil
	})

	d.Register(":DATASET:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		a.session.SetDataset(arg(e, 0))
		return "ok", nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		cmds := a.editor.Commands()
		return map[string]any{
			"dataset":   a.session.Dataset(),
			"frame":     a.editor.CurrentFrameID(),
			"frames":    len(a.editor.Frames()),
			"objects":   a.editor.Index().Len(),
			"tracks":    len(a.editor.Tracks().Tracks()),
			"undoDepth": cmds.UndoDepth(),
			"redoDepth": cmds.RedoDepth(),
			"selection": objectIDs(a.editor.Selection()),
		}, nil
	})

	d.Register(":METRIC:", func(e dispatcher.Event) (any, error) {
		if a.influx == nil {
			return nil, errors.New("edit telemetry is disabled")
		}
		// runs on the buffer goroutine, so failures are only logged
		bucket, point, err := influx.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
		if err == nil {
			err = a.influx.WritePoint(bucket, point)
		}
		if err != nil {
			a.logger.Warn("metric dropped", "error", err)
		}
		return nil, err
	}, dispatcher.Buffered(1000))
}

func registerFrameHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(":FRAMES:SET:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		frames := make([]core.Frame, len(e.Args))
		for i := range e.Args {
			frames[i] = core.Frame{ID: arg(e, i)}
		}
		a.editor.SetFrames(frames)
		return len(frames), a.editor.LoadFrame(0)
	}, dispatcher.Logged())

	d.Register(":FRAME:LOAD:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		index, err := strconv.Atoi(arg(e, 0))
		if err != nil {
			return nil, fmt.Errorf("invalid frame index: %w", err)
		}
		if err := a.editor.LoadFrame(index); err != nil {
			return nil, err
		}
		return a.editor.CurrentFrameID(), nil
	})

	d.Register(":CLASSES:SET:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		var classes []core.ClassType
		if err := json.Unmarshal([]byte(arg(e, 0)), &classes); err != nil {
			return nil, fmt.Errorf("failed to parse classes: %w", err)
		}
		a.editor.SetClassTypes(classes)
		return len(classes), nil
	}, dispatcher.Logged())

	d.Register(":CLASS:CURRENT:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		ref := arg(e, 0)
		if _, ok := a.editor.ClassType(ref); !ok {
			return nil, fmt.Errorf("%w: unknown class %q", annotate.ErrInvalidArgument, ref)
		}
		a.editor.SetCurrentClass(ref)
		return "ok", nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		dirty := len(a.editor.DirtyFrames())
		if err := a.editor.Save(a.ctx()); err != nil {
			return nil, err
		}
		return dirty, nil
	}, dispatcher.Logged())

	d.Register(":LOAD:", func(e dispatcher.Event) (any, error) {
		if err := a.editor.Load(a.ctx()); err != nil {
			return nil, err
		}
		return a.editor.Index().Len(), nil
	}, dispatcher.Logged())
}

func registerCreateHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(":BOX:CREATE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		pts, err := geo.ParsePolyline(arg(e, 0))
		if err != nil {
			return nil, err
		}
		if len(pts) != 3 {
			return nil, fmt.Errorf("%w: a box needs 3 points, got %d", annotate.ErrInvalidArgument, len(pts))
		}
		box, err := a.editor.CreateBox(a.ctx(), [3]core.Vec3{pts[0], pts[1], pts[2]})
		if err != nil {
			return nil, err
		}
		return box.ID(), nil
	})

	d.Register(":BOX:FIT:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		from, err := parseVec3(arg(e, 0))
		if err != nil {
			return nil, err
		}
		to, err := parseVec3(arg(e, 1))
		if err != nil {
			return nil, err
		}
		ch, err := a.editor.StartFit(a.ctx(), from, to)
		if err != nil {
			return nil, err
		}
		box, err := a.editor.CompleteFit(a.ctx(), <-ch)
		if err != nil {
			return nil, err
		}
		return box.ID(), nil
	})

	d.Register(":RECT:CREATE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 5); err != nil {
			return nil, err
		}
		var nums [4]float64
		for i := range nums {
			v, err := strconv.ParseFloat(arg(e, i+1), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rect value %q: %w", e.Args[i+1], err)
			}
			nums[i] = v
		}
		rect, err := a.editor.CreateRect(a.ctx(), annotate.RectParams{
			ViewID: arg(e, 0),
			Center: core.Vec2{X: nums[0], Y: nums[1]},
			Size:   core.Vec2{X: nums[2], Y: nums[3]},
		})
		if err != nil {
			return nil, err
		}
		return rect.ID(), nil
	})

	d.Register(":LINE:CREATE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		pts, err := geo.ParsePolyline(arg(e, 0))
		if err != nil {
			return nil, err
		}
		nodes, err := a.editor.CreateLine(a.ctx(), pts)
		if err != nil {
			return nil, err
		}
		return objectIDs(nodes), nil
	})
}

func registerChainHandlers(d *dispatcher.Dispatcher, a *app) {
	// pointAndPos reads "<pointID> [x,y,z]".
	pointAndPos := func(e dispatcher.Event) (*annotate.PointNode, core.Vec3, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, core.Vec3{}, err
		}
		p, err := a.point(arg(e, 0))
		if err != nil {
			return nil, core.Vec3{}, err
		}
		pos, err := parseVec3(arg(e, 1))
		return p, pos, err
	}

	d.Register(":CHAIN:APPEND:", func(e dispatcher.Event) (any, error) {
		p, pos, err := pointAndPos(e)
		if err != nil {
			return nil, err
		}
		n, err := a.editor.AppendPoint(a.ctx(), p, pos)
		if err != nil {
			return nil, err
		}
		return n.ID(), nil
	})

	d.Register(":CHAIN:INSERT:", func(e dispatcher.Event) (any, error) {
		p, pos, err := pointAndPos(e)
		if err != nil {
			return nil, err
		}
		n, err := a.editor.InsertPoint(a.ctx(), p, pos)
		if err != nil {
			return nil, err
		}
		return n.ID(), nil
	})

	d.Register(":CHAIN:MOVE:", func(e dispatcher.Event) (any, error) {
		p, pos, err := pointAndPos(e)
		if err != nil {
			return nil, err
		}
		n, err := a.editor.Chains().Node(p.Node)
		if err != nil {
			return nil, err
		}
		from := n.Position
		if err := a.editor.DragPoint(p, pos); err != nil {
			return nil, err
		}
		return "ok", a.editor.CommitMove(a.ctx(), p, from)
	})

	d.Register(":CHAIN:REMOVE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		p, err := a.point(arg(e, 0))
		if err != nil {
			return nil, err
		}
		return "ok", a.editor.RemovePoint(a.ctx(), p)
	})
}

func registerLabelHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(":OBJECT:DELETE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		obj, ok := a.editor.Index().Get(arg(e, 0))
		if !ok {
			return nil, fmt.Errorf("%w: %s", annotate.ErrObjectNotFound, arg(e, 0))
		}
		return "ok", a.editor.RemoveObjectInstance(a.ctx(), obj)
	})

	d.Register(":TRACK:SELECT:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		if err := a.editor.SelectByTrackID(a.ctx(), arg(e, 0)); err != nil {
			return nil, err
		}
		return objectIDs(a.editor.Selection()), nil
	})

	d.Register(":TRACK:EDIT:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		return objectIDs(a.editor.EditTrack(arg(e, 0))), nil
	})

	d.Register(":TRACK:DELETE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		return "ok", a.editor.DeleteTrack(a.ctx(), arg(e, 0))
	}, dispatcher.Logged())

	d.Register(":TRACK:VISIBLE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		visible, err := strconv.ParseBool(arg(e, 1))
		if err != nil {
			return nil, fmt.Errorf("invalid visibility: %w", err)
		}
		return "ok", a.editor.ToggleTrackVisible(a.ctx(), arg(e, 0), visible)
	})

	// With no class given the user is asked for one.
	d.Register(":TRACK:CLASS:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		if len(e.Args) == 1 {
			return "ok", a.editor.PickClass(a.ctx(), arg(e, 0))
		}
		return "ok", a.editor.ChangeClass(a.ctx(), arg(e, 0), arg(e, 1))
	}, dispatcher.Logged())

	d.Register(":TRACK:ATTRS:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		var attrs map[string]any
		if err := json.Unmarshal([]byte(arg(e, 1)), &attrs); err != nil {
			return nil, fmt.Errorf("failed to parse attrs: %w", err)
		}
		return "ok", a.editor.SetTrackAttrs(a.ctx(), arg(e, 0), attrs)
	})

	d.Register(":ATTRS:COPY:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		return "ok", a.editor.CopyAttrsFrom(a.ctx(), arg(e, 0), a.editor.Selection())
	})

	d.Register(":FILTER:CONFIDENCE:", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		lo, err := strconv.ParseFloat(arg(e, 0), 64)
		if err != nil {
			return nil, err
		}
		hi, err := strconv.ParseFloat(arg(e, 1), 64)
		if err != nil {
			return nil, err
		}
		if err := a.editor.View().SetRange(filter.Range{Min: lo, Max: hi}); err != nil {
			return nil, err
		}
		return objectIDs(a.editor.View().Filtered()), nil
	})

	d.Register(":FILTER:CLASS:", func(e dispatcher.Event) (any, error) {
		class := ""
		if len(e.Args) > 0 {
			class = arg(e, 0)
		}
		a.editor.View().SetClassFilter(class)
		return objectIDs(a.editor.View().Filtered()), nil
	})

	d.Register(":FILTER:TOGGLE:", func(e dispatcher.Event) (any, error) {
		return "ok", a.editor.ToggleFilteredVisible(a.ctx())
	})

	d.Register(":FILTER:REMOVE:", func(e dispatcher.Event) (any, error) {
		return "ok", a.editor.RemoveFiltered(a.ctx())
	}, dispatcher.Logged())
}

func registerHistoryHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(":UNDO:", func(e dispatcher.Event) (any, error) {
		step := strings.Join(a.editor.Commands().LastStep(), ",")
		if err := a.editor.Undo(a.ctx()); err != nil {
			return nil, err
		}
		return step, nil
	})

	d.Register(":REDO:", func(e dispatcher.Event) (any, error) {
		if err := a.editor.Redo(a.ctx()); err != nil {
			return nil, err
		}
		return strings.Join(a.editor.Commands().LastStep(), ","), nil
	})
}

func registerHandlers(d *dispatcher.Dispatcher, a *app) {
	registerLifecycleHandlers(d, a)
	registerFrameHandlers(d, a)
	registerCreateHandlers(d, a)
	registerChainHandlers(d, a)
	registerLabelHandlers(d, a)
	registerHistoryHandlers(d, a)
}
