package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/filter"
	"github.com/basicai/pceditor/internal/track"
	"github.com/basicai/pceditor/pkg/core"
)

// trackFrames is every frame in series mode and the current frame
// otherwise.
func (e *Editor) trackFrames() []string {
	if !e.cfg.SeriesFrame {
		if id := e.CurrentFrameID(); id != "" {
			return []string{id}
		}
		return nil
	}
	ids := make([]string, len(e.frames))
	for i, f := range e.frames {
		ids[i] = f.ID
	}
	if len(ids) == 0 {
		ids = e.index.Frames()
	}
	return ids
}

// trackObjects returns the objects of trackID on the frames in scope.
func (e *Editor) trackObjects(trackID string) []annotate.Object {
	var out []annotate.Object
	for _, f := range e.trackFrames() {
		out = append(out, e.index.FrameTrackAll(f, trackID)...)
	}
	return out
}

// EditTrack opens trackID in the class panel; the view lists its objects.
func (e *Editor) EditTrack(trackID string) []annotate.Object {
	e.editingTrack = trackID
	objs := e.trackObjects(trackID)
	e.view.SetInstances(objs)
	return objs
}

// SelectByTrackID selects the objects of trackID on the current frame.
func (e *Editor) SelectByTrackID(ctx context.Context, trackID string) error {
	objs := e.index.FrameTrackAll(e.CurrentFrameID(), trackID)
	if len(objs) == 0 {
		e.logger.Debug("select of track without objects on frame", "trackId", trackID)
		return nil
	}
	return e.Execute(ctx, CmdSelectObject, objs)
}

// DeleteTrack removes every object of trackID after the user confirms. A
// declined confirmation executes nothing.
func (e *Editor) DeleteTrack(ctx context.Context, trackID string) error {
	objs := e.index.Track(trackID)
	if len(objs) == 0 {
		return nil
	}
	name := objs[0].UserData().TrackName
	ok, err := e.confirm(ctx, Confirm{
		Title: "Delete Track",
		Text:  fmt.Sprintf("Delete all results of track %s?", name),
	})
	if err != nil || !ok {
		return err
	}
	return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		if sel := e.remainingSelection(objs); len(sel) != len(e.selection) {
			if err := e.Execute(ctx, CmdSelectObject, sel); err != nil {
				return err
			}
		}
		if err := e.Execute(ctx, CmdDeleteObject, objs); err != nil {
			return err
		}
		return e.tracks.RemoveTrack(ctx, trackID)
	})
}

// remainingSelection is the selection without the given objects.
func (e *Editor) remainingSelection(gone []annotate.Object) []annotate.Object {
	drop := make(map[string]bool, len(gone))
	for _, o := range gone {
		drop[o.ID()] = true
	}
	var out []annotate.Object
	for _, o := range e.selection {
		if !drop[o.ID()] {
			out = append(out, o)
		}
	}
	return out
}

// ToggleTrackVisible shows or hides every object of trackID in scope.
func (e *Editor) ToggleTrackVisible(ctx context.Context, trackID string, visible bool) error {
	return filter.ToggleVisible(ctx, e, e.trackObjects(trackID), visible)
}

// ToggleVisible shows or hides exactly the given objects.
func (e *Editor) ToggleVisible(ctx context.Context, objects []annotate.Object, visible bool) error {
	return filter.ToggleVisible(ctx, e, objects, visible)
}

// ToggleFilteredVisible flips the visibility of the objects currently
// passing the view filters.
func (e *Editor) ToggleFilteredVisible(ctx context.Context) error {
	return e.view.ToggleBatch(ctx, e)
}

// ChangeClass moves trackID to the class ref (id or name). In series mode
// every frame follows; otherwise only the current frame changes.
func (e *Editor) ChangeClass(ctx context.Context, trackID, ref string) error {
	class, ok := e.classes.Get(ref)
	if !ok {
		return fmt.Errorf("%w: unknown class %q", annotate.ErrInvalidArgument, ref)
	}
	ctx = withSource(ctx, SourceEditClass)
	defer e.view.Recompute()
	return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		if _, known := e.tracks.Track(trackID); !known {
			if objs := e.trackObjects(trackID); len(objs) > 0 {
				if err := e.tracks.AddTrack(ctx, trackRecord(objs[0].UserData())); err != nil {
					return err
				}
			}
		}
		return e.tracks.PropagateClassChange(ctx, trackID, class, e.trackFrames())
	})
}

// PickClass asks the user for a class and applies it to trackID. Closing
// the dialog changes nothing.
func (e *Editor) PickClass(ctx context.Context, trackID string) error {
	res, err := e.ui.ShowModal(ctx, ModalClass, e.classes.All())
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	switch v := res.(type) {
	case core.ClassType:
		return e.ChangeClass(ctx, trackID, v.ID)
	case string:
		return e.ChangeClass(ctx, trackID, v)
	default:
		return fmt.Errorf("%w: class modal returned %T", annotate.ErrInvalidArgument, res)
	}
}

// UpdateAttrs replaces the attributes of the given objects. The change is
// tagged as coming from the class panel.
func (e *Editor) UpdateAttrs(ctx context.Context, objects []annotate.Object, attrs map[string]any) error {
	if len(objects) == 0 {
		return nil
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	defer e.view.Recompute()
	return e.cmds.WithEventSource(ctx, SourceEditClass, func(ctx context.Context) error {
		return e.Execute(ctx, track.CmdUpdateUserData, track.UserDataUpdate{
			Objects: objects,
			Patch: core.UserDataPatch{
				Attrs:        attrs,
				ResultStatus: core.StringPtr(core.StatusTrueValue),
			},
		})
	})
}

// SetTrackAttrs writes attrs to the canonical record and every object of
// trackID in scope, as one undo step.
func (e *Editor) SetTrackAttrs(ctx context.Context, trackID string, attrs map[string]any) error {
	return e.cmds.WithEventSource(ctx, SourceEditClass, func(ctx context.Context) error {
		return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
			if err := e.tracks.SetTrackData(ctx, trackID, core.TrackPatch{Attrs: attrs}); err != nil {
				return err
			}
			return e.UpdateAttrs(ctx, e.trackObjects(trackID), attrs)
		})
	})
}

// CopyAttrsFrom copies the attributes of the source track's object on the
// current frame onto targets, reporting the outcome to the user.
func (e *Editor) CopyAttrsFrom(ctx context.Context, sourceTrackID string, targets []annotate.Object) error {
	attrs, err := annotate.SourceAttrs(e.index, e.CurrentFrameID(), sourceTrackID)
	if errors.Is(err, annotate.ErrSourceNotFound) {
		e.ui.ShowMsg(MsgError, "No source object found")
		return err
	}
	if err != nil {
		return err
	}
	if err := e.UpdateAttrs(ctx, targets, attrs); err != nil {
		return err
	}
	e.ui.ShowMsg(MsgSuccess, "Attributes copied")
	return nil
}

// RemoveObjectInstance deletes one object of the track being edited and
// moves the selection to what is left of the track, as one undo step.
func (e *Editor) RemoveObjectInstance(ctx context.Context, obj annotate.Object) error {
	rest := e.remainingSelection([]annotate.Object{obj})
	if trackID := obj.UserData().TrackID; trackID != "" {
		rest = nil
		for _, o := range e.trackObjects(trackID) {
			if o.ID() != obj.ID() {
				rest = append(rest, o)
			}
		}
	}
	return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		if len(rest) > 0 {
			if err := e.Execute(ctx, CmdSelectObject, rest); err != nil {
				return err
			}
		}
		return e.Execute(ctx, CmdDeleteObject, obj)
	})
}

// RemoveFiltered deletes the objects passing the view filters after the
// user confirms.
func (e *Editor) RemoveFiltered(ctx context.Context) error {
	objs := e.view.Filtered()
	if len(objs) == 0 {
		return nil
	}
	ok, err := e.confirm(ctx, Confirm{
		Title: "Delete Results",
		Text:  fmt.Sprintf("Delete %d results?", len(objs)),
	})
	if err != nil || !ok {
		return err
	}
	return e.cmds.WithGroup(ctx, func(ctx context.Context) error {
		if sel := e.remainingSelection(objs); len(sel) != len(e.selection) {
			if err := e.Execute(ctx, CmdSelectObject, sel); err != nil {
				return err
			}
		}
		return e.Execute(ctx, CmdDeleteObject, objs)
	})
}
