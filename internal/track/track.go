// Package track keeps the canonical cross-frame record of every track and
// fans label edits out to the per-frame objects that share a track id.
package track

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/command"
	"github.com/basicai/pceditor/pkg/core"
)

// Command names registered by the track manager.
const (
	CmdAddTrack       = "add-track"
	CmdUpdateTrack    = "update-track"
	CmdRemoveTrack    = "remove-track"
	CmdUpdateUserData = "update-object-user-data"
)

// ErrTrackNotFound is returned when a track id has no canonical record.
var ErrTrackNotFound = errors.New("track not found")

// State describes how far a track has spread across frames.
type State int

const (
	// Unbound: no frame has an object for the track.
	Unbound State = iota
	// Bound: at least one frame has an object, but their labels disagree.
	Bound
	// FullyPropagated: every object of the track agrees on class and attrs.
	FullyPropagated
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case FullyPropagated:
		return "fully-propagated"
	default:
		return "unknown"
	}
}

// Executor runs commands. *command.Manager satisfies it.
type Executor interface {
	Execute(ctx context.Context, name string, payload any) error
	WithGroup(ctx context.Context, fn func(ctx context.Context) error) error
}

// Observer is told about objects whose user data was changed by a command,
// including changes made by undo and redo.
type Observer interface {
	ObjectChanged(obj annotate.Object)
}

// Manager owns the canonical track records.
type Manager struct {
	exec     Executor
	index    *annotate.Index
	observer Observer
	logger   *slog.Logger

	tracks map[string]core.TrackObject
}

// NewManager creates a track manager and registers its commands on cmds.
func NewManager(cmds *command.Manager, index *annotate.Index, observer Observer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		exec:     cmds,
		index:    index,
		observer: observer,
		logger:   logger,
		tracks:   make(map[string]core.TrackObject),
	}
	m.register(cmds)
	return m
}

// Track returns a copy of the canonical record.
func (m *Manager) Track(trackID string) (core.TrackObject, bool) {
	t, ok := m.tracks[trackID]
	if !ok {
		return core.TrackObject{}, false
	}
	return t.Clone(), true
}

// Tracks returns every canonical record ordered by track id.
func (m *Manager) Tracks() []core.TrackObject {
	out := make([]core.TrackObject, 0, len(m.tracks))
	for _, t := range m.tracks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// Load replaces all records without touching history. Used on session load.
func (m *Manager) Load(tracks []core.TrackObject) {
	m.tracks = make(map[string]core.TrackObject, len(tracks))
	for _, t := range tracks {
		m.tracks[t.TrackID] = t.Clone()
	}
}

// Reset drops all records.
func (m *Manager) Reset() {
	m.tracks = make(map[string]core.TrackObject)
}

// AddTrack registers a canonical record through the add-track command.
func (m *Manager) AddTrack(ctx context.Context, t core.TrackObject) error {
	return m.exec.Execute(ctx, CmdAddTrack, t)
}

// RemoveTrack drops the canonical record through the remove-track command.
// An unknown track is logged and ignored.
func (m *Manager) RemoveTrack(ctx context.Context, trackID string) error {
	if _, ok := m.tracks[trackID]; !ok {
		m.logger.Warn("remove of unknown track ignored", "trackId", trackID)
		return nil
	}
	return m.exec.Execute(ctx, CmdRemoveTrack, trackID)
}

// SetTrackData merges patch into the canonical record. An unknown track is
// logged and ignored.
func (m *Manager) SetTrackData(ctx context.Context, trackID string, patch core.TrackPatch) error {
	if _, ok := m.tracks[trackID]; !ok {
		m.logger.Warn("update of unknown track ignored", "trackId", trackID)
		return nil
	}
	return m.exec.Execute(ctx, CmdUpdateTrack, TrackUpdate{TrackID: trackID, Patch: patch})
}

// SetDataByTrackID applies patch to the objects of trackID on each of the
// given frames. Frames without such an object are skipped. Nothing is
// executed when no frame has one.
func (m *Manager) SetDataByTrackID(ctx context.Context, trackID string, patch core.UserDataPatch, frameIDs []string) error {
	var objects []annotate.Object
	for _, f := range frameIDs {
		objects = append(objects, m.index.FrameTrackAll(f, trackID)...)
	}
	if len(objects) == 0 {
		m.logger.Debug("no objects for track on requested frames", "trackId", trackID, "frames", len(frameIDs))
		return nil
	}
	return m.exec.Execute(ctx, CmdUpdateUserData, UserDataUpdate{Objects: objects, Patch: patch})
}

// PropagateClassChange sets the class on the canonical record and on the
// track's objects in frameIDs as one undo step. Attributes are reset and the
// result is marked as a true value.
func (m *Manager) PropagateClassChange(ctx context.Context, trackID string, class core.ClassType, frameIDs []string) error {
	return m.exec.WithGroup(ctx, func(ctx context.Context) error {
		err := m.SetTrackData(ctx, trackID, core.TrackPatch{
			ClassID:   core.StringPtr(class.ID),
			ClassType: core.StringPtr(class.Name),
		})
		if err != nil {
			return err
		}
		return m.SetDataByTrackID(ctx, trackID, core.UserDataPatch{
			ClassID:      core.StringPtr(class.ID),
			ClassType:    core.StringPtr(class.Name),
			ResetAttrs:   true,
			ResultStatus: core.StringPtr(core.StatusTrueValue),
		}, frameIDs)
	})
}

// State reports the propagation state of trackID over frameIDs.
func (m *Manager) State(trackID string, frameIDs []string) State {
	var objects []annotate.Object
	for _, f := range frameIDs {
		objects = append(objects, m.index.FrameTrackAll(f, trackID)...)
	}
	if len(objects) == 0 {
		return Unbound
	}

	ref := objects[0].UserData()
	if rec, ok := m.tracks[trackID]; ok {
		ref.ClassID = rec.ClassID
		ref.ClassType = rec.ClassType
	}
	for _, o := range objects {
		u := o.UserData()
		if u.ClassID != ref.ClassID || u.ClassType != ref.ClassType {
			return Bound
		}
		if !attrsEqual(u.Attrs, ref.Attrs) {
			return Bound
		}
	}
	return FullyPropagated
}
