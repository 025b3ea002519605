package track

import (
	"context"
	"fmt"
	"reflect"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/command"
	"github.com/basicai/pceditor/pkg/core"
)

// TrackUpdate is the payload of update-track.
type TrackUpdate struct {
	TrackID string
	Patch   core.TrackPatch
}

// UserDataUpdate is the payload of update-object-user-data.
type UserDataUpdate struct {
	Objects []annotate.Object
	Patch   core.UserDataPatch
}

func (m *Manager) register(cmds *command.Manager) {
	cmds.Register(CmdAddTrack, m.newAddTrack, command.Logged())
	cmds.Register(CmdUpdateTrack, m.newUpdateTrack, command.Logged())
	cmds.Register(CmdRemoveTrack, m.newRemoveTrack, command.Logged())
	cmds.Register(CmdUpdateUserData, m.newUpdateUserData, command.Logged())
}

func (m *Manager) newAddTrack(payload any) (command.Command, error) {
	t, ok := payload.(core.TrackObject)
	if !ok || t.TrackID == "" {
		return nil, fmt.Errorf("%w: want core.TrackObject with id", command.ErrInvalidPayload)
	}
	var prev core.TrackObject
	var had bool
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			prev, had = m.tracks[t.TrackID]
			m.tracks[t.TrackID] = t.Clone()
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			if had {
				m.tracks[t.TrackID] = prev
			} else {
				delete(m.tracks, t.TrackID)
			}
			return nil
		},
	}, nil
}

func (m *Manager) newUpdateTrack(payload any) (command.Command, error) {
	u, ok := payload.(TrackUpdate)
	if !ok {
		return nil, fmt.Errorf("%w: want track.TrackUpdate", command.ErrInvalidPayload)
	}
	var prev core.TrackObject
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			cur, ok := m.tracks[u.TrackID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrTrackNotFound, u.TrackID)
			}
			prev = cur
			m.tracks[u.TrackID] = u.Patch.Apply(cur)
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			m.tracks[u.TrackID] = prev
			return nil
		},
	}, nil
}

func (m *Manager) newRemoveTrack(payload any) (command.Command, error) {
	id, ok := payload.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: want track id", command.ErrInvalidPayload)
	}
	var prev core.TrackObject
	var had bool
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			prev, had = m.tracks[id]
			delete(m.tracks, id)
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			if had {
				m.tracks[id] = prev
			}
			return nil
		},
	}, nil
}

func (m *Manager) newUpdateUserData(payload any) (command.Command, error) {
	u, ok := payload.(UserDataUpdate)
	if !ok || len(u.Objects) == 0 {
		return nil, fmt.Errorf("%w: want track.UserDataUpdate with objects", command.ErrInvalidPayload)
	}
	objects := append([]annotate.Object(nil), u.Objects...)
	prev := make([]core.UserData, len(objects))
	return command.Func{
		ApplyFn: func(ctx context.Context) error {
			for i, o := range objects {
				prev[i] = o.UserData()
				o.SetUserData(u.Patch.Apply(prev[i]))
				m.changed(o)
			}
			return nil
		},
		UndoFn: func(ctx context.Context) error {
			for i := len(objects) - 1; i >= 0; i-- {
				objects[i].SetUserData(prev[i])
				m.changed(objects[i])
			}
			return nil
		},
	}, nil
}

func (m *Manager) changed(obj annotate.Object) {
	if m.observer != nil {
		m.observer.ObjectChanged(obj)
	}
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
