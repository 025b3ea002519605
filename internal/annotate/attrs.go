package annotate

import (
	"errors"
	"fmt"

	"github.com/basicai/pceditor/pkg/core"
)

// ErrSourceNotFound is returned when an attribute copy has no source object.
var ErrSourceNotFound = errors.New("source not found")

// CopyAttrs deep-copies the source attributes onto every target.
func CopyAttrs(source core.UserData, targets []Object) {
	for _, t := range targets {
		u := t.UserData()
		u.Attrs = core.CloneAttrs(source.Attrs)
		t.SetUserData(u)
	}
}

// SourceAttrs returns a deep copy of the attributes of the first object of
// trackID found on frameID, or on any frame when frameID is empty.
func SourceAttrs(x *Index, frameID, trackID string) (map[string]any, error) {
	var src Object
	if frameID != "" {
		src, _ = x.FrameTrack(frameID, trackID)
	} else if all := x.Track(trackID); len(all) > 0 {
		src = all[0]
	}
	if src == nil {
		return nil, fmt.Errorf("%w: track %s", ErrSourceNotFound, trackID)
	}
	attrs := core.CloneAttrs(src.UserData().Attrs)
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// CopyAttrsFromTrack copies the attributes of trackID onto targets. Targets
// are left untouched when the track has no object.
func CopyAttrsFromTrack(x *Index, frameID, trackID string, targets []Object) error {
	attrs, err := SourceAttrs(x, frameID, trackID)
	if err != nil {
		return err
	}
	CopyAttrs(core.UserData{Attrs: attrs}, targets)
	return nil
}

// ClassColors resolves class colors.
type ClassColors interface {
	Color(ref string) string
}

// ApplyClassColor paints obj with the color of its class, looked up by id
// and then by name.
func ApplyClassColor(obj Object, classes ClassColors) {
	u := obj.UserData()
	ref := u.ClassID
	if ref == "" {
		ref = u.ClassType
	}
	if ref == "" {
		obj.SetColor(core.DefaultColor)
		return
	}
	obj.SetColor(classes.Color(ref))
}
