package annotate

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound = errors.New("annotation object not found")
	ErrDuplicateID    = errors.New("annotation object already exists")
)

// Index stores the objects of every frame, ordered per frame as added.
type Index struct {
	byID    map[string]Object
	byFrame map[string][]Object
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byID:    make(map[string]Object),
		byFrame: make(map[string][]Object),
	}
}

// Add appends obj to its frame.
func (x *Index) Add(obj Object) error {
	return x.InsertAt(obj, -1)
}

// InsertAt places obj at position pos within its frame; pos < 0 or past the
// end appends.
func (x *Index) InsertAt(obj Object, pos int) error {
	if _, ok := x.byID[obj.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, obj.ID())
	}
	list := x.byFrame[obj.FrameID()]
	if pos < 0 || pos >= len(list) {
		list = append(list, obj)
	} else {
		list = append(list, nil)
		copy(list[pos+1:], list[pos:])
		list[pos] = obj
	}
	x.byFrame[obj.FrameID()] = list
	x.byID[obj.ID()] = obj
	return nil
}

// Remove deletes the object and returns it with the position it held.
func (x *Index) Remove(id string) (Object, int, error) {
	obj, ok := x.byID[id]
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	list := x.byFrame[obj.FrameID()]
	pos := -1
	for i, o := range list {
		if o.ID() == id {
			pos = i
			break
		}
	}
	if pos >= 0 {
		list = append(list[:pos], list[pos+1:]...)
	}
	if len(list) == 0 {
		delete(x.byFrame, obj.FrameID())
	} else {
		x.byFrame[obj.FrameID()] = list
	}
	delete(x.byID, id)
	return obj, pos, nil
}

// Get returns the object with the given id.
func (x *Index) Get(id string) (Object, bool) {
	obj, ok := x.byID[id]
	return obj, ok
}

// Frame returns a copy of the frame's object list.
func (x *Index) Frame(frameID string) []Object {
	return append([]Object(nil), x.byFrame[frameID]...)
}

// FrameTrack returns the object of trackID on frameID.
func (x *Index) FrameTrack(frameID, trackID string) (Object, bool) {
	for _, o := range x.byFrame[frameID] {
		if o.UserData().TrackID == trackID {
			return o, true
		}
	}
	return nil, false
}

// FrameTrackAll returns every object of trackID on frameID. Chains put one
// point object per node on the same track.
func (x *Index) FrameTrackAll(frameID, trackID string) []Object {
	var out []Object
	for _, o := range x.byFrame[frameID] {
		if o.UserData().TrackID == trackID {
			out = append(out, o)
		}
	}
	return out
}

// Track returns every object of trackID across all frames.
func (x *Index) Track(trackID string) []Object {
	var out []Object
	for _, list := range x.byFrame {
		for _, o := range list {
			if o.UserData().TrackID == trackID {
				out = append(out, o)
			}
		}
	}
	return out
}

// Frames returns the ids of frames that hold at least one object.
func (x *Index) Frames() []string {
	out := make([]string, 0, len(x.byFrame))
	for id := range x.byFrame {
		out = append(out, id)
	}
	return out
}

// Len returns the total number of objects.
func (x *Index) Len() int {
	return len(x.byID)
}

// ClearFrame drops every object of the frame.
func (x *Index) ClearFrame(frameID string) {
	for _, o := range x.byFrame[frameID] {
		delete(x.byID, o.ID())
	}
	delete(x.byFrame, frameID)
}

// Reset empties the index.
func (x *Index) Reset() {
	x.byID = make(map[string]Object)
	x.byFrame = make(map[string][]Object)
}
