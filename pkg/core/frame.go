// pkg/core/frame.go
package core

import "time"

// Frame is one position in the frame sequence.
type Frame struct {
	ID       string       `json:"id"`
	Index    int          `json:"index"`
	NeedSave bool         `json:"needSave"`
	Location *GeoLocation `json:"location,omitempty"`
}

// ClassAttr describes one attribute of a class.
type ClassAttr struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// ClassType is a label class available to annotators.
type ClassType struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Size3D *Vec3       `json:"size3D,omitempty"`
	Attrs  []ClassAttr `json:"attrs,omitempty"`
}

// TrackObject is the canonical record of a track, shared by all of its
// per-frame objects.
type TrackObject struct {
	TrackID   string         `json:"trackId"`
	TrackName string         `json:"trackName"`
	ClassID   string         `json:"classId,omitempty"`
	ClassType string         `json:"classType,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Clone returns a deep copy of t.
func (t TrackObject) Clone() TrackObject {
	out := t
	out.Attrs = CloneAttrs(t.Attrs)
	return out
}

// TrackPatch is a partial update of a TrackObject.
type TrackPatch struct {
	TrackName *string
	ClassID   *string
	ClassType *string
	Attrs     map[string]any
}

// Apply merges the patch into t and returns the result.
func (p TrackPatch) Apply(t TrackObject) TrackObject {
	out := t.Clone()
	if p.TrackName != nil {
		out.TrackName = *p.TrackName
	}
	if p.ClassID != nil {
		out.ClassID = *p.ClassID
	}
	if p.ClassType != nil {
		out.ClassType = *p.ClassType
	}
	if p.Attrs != nil {
		out.Attrs = CloneAttrs(p.Attrs)
	}
	return out
}

// ObjectRecord is the persisted form of an annotation object.
type ObjectRecord struct {
	Kind     ObjectKind `json:"kind"`
	UserData UserData   `json:"userData"`
	Position Vec3       `json:"position"`
	Scale    Vec3       `json:"scale,omitempty"`
	Rotation Euler      `json:"rotation,omitempty"`
	ViewID   string     `json:"viewId,omitempty"`
	Center   Vec2       `json:"center,omitempty"`
	Size     Vec2       `json:"size,omitempty"`
	Front    Quad       `json:"front,omitempty"`
	Back     Quad       `json:"back,omitempty"`
	// Position of the node within its chain, for point objects.
	ChainIndex int `json:"chainIndex,omitempty"`
}

// FrameResult is the saved annotation state of one frame.
type FrameResult struct {
	FrameID        string         `json:"frameId"`
	FrameIndex     int            `json:"frameIndex"`
	Location       *GeoLocation   `json:"location,omitempty"`
	Classification map[string]any `json:"classification,omitempty"`
	Objects        []ObjectRecord `json:"objects"`
	SavedAt        time.Time      `json:"savedAt"`
}
