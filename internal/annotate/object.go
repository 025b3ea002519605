// Package annotate holds the annotation object variants and the helpers that
// create, index and label them.
package annotate

import (
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/pkg/core"
)

// Object is an annotation placed on a frame. Every object can be added to a
// scene.Scene; VisualID equals ID.
type Object interface {
	ID() string
	VisualID() string
	Kind() core.ObjectKind
	FrameID() string
	UserData() core.UserData
	SetUserData(u core.UserData)
	Visible() bool
	SetVisible(visible bool)
	Color() string
	SetColor(color string)
	IsPoint() bool
	Record() core.ObjectRecord
}

type base struct {
	userData core.UserData
	frameID  string
	visible  bool
	color    string
}

func newBase(frameID string, u core.UserData) base {
	return base{userData: u.Clone(), frameID: frameID, visible: true, color: core.DefaultColor}
}

func (b *base) ID() string { return b.userData.ID }
func (b *base) VisualID() string { return b.userData.ID }
func (b *base) FrameID() string { return b.frameID }
func (b *base) UserData() core.UserData { return b.userData.Clone() }
func (b *base) SetUserData(u core.UserData) { b.userData = u.Clone() }
func (b *base) Visible() bool { return b.visible }
func (b *base) SetVisible(visible bool) { b.visible = visible }
func (b *base) Color() string { return b.color }
func (b *base) SetColor(color string) { b.color = color }
func (b *base) IsPoint() bool { return b.userData.IsPoint }

func (b *base) record(k core.ObjectKind) core.ObjectRecord {
	return core.ObjectRecord{Kind: k, UserData: b.userData.Clone()}
}

// Box3D is a cuboid in point cloud space.
type Box3D struct {
	base
	Position core.Vec3
	Scale    core.Vec3
	Rotation core.Euler
}

func (b *Box3D) Kind() core.ObjectKind { return core.KindBox3D }
func (b *Box3D) Location() core.Vec3 { return b.Position }

func (b *Box3D) Record() core.ObjectRecord {
	r := b.record(core.KindBox3D)
	r.Position = b.Position
	r.Scale = b.Scale
	r.Rotation = b.Rotation
	return r
}

// Rect2D is an axis aligned rectangle on one camera image.
type Rect2D struct {
	base
	ViewID string
	Center core.Vec2
	Size   core.Vec2
}

func (r *Rect2D) Kind() core.ObjectKind { return core.KindRect2D }

func (r *Rect2D) Record() core.ObjectRecord {
	rec := r.record(core.KindRect2D)
	rec.Center = r.Center
	rec.Size = r.Size
	rec.ViewID = r.ViewID
	return rec
}

// Box2D is a projected cuboid on one camera image, given as front and back faces.
type Box2D struct {
	base
	ViewID string
	Front  core.Quad
	Back   core.Quad
}

func (b *Box2D) Kind() core.ObjectKind { return core.KindBox2D }

func (b *Box2D) Record() core.ObjectRecord {
	rec := b.record(core.KindBox2D)
	rec.Front = b.Front
	rec.Back = b.Back
	rec.ViewID = b.ViewID
	return rec
}

// PointNode is the annotation side of a chain node. Its position lives in
// the chain engine.
type PointNode struct {
	base
	Chain chain.ChainID
	Node  chain.NodeID
}

func (p *PointNode) Kind() core.ObjectKind { return core.KindPoint }
func (p *PointNode) IsPoint() bool { return true }

func (p *PointNode) Record() core.ObjectRecord {
	return p.record(core.KindPoint)
}

var (
	_ Object = (*Box3D)(nil)
	_ Object = (*Rect2D)(nil)
	_ Object = (*Box2D)(nil)
	_ Object = (*PointNode)(nil)
)
