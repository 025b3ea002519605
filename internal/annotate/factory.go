package annotate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/basicai/pceditor/internal/cache"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/pkg/core"
)

// ErrInvalidArgument is returned when geometry parameters are unusable.
var ErrInvalidArgument = errors.New("invalid argument")

// BoxParams describes a new 3D box.
type BoxParams struct {
	Position core.Vec3
	Scale    core.Vec3 `validate:"gt=0"`
	Rotation core.Euler
}

// RectParams describes a new 2D rectangle.
type RectParams struct {
	ViewID string    `validate:"required"`
	Center core.Vec2
	Size   core.Vec2 `validate:"gt=0"`
}

// Box2DParams describes a new projected 2D box.
type Box2DParams struct {
	ViewID string `validate:"required"`
	Front  core.Quad
	Back   core.Quad
}

// PointParams binds a new point object to an existing chain node.
type PointParams struct {
	Chain chain.ChainID `validate:"required"`
	Node  chain.NodeID  `validate:"gt=0"`
}

// Vec fields are validated on their smallest component, so gt=0 on a scale
// means every axis is positive.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		vec := f.Interface().(core.Vec3)
		return math.Min(vec.X, math.Min(vec.Y, vec.Z))
	}, core.Vec3{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		vec := f.Interface().(core.Vec2)
		return math.Min(vec.X, vec.Y)
	}, core.Vec2{})
	return v
}

// Model creates annotation objects and fills in their identity.
type Model struct {
	counter  *cache.SafeCounter
	validate *validator.Validate
}

// NewModel creates a Model whose track names are drawn from counter. The
// counter starts at 1 when unset.
func NewModel(counter *cache.SafeCounter) *Model {
	if counter.Value() == 0 {
		counter.Set(1)
	}
	return &Model{counter: counter, validate: newValidator()}
}

// NewTrackID returns a fresh 16 character track id.
func NewTrackID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// NextTrackName returns the next display name from the session counter.
func (m *Model) NextTrackName() string {
	return strconv.Itoa(m.counter.Next())
}

// SetIDInfo fills id, trackId and trackName when they are missing.
func (m *Model) SetIDInfo(u *core.UserData) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.TrackID == "" {
		u.TrackID = NewTrackID()
	}
	if u.TrackName == "" {
		u.TrackName = m.NextTrackName()
	}
}

// UpdateCounter moves the track name counter past the largest numeric track
// name in names, so new names never collide with loaded ones.
func (m *Model) UpdateCounter(names []string) {
	maxID := 0
	for _, n := range names {
		if v, err := strconv.Atoi(n); err == nil && v > maxID {
			maxID = v
		}
	}
	if maxID+1 > m.counter.Value() {
		m.counter.Set(maxID + 1)
	}
}

func (m *Model) check(params any) error {
	if err := m.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidArgument, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// CreateBox3D builds a 3D box on frameID.
func (m *Model) CreateBox3D(frameID string, p BoxParams, u core.UserData) (*Box3D, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	m.SetIDInfo(&u)
	return &Box3D{
		base:     newBase(frameID, u),
		Position: p.Position,
		Scale:    p.Scale,
		Rotation: p.Rotation,
	}, nil
}

// CreateRect builds a 2D rectangle on frameID.
func (m *Model) CreateRect(frameID string, p RectParams, u core.UserData) (*Rect2D, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	m.SetIDInfo(&u)
	return &Rect2D{
		base:   newBase(frameID, u),
		ViewID: p.ViewID,
		Center: p.Center,
		Size:   p.Size,
	}, nil
}

// CreateBox2D builds a projected 2D box on frameID.
func (m *Model) CreateBox2D(frameID string, p Box2DParams, u core.UserData) (*Box2D, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	if p.Front == (core.Quad{}) || p.Back == (core.Quad{}) {
		return nil, fmt.Errorf("%w: box2D needs both faces", ErrInvalidArgument)
	}
	m.SetIDInfo(&u)
	return &Box2D{
		base:   newBase(frameID, u),
		ViewID: p.ViewID,
		Front:  p.Front,
		Back:   p.Back,
	}, nil
}

// CreatePoint builds the annotation object for a chain node.
func (m *Model) CreatePoint(frameID string, p PointParams, u core.UserData) (*PointNode, error) {
	if err := m.check(p); err != nil {
		return nil, err
	}
	u.IsPoint = true
	u.ChainID = string(p.Chain)
	m.SetIDInfo(&u)
	return &PointNode{
		base:  newBase(frameID, u),
		Chain: p.Chain,
		Node:  p.Node,
	}, nil
}

// FromRecord rebuilds a box, rect or box2D from its saved form. Point records
// need a chain node and are restored by the caller.
func FromRecord(frameID string, r core.ObjectRecord) (Object, error) {
	if r.UserData.ID == "" {
		return nil, fmt.Errorf("%w: record without id", ErrInvalidArgument)
	}
	b := newBase(frameID, r.UserData)
	switch r.Kind {
	case core.KindBox3D:
		return &Box3D{base: b, Position: r.Position, Scale: r.Scale, Rotation: r.Rotation}, nil
	case core.KindRect2D:
		return &Rect2D{base: b, ViewID: r.ViewID, Center: r.Center, Size: r.Size}, nil
	case core.KindBox2D:
		return &Box2D{base: b, ViewID: r.ViewID, Front: r.Front, Back: r.Back}, nil
	default:
		return nil, fmt.Errorf("%w: cannot restore %s", ErrInvalidArgument, r.Kind)
	}
}
