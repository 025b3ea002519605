// pkg/core/annotation.go
package core

// ObjectKind identifies an annotation variant.
type ObjectKind string

const (
	KindBox3D  ObjectKind = "3D_BOX"
	KindRect2D ObjectKind = "2D_RECT"
	KindBox2D  ObjectKind = "2D_BOX"
	KindPoint  ObjectKind = "3D_POINT"
)

// Result status values carried in UserData.ResultStatus.
const (
	StatusTrueValue = "True_Value"
	StatusPredicted = "Predicted"
)

// Result types carried in UserData.ResultType.
const (
	ResultTypeManual = "Manual"
	ResultTypeModel  = "Model"
)

// DefaultColor is used when an object's class has no configured color.
const DefaultColor = "#ffffff"

// UserData is the label payload attached to every annotation object.
type UserData struct {
	ID           string         `json:"id"`
	TrackID      string         `json:"trackId"`
	TrackName    string         `json:"trackName"`
	ClassID      string         `json:"classId,omitempty"`
	ClassType    string         `json:"classType,omitempty"`
	Attrs        map[string]any `json:"attrs,omitempty"`
	ResultStatus string         `json:"resultStatus,omitempty"`
	ResultType   string         `json:"resultType,omitempty"`
	ModelClass   string         `json:"modelClass,omitempty"`
	SourceID     string         `json:"sourceId,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	IsPoint      bool           `json:"isPoint,omitempty"`
	ChainID      string         `json:"chainId,omitempty"`
}

// ConfidenceOrZero returns the confidence score, treating a missing score as 0.
func (u UserData) ConfidenceOrZero() float64 {
	if u.Confidence == nil {
		return 0
	}
	return *u.Confidence
}

// Clone returns a deep copy of u.
func (u UserData) Clone() UserData {
	out := u
	out.Attrs = CloneAttrs(u.Attrs)
	if u.Confidence != nil {
		c := *u.Confidence
		out.Confidence = &c
	}
	return out
}

// CloneAttrs deep-copies an attribute map. Nested maps and slices are copied;
// scalar values are shared.
func CloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneAttrs(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// UserDataPatch is a partial update of UserData. Nil fields are left untouched.
type UserDataPatch struct {
	TrackName    *string
	ClassID      *string
	ClassType    *string
	Attrs        map[string]any
	ResetAttrs   bool
	ResultStatus *string
	Confidence   *float64
}

// Apply merges the patch into u and returns the result. Attrs replace the
// existing map; ResetAttrs clears it when Attrs is nil.
func (p UserDataPatch) Apply(u UserData) UserData {
	out := u.Clone()
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
	} else if p.ResetAttrs {
		out.Attrs = map[string]any{}
	}
	if p.ResultStatus != nil {
		out.ResultStatus = *p.ResultStatus
	}
	if p.Confidence != nil {
		c := *p.Confidence
		out.Confidence = &c
	}
	return out
}

// Empty reports whether the patch changes nothing.
func (p UserDataPatch) Empty() bool {
	return p.TrackName == nil && p.ClassID == nil && p.ClassType == nil &&
		p.Attrs == nil && !p.ResetAttrs && p.ResultStatus == nil && p.Confidence == nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
