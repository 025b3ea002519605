// Package filter derives the visible instance list from explicit filter
// settings. Derived state is recomputed only when a setter or Recompute runs.
package filter

import (
	"context"
	"fmt"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/pkg/core"
)

// CmdToggleVisible is the command that shows or hides objects.
const CmdToggleVisible = "toggle-visible"

// FilterAll disables a class or source filter.
const FilterAll = "all"

// Labeled is anything carrying annotation user data.
type Labeled interface {
	UserData() core.UserData
}

// Range is an inclusive confidence interval.
type Range struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Contains reports whether min <= c <= max.
func (r Range) Contains(c float64) bool {
	return c >= r.Min && c <= r.Max
}

// Validate rejects ranges outside [0, 1] or with min above max.
func (r Range) Validate() error {
	if r.Min < 0 || r.Max > 1 || r.Min > r.Max {
		return fmt.Errorf("invalid confidence range [%g, %g]", r.Min, r.Max)
	}
	return nil
}

// FilterByConfidence keeps items whose confidence lies in r. A missing
// confidence counts as 0.
func FilterByConfidence[T Labeled](items []T, r Range) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if r.Contains(it.UserData().ConfidenceOrZero()) {
			out = append(out, it)
		}
	}
	return out
}

// VisibilityUpdate is the payload of toggle-visible.
type VisibilityUpdate struct {
	Objects []annotate.Object
	Visible bool
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, name string, payload any) error
}

// ToggleVisible shows or hides exactly the given objects as one undoable
// command.
func ToggleVisible(ctx context.Context, exec Executor, objects []annotate.Object, visible bool) error {
	if len(objects) == 0 {
		return nil
	}
	return exec.Execute(ctx, CmdToggleVisible, VisibilityUpdate{
		Objects: append([]annotate.Object(nil), objects...),
		Visible: visible,
	})
}

// View is the filtered instance list shown to the user.
type View struct {
	rng    Range
	class  string
	source string

	instances []annotate.Object
	filtered  []annotate.Object
}

// NewView creates a view with the given confidence range and no class or
// source filter.
func NewView(r Range) *View {
	return &View{rng: r, class: FilterAll, source: FilterAll}
}

// Range returns the current confidence range.
func (v *View) Range() Range { return v.rng }

// SetRange changes the confidence range and recomputes.
func (v *View) SetRange(r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	v.rng = r
	v.Recompute()
	return nil
}

// SetInstances replaces the source list and recomputes.
func (v *View) SetInstances(objs []annotate.Object) {
	v.instances = append([]annotate.Object(nil), objs...)
	v.Recompute()
}

// SetClassFilter restricts the view to one class id or name; FilterAll
// removes the restriction.
func (v *View) SetClassFilter(class string) {
	if class == "" {
		class = FilterAll
	}
	v.class = class
	v.Recompute()
}

// SetSourceFilter restricts the view to results from one source; FilterAll
// removes the restriction.
func (v *View) SetSourceFilter(source string) {
	if source == "" {
		source = FilterAll
	}
	v.source = source
	v.Recompute()
}

// Recompute rebuilds the filtered list from the current settings.
func (v *View) Recompute() {
	byConf := FilterByConfidence(v.instances, v.rng)
	out := byConf[:0]
	for _, o := range byConf {
		u := o.UserData()
		if v.class != FilterAll && u.ClassID != v.class && u.ClassType != v.class {
			continue
		}
		if v.source != FilterAll && u.SourceID != v.source {
			continue
		}
		out = append(out, o)
	}
	v.filtered = out
}

// Filtered returns the filtered instances.
func (v *View) Filtered() []annotate.Object {
	return append([]annotate.Object(nil), v.filtered...)
}

// BatchVisible reports whether every filtered instance is visible. An empty
// view counts as visible.
func (v *View) BatchVisible() bool {
	for _, o := range v.filtered {
		if !o.Visible() {
			return false
		}
	}
	return true
}

// ToggleBatch flips the visibility of every filtered instance.
func (v *View) ToggleBatch(ctx context.Context, exec Executor) error {
	return ToggleVisible(ctx, exec, v.filtered, !v.BatchVisible())
}
