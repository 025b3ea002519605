package editor

import (
	"fmt"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/pkg/core"
)

// SetFrames replaces the frame sequence and moves to the first frame.
// Frames keep the order given; Index is rewritten to match it.
func (e *Editor) SetFrames(frames []core.Frame) {
	e.frames = make([]core.Frame, len(frames))
	e.frameByID = make(map[string]int, len(frames))
	for i, f := range frames {
		f.Index = i
		e.frames[i] = f
		e.frameByID[f.ID] = i
	}
	e.frameIndex = 0
}

// Frames returns a copy of the frame sequence.
func (e *Editor) Frames() []core.Frame {
	return append([]core.Frame(nil), e.frames...)
}

// Frame returns the frame with the given id.
func (e *Editor) Frame(id string) (core.Frame, bool) {
	i, ok := e.frameByID[id]
	if !ok {
		return core.Frame{}, false
	}
	return e.frames[i], true
}

// FrameIndex is the position of the current frame.
func (e *Editor) FrameIndex() int { return e.frameIndex }

// CurrentFrame returns the frame being edited.
func (e *Editor) CurrentFrame() (core.Frame, error) {
	if len(e.frames) == 0 {
		return core.Frame{}, ErrNoFrame
	}
	return e.frames[e.frameIndex], nil
}

// CurrentFrameID returns the id of the frame being edited, or "" when no
// frame is loaded.
func (e *Editor) CurrentFrameID() string {
	f, err := e.CurrentFrame()
	if err != nil {
		return ""
	}
	return f.ID
}

// LoadFrame switches to the frame at index. Objects of other frames stay in
// the index but are hidden from the scene, polylines included.
func (e *Editor) LoadFrame(index int) error {
	if index < 0 || index >= len(e.frames) {
		return fmt.Errorf("%w: index %d", ErrFrameNotFound, index)
	}
	prev := e.CurrentFrameID()
	e.frameIndex = index
	cur := e.frames[index].ID
	if prev != cur {
		for _, o := range e.index.Frame(prev) {
			e.hide(o)
		}
		e.showChains(prev, false)
		for _, o := range e.index.Frame(cur) {
			e.show(o)
		}
		e.showChains(cur, true)
	}
	e.logger.Debug("frame loaded", "frame", cur, "index", index)
	e.scene.Render()
	return nil
}

// showChains hides or shows the chains drawn by the point objects of a frame.
func (e *Editor) showChains(frameID string, shown bool) {
	seen := make(map[chain.ChainID]bool)
	for _, o := range e.index.Frame(frameID) {
		p, ok := o.(*annotate.PointNode)
		if !ok || seen[p.Chain] {
			continue
		}
		seen[p.Chain] = true
		e.chains.SetChainShown(p.Chain, shown)
	}
}

// DirtyFrames returns the frames with unsaved changes.
func (e *Editor) DirtyFrames() []core.Frame {
	var out []core.Frame
	for _, f := range e.frames {
		if f.NeedSave {
			out = append(out, f)
		}
	}
	return out
}
