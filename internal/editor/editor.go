// Package editor is the facade the front end drives. It owns the scene
// wiring, the frame list and the per-session caches, and turns every user
// gesture into commands executed through one command.Manager.
//
// An Editor is not safe for concurrent use. Callers run every method on one
// goroutine; only box fitting happens elsewhere (see StartFit).
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/cache"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/internal/command"
	"github.com/basicai/pceditor/internal/filter"
	"github.com/basicai/pceditor/internal/scene"
	"github.com/basicai/pceditor/internal/track"
	"github.com/basicai/pceditor/pkg/core"
)

// Command names registered by the editor.
const (
	CmdAddObject    = "add-object"
	CmdDeleteObject = "delete-object"
	CmdSelectObject = "select-object"
	CmdChainAppend  = "chain-append"
	CmdChainInsert  = "chain-insert"
	CmdChainMove    = "chain-move"
)

// SourceEditClass tags edits made from the class panel.
const SourceEditClass = "edit_class"

var (
	ErrFrameNotFound = errors.New("frame not found")
	ErrNoFrame       = errors.New("no frame loaded")
	ErrNoStore       = errors.New("no result store configured")
	ErrTooFewPoints  = errors.New("a line needs at least two points")
)

// Config holds the editing behaviour switches.
type Config struct {
	// SeriesFrame fans class changes out to every frame and registers
	// canonical track records on create.
	SeriesFrame  bool
	HistoryLimit int
	MinBoxScale  float64
	// GroundZ is the ground plane height used by 3-point boxes.
	GroundZ    float64
	Confidence filter.Range
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SeriesFrame:  true,
		HistoryLimit: command.DefaultHistoryLimit,
		MinBoxScale:  0.2,
		Confidence:   filter.Range{Min: 0.2, Max: 1},
	}
}

// ResultStore persists frame results. storage.Backend satisfies it.
type ResultStore interface {
	SaveResults(ctx context.Context, results []core.FrameResult, deletedFrameIDs []string) error
	LoadResults(ctx context.Context, frameIDs []string) ([]core.FrameResult, error)
}

// Option configures an Editor.
type Option func(*Editor)

// WithStore sets the backend used by Save and Load.
func WithStore(s ResultStore) Option {
	return func(e *Editor) {
		e.store = s
	}
}

// WithFitter sets the box fitting service used by StartFit.
func WithFitter(f Fitter) Option {
	return func(e *Editor) {
		e.fitter = f
	}
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// Editor is the annotation editing session.
type Editor struct {
	logger *slog.Logger
	cfg    Config
	scene  scene.Scene
	ui     UI
	store  ResultStore
	fitter Fitter

	cmds    *command.Manager
	chains  *chain.Engine
	index   *annotate.Index
	model   *annotate.Model
	tracks  *track.Manager
	classes *cache.ClassCache
	counter *cache.SafeCounter
	view    *filter.View

	frames     []core.Frame
	frameByID  map[string]int
	frameIndex int

	currentClass string
	currentTrack string
	editingTrack string
	selection    []annotate.Object
}

// New creates an editor drawing into s and talking to the user through ui.
func New(s scene.Scene, ui UI, cfg Config, opts ...Option) (*Editor, error) {
	e := &Editor{
		logger:    slog.Default(),
		cfg:       cfg,
		scene:     s,
		ui:        ui,
		chains:    chain.NewEngine(s),
		index:     annotate.NewIndex(),
		classes:   cache.NewClassCache(),
		counter:   &cache.SafeCounter{},
		view:      filter.NewView(cfg.Confidence),
		frameByID: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MinBoxScale <= 0 {
		e.cfg.MinBoxScale = DefaultConfig().MinBoxScale
	}

	cmds, err := command.NewManager(e.logger, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("creating command manager: %w", err)
	}
	e.cmds = cmds
	e.model = annotate.NewModel(e.counter)
	e.tracks = track.NewManager(cmds, e.index, e, e.logger)
	e.register()
	cmds.Subscribe(e.onChange)
	return e, nil
}

// Close releases the command manager's metric callback.
func (e *Editor) Close() error {
	return e.cmds.Close()
}

// Commands exposes the command manager, mainly to subscribe listeners.
func (e *Editor) Commands() *command.Manager { return e.cmds }

// Tracks exposes the canonical track records.
func (e *Editor) Tracks() *track.Manager { return e.tracks }

// Index exposes the object index.
func (e *Editor) Index() *annotate.Index { return e.index }

// Chains exposes the point-chain engine.
func (e *Editor) Chains() *chain.Engine { return e.chains }

// View is the filtered instance list of the track being edited.
func (e *Editor) View() *filter.View { return e.view }

// Config returns the active settings.
func (e *Editor) Config() Config { return e.cfg }

// SetSeriesFrame switches between series and single frame editing.
func (e *Editor) SetSeriesFrame(series bool) { e.cfg.SeriesFrame = series }

// Execute runs a registered command. An unknown command is also reported to
// the user.
func (e *Editor) Execute(ctx context.Context, name string, payload any) error {
	err := e.cmds.Execute(ctx, name, payload)
	if errors.Is(err, command.ErrUnknownCommand) {
		e.ui.ShowMsg(MsgError, err.Error())
	}
	return err
}

// Undo reverts the last step.
func (e *Editor) Undo(ctx context.Context) error {
	return e.cmds.Undo(ctx)
}

// Redo reapplies the last undone step.
func (e *Editor) Redo(ctx context.Context) error {
	return e.cmds.Redo(ctx)
}

// Reset drops every object, chain, track and the history. Frames and
// classes are kept.
func (e *Editor) Reset() {
	for _, id := range e.chains.Chains() {
		if _, err := e.chains.DeleteChain(id); err != nil {
			e.logger.Warn("dropping chain on reset", "chain", id, "error", err)
		}
	}
	e.chains.Forget()
	for _, fid := range e.index.Frames() {
		for _, o := range e.index.Frame(fid) {
			if !o.IsPoint() {
				e.scene.Remove(o)
			}
		}
	}
	e.index.Reset()
	e.tracks.Reset()
	e.cmds.Reset()
	e.selection = nil
	e.currentTrack = ""
	e.editingTrack = ""
	e.counter.Set(1)
	e.view.SetInstances(nil)
	e.scene.Render()
}

// SetClassTypes replaces the class configuration.
func (e *Editor) SetClassTypes(classes []core.ClassType) {
	e.classes.Set(classes)
	for _, fid := range e.index.Frames() {
		for _, o := range e.index.Frame(fid) {
			annotate.ApplyClassColor(o, e.classes)
		}
	}
}

// ClassType looks a class up by id, then by name.
func (e *Editor) ClassType(ref string) (core.ClassType, bool) {
	return e.classes.Get(ref)
}

// SetCurrentClass picks the class given to newly drawn objects.
func (e *Editor) SetCurrentClass(ref string) { e.currentClass = ref }

// CurrentTrack is the track of the last selected object, if any.
func (e *Editor) CurrentTrack() string { return e.currentTrack }

// Selection returns the selected objects.
func (e *Editor) Selection() []annotate.Object {
	return append([]annotate.Object(nil), e.selection...)
}

// UpdateIDCounter moves the track name counter past every loaded name.
func (e *Editor) UpdateIDCounter() {
	var names []string
	for _, fid := range e.index.Frames() {
		for _, o := range e.index.Frame(fid) {
			names = append(names, o.UserData().TrackName)
		}
	}
	for _, t := range e.tracks.Tracks() {
		names = append(names, t.TrackName)
	}
	e.model.UpdateCounter(names)
}

// ObjectChanged marks the object's frame dirty and recolours it.
func (e *Editor) ObjectChanged(obj annotate.Object) {
	e.markDirty(obj.FrameID())
	annotate.ApplyClassColor(obj, e.classes)
}

// onChange keeps the class panel view in sync with edits made elsewhere.
// Edits the panel made itself are skipped; the panel refreshes its own state.
func (e *Editor) onChange(ev command.Event) {
	if ev.Source == SourceEditClass {
		e.scene.Render()
		return
	}
	if e.editingTrack != "" {
		e.view.SetInstances(e.trackObjects(e.editingTrack))
	}
	e.scene.Render()
}

// withSource tags ctx with source unless it already carries one.
func withSource(ctx context.Context, source string) context.Context {
	if command.EventSource(ctx) != "" {
		return ctx
	}
	return command.WithEventSource(ctx, source)
}
