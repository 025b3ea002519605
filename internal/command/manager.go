package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/basicai/pceditor/internal/queue"
)

// DefaultHistoryLimit bounds the undo stack when no limit is configured.
const DefaultHistoryLimit = 100

// Manager executes registered commands and keeps their undo history. It is
// not safe for concurrent use; all edits run on the editor goroutine.
type Manager struct {
	registry map[string]registration
	logger   *slog.Logger

	undo *queue.Stack[*group]
	redo *queue.Stack[*group]

	// open group, nil outside WithGroup
	open    *group
	pending *queue.Queue[Event]

	listeners  map[int]Listener
	listenerID int

	// OTEL metrics
	executed metric.Int64Counter
	undone   metric.Int64Counter
	redone   metric.Int64Counter
	depth    metric.Int64ObservableGauge
	reg      metric.Registration
}

// NewManager creates a Manager with the given history limit (<= 0 uses
// DefaultHistoryLimit). Uses the global OTel meter for metrics.
func NewManager(logger *slog.Logger, historyLimit int) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	m := &Manager{
		registry:  make(map[string]registration),
		logger:    logger,
		undo:      queue.NewStack[*group](historyLimit),
		redo:      queue.NewStack[*group](historyLimit),
		pending:   queue.New[Event](),
		listeners: make(map[int]Listener),
	}

	mt := meter()
	var err error

	m.executed, err = mt.Int64Counter(
		"command.executed",
		metric.WithDescription("Total commands executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executed counter: %w", err)
	}

	m.undone, err = mt.Int64Counter(
		"command.undone",
		metric.WithDescription("Total undo steps applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating undone counter: %w", err)
	}

	m.redone, err = mt.Int64Counter(
		"command.redone",
		metric.WithDescription("Total redo steps applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating redone counter: %w", err)
	}

	m.depth, err = mt.Int64ObservableGauge(
		"command.history.depth",
		metric.WithDescription("Current number of undo steps"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating history gauge: %w", err)
	}

	m.reg, err = mt.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.depth, int64(m.undo.Len()))
			return nil
		},
		m.depth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering history callback: %w", err)
	}

	return m, nil
}

// Close unregisters the history gauge callback. The manager must not be
// observed after Close; calling it twice is a no-op.
func (m *Manager) Close() error {
	if m.reg == nil {
		return nil
	}
	err := m.reg.Unregister()
	m.reg = nil
	return err
}

// Register adds a command factory under name, replacing any previous one.
func (m *Manager) Register(name string, f Factory, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	m.registry[name] = registration{factory: f, logged: cfg.logged}
}

// Has reports whether a command is registered under name.
func (m *Manager) Has(name string) bool {
	_, ok := m.registry[name]
	return ok
}

// Names returns the registered command names, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.registry))
	for name := range m.registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subscribe adds a listener and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenerID++
	id := m.listenerID
	m.listeners[id] = l
	return func() {
		delete(m.listeners, id)
	}
}

// Execute builds and applies the named command. Outside a group it becomes
// its own undo step; inside one it is appended to the open group. Any
// successful execute clears the redo stack.
func (m *Manager) Execute(ctx context.Context, name string, payload any) error {
	reg, ok := m.registry[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	cmd, err := reg.factory(payload)
	if err != nil {
		return fmt.Errorf("building %s: %w", name, err)
	}

	start := time.Now()
	if err := cmd.Apply(ctx); err != nil {
		if reg.logged {
			m.logger.Error("command failed", "command", name, "duration", time.Since(start), "error", err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	if reg.logged {
		m.logger.Debug("command applied", "command", name, "duration", time.Since(start), "source", EventSource(ctx))
	}
	m.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("command", name)))

	e := entry{name: name, payload: payload, cmd: cmd}
	ev := Event{Type: name, Action: ActionExecute, Data: payload, Source: EventSource(ctx)}

	m.redo.Clear()
	if m.open != nil {
		m.open.entries = append(m.open.entries, e)
		m.pending.Push(ev)
		return nil
	}

	m.pushUndo(&group{entries: []entry{e}})
	m.notify(ev)
	return nil
}

// WithGroup runs fn so that every command it executes becomes a single undo
// step. Nested calls join the outermost group. When fn fails or panics the
// commands that already ran are still committed as one step; nothing is
// rolled back. An empty group leaves history untouched.
func (m *Manager) WithGroup(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.open != nil {
		return fn(ctx)
	}

	m.open = &group{}
	defer func() {
		g := m.open
		m.open = nil
		if g == nil {
			// history was reset inside the group
			return
		}
		if len(g.entries) > 0 {
			m.pushUndo(g)
		}
		if err != nil && len(g.entries) > 0 {
			m.logger.Warn("group committed after failure", "commands", len(g.entries), "error", err)
		}
		m.pending.Drain(m.notify)
	}()

	return fn(ctx)
}

// WithEventSource runs fn with source attached to its context, so listeners
// can recognise the changes fn causes.
func (m *Manager) WithEventSource(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	return fn(WithEventSource(ctx, source))
}

// Undo reverts the most recent step, commands in reverse order. With an
// empty history it does nothing.
func (m *Manager) Undo(ctx context.Context) error {
	if m.open != nil {
		return ErrGroupOpen
	}
	g, ok := m.undo.Pop()
	if !ok {
		return nil
	}

	var errs []error
	for i := len(g.entries) - 1; i >= 0; i-- {
		e := g.entries[i]
		if err := e.cmd.Undo(ctx); err != nil {
			m.logger.Error("undo failed", "command", e.name, "error", err)
			errs = append(errs, fmt.Errorf("undo %s: %w", e.name, err))
		}
	}
	m.redo.Push(g)
	m.undone.Add(ctx, 1)

	source := EventSource(ctx)
	for i := len(g.entries) - 1; i >= 0; i-- {
		e := g.entries[i]
		m.notify(Event{Type: e.name, Action: ActionUndo, Data: e.payload, Source: source})
	}
	return errors.Join(errs...)
}

// Redo re-applies the most recently undone step in original order. With
// nothing to redo it does nothing.
func (m *Manager) Redo(ctx context.Context) error {
	if m.open != nil {
		return ErrGroupOpen
	}
	g, ok := m.redo.Pop()
	if !ok {
		return nil
	}

	var errs []error
	for _, e := range g.entries {
		if err := e.cmd.Apply(ctx); err != nil {
			m.logger.Error("redo failed", "command", e.name, "error", err)
			errs = append(errs, fmt.Errorf("redo %s: %w", e.name, err))
		}
	}
	m.pushUndo(g)
	m.redone.Add(ctx, 1)

	source := EventSource(ctx)
	for _, e := range g.entries {
		m.notify(Event{Type: e.name, Action: ActionRedo, Data: e.payload, Source: source})
	}
	return errors.Join(errs...)
}

func (m *Manager) pushUndo(g *group) {
	if dropped := m.undo.Push(g); dropped > 0 {
		m.logger.Debug("history limit reached", "dropped", dropped)
	}
}

func (m *Manager) notify(ev Event) {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if l, ok := m.listeners[id]; ok {
			l(ev)
		}
	}
}

// CanUndo reports whether there is a step to undo.
func (m *Manager) CanUndo() bool { return m.undo.Len() > 0 }

// CanRedo reports whether there is a step to redo.
func (m *Manager) CanRedo() bool { return m.redo.Len() > 0 }

// UndoDepth returns the number of undo steps.
func (m *Manager) UndoDepth() int { return m.undo.Len() }

// RedoDepth returns the number of redo steps.
func (m *Manager) RedoDepth() int { return m.redo.Len() }

// InGroup reports whether a group is open.
func (m *Manager) InGroup() bool { return m.open != nil }

// LastStep returns the command names of the most recent undo step.
func (m *Manager) LastStep() []string {
	g, ok := m.undo.Peek()
	if !ok {
		return nil
	}
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.name
	}
	return out
}

// SetHistoryLimit changes the undo limit, dropping the oldest steps if needed.
func (m *Manager) SetHistoryLimit(limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m.undo.SetLimit(limit)
	m.redo.SetLimit(limit)
}

// Reset clears history. Registered commands and listeners stay.
func (m *Manager) Reset() {
	m.undo.Clear()
	m.redo.Clear()
	m.pending.Clear()
	m.open = nil
}
