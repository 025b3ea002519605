// Package command runs named, undoable edits. Edits executed inside a group
// become one undo step, and every applied edit is announced to listeners
// together with the event source active when it ran.
package command

import (
	"context"
	"errors"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidPayload = errors.New("invalid command payload")
	ErrGroupOpen      = errors.New("cannot undo or redo inside a group")
)

// Command is one applied edit and its inverse. Apply is also used to redo.
type Command interface {
	Apply(ctx context.Context) error
	Undo(ctx context.Context) error
}

// Factory builds a command from its payload. A payload of the wrong shape
// is reported with ErrInvalidPayload.
type Factory func(payload any) (Command, error)

// Action tells listeners what happened to a command.
type Action string

const (
	ActionExecute Action = "execute"
	ActionUndo    Action = "undo"
	ActionRedo    Action = "redo"
)

// Event is the change notification sent after a command is applied or
// reverted. Source is the tag of the code path that caused it; listeners
// ignore events carrying their own tag.
type Event struct {
	Type   string
	Action Action
	Data   any
	Source string
}

// Listener receives change notifications.
type Listener func(Event)

// Option configures command registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging around apply and undo.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type registration struct {
	factory Factory
	logged  bool
}

// entry is one executed command as kept in history.
type entry struct {
	name    string
	payload any
	cmd     Command
}

// group is one undo step.
type group struct {
	entries []entry
}

// Func adapts a pair of functions to Command.
type Func struct {
	ApplyFn func(ctx context.Context) error
	UndoFn  func(ctx context.Context) error
}

func (f Func) Apply(ctx context.Context) error {
	if f.ApplyFn == nil {
		return nil
	}
	return f.ApplyFn(ctx)
}

func (f Func) Undo(ctx context.Context) error {
	if f.UndoFn == nil {
		return nil
	}
	return f.UndoFn(ctx)
}
