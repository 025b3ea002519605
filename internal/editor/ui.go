package editor

import (
	"context"
	"errors"
)

// ErrCancelled is returned by UI implementations when the user dismisses a
// dialog.
var ErrCancelled = errors.New("cancelled by user")

// MsgLevel is the severity of a toast message.
type MsgLevel string

const (
	MsgInfo    MsgLevel = "info"
	MsgSuccess MsgLevel = "success"
	MsgWarning MsgLevel = "warning"
	MsgError   MsgLevel = "error"
)

// Confirm is a yes/no question.
type Confirm struct {
	Title string
	Text  string
}

// Modal kinds the editor opens.
const (
	ModalClass = "class"
)

// UI is the small set of dialogs the editor needs from the front end. The
// blocking calls honour ctx cancellation.
type UI interface {
	ShowConfirm(ctx context.Context, c Confirm) (bool, error)
	ShowModal(ctx context.Context, kind string, payload any) (any, error)
	ShowMsg(level MsgLevel, text string)
}

// confirm asks the question and folds a dismissed dialog into "no".
func (e *Editor) confirm(ctx context.Context, c Confirm) (bool, error) {
	ok, err := e.ui.ShowConfirm(ctx, c)
	if errors.Is(err, ErrCancelled) {
		return false, nil
	}
	return ok, err
}
