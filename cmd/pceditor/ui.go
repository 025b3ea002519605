package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/basicai/pceditor/internal/editor"
)

// cliUI answers editor dialogs on the terminal. With autoConfirm set every
// confirmation is accepted without reading input.
type cliUI struct {
	in          *bufio.Reader
	out         io.Writer
	autoConfirm bool
}

func newCLIUI(in *bufio.Reader, out io.Writer, autoConfirm bool) *cliUI {
	return &cliUI{in: in, out: out, autoConfirm: autoConfirm}
}

func (u *cliUI) readAnswer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := u.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", editor.ErrCancelled
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (u *cliUI) ShowConfirm(ctx context.Context, c editor.Confirm) (bool, error) {
	if u.autoConfirm {
		return true, nil
	}
	fmt.Fprintf(u.out, "%s: %s [y/N] ", c.Title, c.Text)
	answer, err := u.readAnswer(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ShowModal only knows the class picker. An empty answer closes it.
func (u *cliUI) ShowModal(ctx context.Context, kind string, payload any) (any, error) {
	if kind != editor.ModalClass {
		return nil, fmt.Errorf("unsupported dialog %q", kind)
	}
	fmt.Fprint(u.out, "class: ")
	answer, err := u.readAnswer(ctx)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, editor.ErrCancelled
	}
	return answer, nil
}

func (u *cliUI) ShowMsg(level editor.MsgLevel, text string) {
	fmt.Fprintf(u.out, "[%s] %s\n", level, text)
}
