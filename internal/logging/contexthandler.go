package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns the session attributes attached to every record,
// such as the dataset, the current frame and the undo depth.
type ContextProvider func() []slog.Attr

// ContextHandler adds the provider's attributes to each record at the top
// level, outside any group opened with WithGroup. A key the record or the
// logger already sets at the top level wins over the session value.
type ContextHandler struct {
	base     slog.Handler
	provider ContextProvider

	// WithAttrs/WithGroup calls, replayed on top of the session attrs
	ops []handlerOp
	// top-level keys set through WithAttrs
	keys map[string]bool
}

type handlerOp struct {
	attrs []slog.Attr
	group string
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{base: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	inner := h.base
	if h.provider != nil {
		if attrs := h.sessionAttrs(r); len(attrs) > 0 {
			inner = inner.WithAttrs(attrs)
		}
	}
	for _, op := range h.ops {
		if op.group != "" {
			inner = inner.WithGroup(op.group)
		} else {
			inner = inner.WithAttrs(op.attrs)
		}
	}
	return inner.Handle(ctx, r)
}

func (h *ContextHandler) sessionAttrs(r slog.Record) []slog.Attr {
	attrs := h.provider()
	if len(attrs) == 0 {
		return nil
	}
	taken := make(map[string]bool, len(h.keys)+r.NumAttrs())
	for k := range h.keys {
		taken[k] = true
	}
	if !h.grouped() {
		r.Attrs(func(a slog.Attr) bool {
			taken[a.Key] = true
			return true
		})
	}
	out := attrs[:0:0]
	for _, a := range attrs {
		if !taken[a.Key] {
			out = append(out, a)
		}
	}
	return out
}

func (h *ContextHandler) grouped() bool {
	for _, op := range h.ops {
		if op.group != "" {
			return true
		}
	}
	return false
}

func (h *ContextHandler) with(op handlerOp) *ContextHandler {
	c := &ContextHandler{
		base:     h.base,
		provider: h.provider,
		ops:      append(h.ops[:len(h.ops):len(h.ops)], op),
		keys:     h.keys,
	}
	if op.group == "" && !h.grouped() {
		c.keys = make(map[string]bool, len(h.keys)+len(op.attrs))
		for k := range h.keys {
			c.keys[k] = true
		}
		for _, a := range op.attrs {
			c.keys[a.Key] = true
		}
	}
	return c
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(handlerOp{attrs: attrs})
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(handlerOp{group: name})
}
