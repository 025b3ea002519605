package command

import "context"

type sourceKey struct{}

// WithEventSource returns a context whose commands are tagged with source.
func WithEventSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// EventSource returns the source tag carried by ctx, or "".
func EventSource(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}
