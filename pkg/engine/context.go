package engine

import "context"

type insideKey struct{}

// MarkInside flags ctx as running inside a transaction body. The flag lives
// on the derived context only, so it disappears when the attempt ends and is
// never visible to other goroutines' contexts.
func MarkInside(ctx context.Context) context.Context {
	return context.WithValue(ctx, insideKey{}, true)
}

// Inside reports whether ctx belongs to an active transaction attempt.
func Inside(ctx context.Context) bool {
	v, _ := ctx.Value(insideKey{}).(bool)
	return v
}
