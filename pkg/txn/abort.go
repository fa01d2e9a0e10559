package txn

import (
	"context"

	"txmesh/pkg/engine"
)

// NoReason is attached to an abort invoked with a nil reason.
const NoReason = "no reason given"

// Abort unwinds the transaction surrounding ctx with reason; the caller
// gets Failure(Aborted(reason)) or an *AbortedError depending on the entry
// point used. Aborts are never retried.
//
// Calling Abort outside a transaction is a programming error: it panics
// with ErrNoTransaction. Abort never returns normally.
func Abort(ctx context.Context, reason any) {
	if !engine.Inside(ctx) {
		panic(ErrNoTransaction)
	}
	if reason == nil {
		reason = NoReason
	}
	engine.Unwind(engine.AbortPayload{Reason: reason})
}

// Inside reports whether ctx is currently inside a transaction body. Safe
// to call from anywhere; no side effects.
func Inside(ctx context.Context) bool {
	return engine.Inside(ctx)
}
