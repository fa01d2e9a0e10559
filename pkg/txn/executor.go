package txn

import (
	"context"

	"github.com/rs/zerolog"

	"txmesh/pkg/engine"
)

// Executor is the public entry to the transaction layer. Each entry point
// takes a body and a retry budget (engine.Unbounded by default via the zero
// value) and runs it atomically against the engine.
//
// The Run* methods return an Outcome and never fail; the *OrFail methods
// unwrap it, returning the success value or a typed error (*AbortedError,
// *FailedError).
type Executor struct {
	eng engine.Engine
	log zerolog.Logger
}

func NewExecutor(eng engine.Engine, log zerolog.Logger) *Executor {
	return &Executor{
		eng: eng,
		log: log.With().Str("component", "txn").Logger(),
	}
}

// RunAsync executes body under fire-and-forget commit: control returns once
// the commit decision is logged, without waiting for replica durability.
func (e *Executor) RunAsync(ctx context.Context, body engine.Body, retries engine.Retries) Outcome {
	return e.run(ctx, engine.CommitAsync, retries, body)
}

// RunAsyncOrFail is RunAsync with the failure branch unwrapped into an error.
func (e *Executor) RunAsyncOrFail(ctx context.Context, body engine.Body, retries engine.Retries) (any, error) {
	return e.run(ctx, engine.CommitAsync, retries, body).Unwrap()
}

// RunDurable executes body under durability-confirmed commit: it blocks
// until every participating node acknowledges the commit.
func (e *Executor) RunDurable(ctx context.Context, body engine.Body, retries engine.Retries) Outcome {
	return e.run(ctx, engine.CommitDurable, retries, body)
}

// RunDurableOrFail is RunDurable with the failure branch unwrapped into an
// error.
func (e *Executor) RunDurableOrFail(ctx context.Context, body engine.Body, retries engine.Retries) (any, error) {
	return e.run(ctx, engine.CommitDurable, retries, body).Unwrap()
}

func (e *Executor) run(ctx context.Context, mode engine.CommitMode, retries engine.Retries, body engine.Body) Outcome {
	outcome := Classify(e.eng.Begin(ctx, mode, retries, body))
	e.log.Debug().
		Str("mode", mode.String()).
		Str("retries", retries.String()).
		Str("outcome", outcome.Kind.String()).
		Msg("transaction finished")
	return outcome
}
