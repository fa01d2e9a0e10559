package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Adapter drives transaction attempts against a Backend. It owns the retry
// loop, the inside-transaction flag and the abort trap; the backend only
// stages, reads and commits.
type Adapter struct {
	backend Backend
	log     zerolog.Logger
}

func NewAdapter(backend Backend, log zerolog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		log:     log.With().Str("component", "engine").Logger(),
	}
}

// Begin executes body under mode, re-invoking it from scratch on contention
// until the retry budget runs out. Aborts and non-contention failures are
// terminal on the first occurrence.
func (a *Adapter) Begin(ctx context.Context, mode CommitMode, retries Retries, body Body) any {
	retried := 0
	for {
		raw, conflict := a.attempt(ctx, mode, body)
		if !conflict {
			return raw
		}
		if !retries.Allows(retried) {
			a.log.Debug().
				Str("mode", mode.String()).
				Int("attempts", retried+1).
				Msg("retry budget exhausted")
			return Failed{Detail: fmt.Errorf("retry budget %s exhausted after %d attempts: %w",
				retries, retried+1, ErrConflict)}
		}
		retried++
		a.log.Debug().
			Str("mode", mode.String()).
			Int("retry", retried).
			Msg("retrying after conflict")
	}
}

// attempt runs body exactly once. conflict=true means the attempt lost to
// contention and the caller may retry; raw is meaningless in that case.
func (a *Adapter) attempt(ctx context.Context, mode CommitMode, body Body) (raw any, conflict bool) {
	tx, err := a.backend.BeginTx(MarkInside(ctx), mode)
	if err != nil {
		if IsContention(err) {
			return nil, true
		}
		return Failed{Detail: fmt.Errorf("begin: %w", err)}, false
	}

	finished := false
	defer func() {
		if !finished {
			tx.Rollback()
		}
		if r := recover(); r != nil {
			if p, ok := r.(AbortPayload); ok {
				raw, conflict = Aborted{Reason: p.Reason}, false
				return
			}
			raw, conflict = Failed{Detail: fmt.Errorf("transaction body panicked: %v", r)}, false
		}
	}()

	value, err := body(tx)
	if err != nil {
		if IsContention(err) {
			return nil, true
		}
		return Failed{Detail: err}, false
	}

	if err := tx.Commit(); err != nil {
		if IsContention(err) {
			return nil, true
		}
		return Failed{Detail: fmt.Errorf("commit: %w", err)}, false
	}
	finished = true
	return Committed{Value: value}, false
}
