package engine

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Tx.Get for a key with no committed value and
// no staged write.
var ErrNotFound = errors.New("key not found")

// CommitMode selects how much durability a commit waits for before the
// transaction call returns.
type CommitMode int

const (
	// CommitAsync returns once the commit decision is logged locally;
	// replicas are brought up to date in the background.
	CommitAsync CommitMode = iota
	// CommitDurable blocks until every participating replica has
	// acknowledged the commit.
	CommitDurable
)

func (m CommitMode) String() string {
	if m == CommitDurable {
		return "durable"
	}
	return "async"
}

// Body is the deferred computation a transaction executes. It may run more
// than once under contention retry, so side effects outside the store must
// be idempotent.
type Body func(tx Tx) (any, error)

// Tx is a single transaction attempt's handle. Reads observe committed state
// plus the transaction's own writes; writes are buffered until Commit.
type Tx interface {
	// Context returns the attempt's context, flagged as inside a
	// transaction. Pass it down so nested code can call txn.Abort.
	Context() context.Context

	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error

	Commit() error
	Rollback()
}

// Backend starts transaction attempts against the underlying store. The
// adapter owns retry and abort handling; a backend only reports conflicts
// via ErrConflict and performs the actual commit.
type Backend interface {
	BeginTx(ctx context.Context, mode CommitMode) (Tx, error)
}

// Engine is the narrow boundary the transaction executor calls. Begin runs
// body under the given commit mode, retrying contention failures within the
// retry budget, and returns a raw outcome: Committed, Aborted or Failed.
type Engine interface {
	Begin(ctx context.Context, mode CommitMode, retries Retries, body Body) any
}
