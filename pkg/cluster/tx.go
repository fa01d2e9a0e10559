package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
	"txmesh/pkg/engine"
)

var errFinished = errors.New("transaction already finished")

// Tx buffers a transaction's writes until Commit. Reads see the
// transaction's own staged writes first, then the committed cluster state.
type Tx struct {
	backend *Backend
	ctx     context.Context
	mode    engine.CommitMode
	id      string
	done    bool
	order   []string
	writes  map[string]common.Op
}

func newTx(ctx context.Context, backend *Backend, mode engine.CommitMode) *Tx {
	return &Tx{
		backend: backend,
		ctx:     ctx,
		mode:    mode,
		id:      uuid.NewString(),
		writes:  make(map[string]common.Op),
	}
}

func (t *Tx) ID() string {
	return t.id
}

func (t *Tx) Context() context.Context {
	return t.ctx
}

func (t *Tx) Get(key string) (string, error) {
	if op, ok := t.writes[key]; ok {
		if op.Kind == common.DeleteOp {
			return "", engine.ErrNotFound
		}
		return op.Value, nil
	}
	value, found, err := t.backend.coord.Read(key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return "", engine.ErrNotFound
	}
	return value, nil
}

func (t *Tx) Put(key, value string) error {
	if t.done {
		return errFinished
	}
	t.stage(common.Op{Kind: common.WriteOp, Key: key, Value: value})
	return nil
}

func (t *Tx) Delete(key string) error {
	if t.done {
		return errFinished
	}
	t.stage(common.Op{Kind: common.DeleteOp, Key: key})
	return nil
}

func (t *Tx) stage(op common.Op) {
	if _, ok := t.writes[op.Key]; !ok {
		t.order = append(t.order, op.Key)
	}
	t.writes[op.Key] = op
}

// writeSet flattens the buffer in first-staged order, one op per key.
func (t *Tx) writeSet() common.WriteSet {
	ops := make(common.WriteSet, 0, len(t.order))
	for _, key := range t.order {
		ops = append(ops, t.writes[key])
	}
	return ops
}

// Commit ships the writeset for two-phase commit. A contention verdict from
// the coordinator surfaces as engine.ErrConflict so the adapter can retry.
func (t *Tx) Commit() error {
	if t.done {
		return errFinished
	}
	t.done = true

	durable := t.mode == engine.CommitDurable
	status, detail, err := t.backend.coord.Commit(t.id, t.writeSet(), durable)
	if err != nil {
		return fmt.Errorf("commit %s: %w", t.id, err)
	}
	switch status {
	case client.StatusCommitted:
		return nil
	case client.StatusConflict:
		return engine.ErrConflict
	default:
		return fmt.Errorf("commit %s: %s", t.id, detail)
	}
}

// Rollback drops the local buffer. Nothing has been shipped before Commit,
// so there is no remote state to undo.
func (t *Tx) Rollback() {
	t.done = true
	t.writes = nil
	t.order = nil
}
