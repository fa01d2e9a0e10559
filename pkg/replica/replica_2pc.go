package replica

import (
	"fmt"
	"time"

	"txmesh/pkg/common"
)

// prepare stages a writeset and locks its keys. A key already locked by
// another transaction is a contention failure: the writeset is refused and
// nothing is staged.
func (r *Replica) prepare(txID string, ops common.WriteSet) (conflict bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasSchema() {
		return false, ErrNoSchema
	}
	if _, exists := r.txs[txID]; exists {
		// Duplicate prepare, already staged.
		return false, nil
	}

	for _, op := range ops {
		if holder, ok := r.locked[op.Key]; ok && holder != txID {
			r.log.Debug().
				Str("tx", txID).
				Str("key", op.Key).
				Str("holder", holder).
				Msg("refusing prepare for locked key")
			if err := r.wal.AppendState(txID, common.Aborted); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	for _, op := range ops {
		r.locked[op.Key] = txID
	}
	for _, op := range ops {
		if op.Kind != common.WriteOp {
			continue
		}
		if err := r.temp.Put(tempKey(txID, op.Key), op.Value); err != nil {
			r.releaseLocks(txID, ops)
			return false, fmt.Errorf("stage %s: %w", op.Key, err)
		}
	}

	for _, op := range ops {
		if err := r.wal.Append(txID, common.Prepared, op.Kind, op.Key); err != nil {
			r.releaseLocks(txID, ops)
			return false, err
		}
	}
	r.txs[txID] = &txRecord{id: txID, ops: ops, state: common.Prepared}
	return false, nil
}

// commit promotes a prepared writeset into the committed store. Commits are
// idempotent: a transaction this replica no longer knows about has already
// been resolved.
func (r *Replica) commit(txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(txID)
}

func (r *Replica) commitLocked(txID string) error {
	tx, ok := r.txs[txID]
	if !ok || tx.state != common.Prepared {
		return nil
	}

	for _, op := range tx.ops {
		switch op.Kind {
		case common.WriteOp:
			value, err := r.temp.Get(tempKey(txID, op.Key))
			if err != nil {
				return fmt.Errorf("staged value missing for tx %s key %s: %w", txID, op.Key, err)
			}
			if err := r.committed.Put(op.Key, value); err != nil {
				return fmt.Errorf("commit write %s: %w", op.Key, err)
			}
		case common.DeleteOp:
			if err := r.committed.Del(op.Key); err != nil {
				return fmt.Errorf("commit delete %s: %w", op.Key, err)
			}
		}
	}

	r.releaseLocks(txID, tx.ops)
	if err := r.wal.AppendState(txID, common.Committed); err != nil {
		return err
	}
	delete(r.txs, txID)

	// Drop staged values only after the commit record is durable, in case
	// we crash between the two.
	for _, op := range tx.ops {
		if op.Kind != common.WriteOp {
			continue
		}
		if err := r.temp.Del(tempKey(txID, op.Key)); err != nil {
			r.log.Warn().Err(err).Str("tx", txID).Str("key", op.Key).
				Msg("could not drop staged value after commit")
		}
	}
	return nil
}

// abort drops a staged writeset and releases its locks. Like commit it is
// idempotent.
func (r *Replica) abort(txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortLocked(txID)
}

func (r *Replica) abortLocked(txID string) error {
	tx, ok := r.txs[txID]
	if !ok || tx.state != common.Prepared {
		return nil
	}

	r.releaseLocks(txID, tx.ops)
	for _, op := range tx.ops {
		if op.Kind != common.WriteOp {
			continue
		}
		if err := r.temp.Del(tempKey(txID, op.Key)); err != nil {
			r.log.Warn().Err(err).Str("tx", txID).Str("key", op.Key).
				Msg("could not drop staged value on abort")
		}
	}
	if err := r.wal.AppendState(txID, common.Aborted); err != nil {
		return err
	}
	delete(r.txs, txID)
	return nil
}

// Recover replays the write-ahead log and resolves in-doubt transactions by
// asking the coordinator for its decision. Prepared transactions whose
// decision cannot be learned are aborted (presumed abort).
func (r *Replica) Recover() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.wal.Read()
	if err != nil {
		return err
	}

	states := make(map[string]common.TxState)
	opsByTx := make(map[string]common.WriteSet)
	for _, entry := range entries {
		if entry.State == common.Prepared {
			opsByTx[entry.TxID] = append(opsByTx[entry.TxID], common.Op{Kind: entry.Op, Key: entry.Key})
		}
		states[entry.TxID] = entry.State
	}

	for txID, state := range states {
		if state != common.Prepared {
			continue
		}
		ops := opsByTx[txID]
		r.txs[txID] = &txRecord{id: txID, ops: ops, state: common.Prepared}
		for _, op := range ops {
			r.locked[op.Key] = txID
		}

		switch r.askStatus(txID) {
		case common.Committed:
			r.log.Info().Str("tx", txID).Msg("committing in-doubt transaction during recovery")
			if err := r.commitLocked(txID); err != nil {
				return err
			}
		default:
			r.log.Info().Str("tx", txID).Msg("aborting in-doubt transaction during recovery")
			if err := r.abortLocked(txID); err != nil {
				return err
			}
		}
	}

	return r.cleanUpTempStore()
}

// askStatus polls the coordinator a few times; an unreachable coordinator
// reads as no decision.
func (r *Replica) askStatus(txID string) common.TxState {
	if r.status == nil {
		return common.NoState
	}
	for attempt := 0; attempt < 3; attempt++ {
		state, err := r.status(txID)
		if err == nil {
			return state
		}
		time.Sleep(100 * time.Millisecond)
	}
	r.log.Warn().Str("tx", txID).Msg("coordinator unreachable during recovery")
	return common.NoState
}

// cleanUpTempStore drops staged values that no longer belong to a prepared
// transaction.
func (r *Replica) cleanUpTempStore() error {
	keys, err := r.temp.List()
	if err != nil {
		return err
	}
	for _, key := range keys {
		txID, _ := parseTempKey(key)
		tx, ok := r.txs[txID]
		if ok && tx.state == common.Prepared {
			continue
		}
		r.log.Debug().Str("key", key).Msg("cleaning up stale temp entry")
		if err := r.temp.Del(key); err != nil {
			return err
		}
	}
	return nil
}
