package coordinator

import (
	"fmt"
	"math/rand"
	"time"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
)

// commit runs two-phase commit for a writeset. Any replica reporting key
// contention aborts the round with StatusConflict, which the engine adapter
// treats as retryable; any hard failure aborts with StatusFailed. The
// decision is logged before anyone is told about it.
func (c *Coordinator) commit(txID string, ops common.WriteSet, durable bool) (client.CommitStatus, string, error) {
	if c.metrics != nil {
		c.metrics.Begun.Inc()
	}

	if len(ops) == 0 {
		// Read-only transaction, nothing to prepare.
		if err := c.setState(txID, common.Committed); err != nil {
			return client.StatusFailed, "", err
		}
		c.bumpCommitted(durable)
		return client.StatusCommitted, "", nil
	}

	if err := c.setState(txID, common.Started); err != nil {
		return client.StatusFailed, "", err
	}

	// Fan the prepare round out in parallel. Buffered channels allow the
	// non-blocking drain below.
	conflicts := make(chan struct{}, len(c.replicas))
	failures := make(chan error, len(c.replicas))
	c.log.Debug().Str("tx", txID).Int("ops", len(ops)).Msg("asking replicas to prepare")
	c.forEachReplica(func(i int, r ReplicaConn) {
		ok, conflict, err := r.Prepare(txID, ops)
		switch {
		case err != nil:
			failures <- fmt.Errorf("replica %d prepare: %w", i, err)
		case conflict:
			conflicts <- struct{}{}
		case !ok:
			failures <- fmt.Errorf("replica %d refused prepare", i)
		}
	})

	select {
	case err := <-failures:
		c.log.Warn().Err(err).Str("tx", txID).Msg("prepare round failed, aborting")
		if err := c.setState(txID, common.Aborted); err != nil {
			return client.StatusFailed, "", err
		}
		if c.metrics != nil {
			c.metrics.Aborted.Inc()
		}
		c.sendAbort(txID)
		return client.StatusFailed, err.Error(), nil
	default:
	}

	select {
	case <-conflicts:
		c.log.Debug().Str("tx", txID).Msg("prepare round lost to contention, aborting")
		if err := c.setState(txID, common.Aborted); err != nil {
			return client.StatusFailed, "", err
		}
		if c.metrics != nil {
			c.metrics.Conflicts.Inc()
			c.metrics.Aborted.Inc()
		}
		c.sendAbort(txID)
		return client.StatusConflict, "", nil
	default:
	}

	// Every replica is prepared; the transaction is now decided.
	if err := c.setState(txID, common.Committed); err != nil {
		return client.StatusFailed, "", err
	}
	c.bumpCommitted(durable)

	if durable {
		c.sendAndWaitForCommit(txID)
	} else {
		go c.sendAndWaitForCommit(txID)
	}
	return client.StatusCommitted, "", nil
}

func (c *Coordinator) bumpCommitted(durable bool) {
	if c.metrics == nil {
		return
	}
	mode := "async"
	if durable {
		mode = "durable"
	}
	c.metrics.Committed.WithLabelValues(mode).Inc()
}

func (c *Coordinator) sendAbort(txID string) {
	c.forEachReplica(func(i int, r ReplicaConn) {
		if err := r.Abort(txID); err != nil {
			c.log.Warn().Err(err).Str("tx", txID).Int("replica", i).Msg("abort delivery failed")
		}
	})
}

// sendAndWaitForCommit keeps nudging every replica until each one has
// acknowledged the commit. The decision is already durable, so this must
// eventually succeed rather than give up.
func (c *Coordinator) sendAndWaitForCommit(txID string) {
	c.forEachReplica(func(i int, r ReplicaConn) {
		for {
			err := r.Commit(txID)
			if err == nil {
				return
			}
			c.log.Warn().Err(err).Str("tx", txID).Int("replica", i).Msg("commit delivery failed, retrying")
			time.Sleep(100 * time.Millisecond)
		}
	})
}

// read serves a committed read from a random replica.
func (c *Coordinator) read(key string) (string, bool, error) {
	r := c.replicas[rand.Intn(len(c.replicas))]
	return r.Read(key)
}

// Recover replays the decision log and finishes whatever was in flight:
// undecided rounds are aborted, decided ones are pushed to completion.
func (c *Coordinator) Recover() error {
	entries, err := c.wal.Read()
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, entry := range entries {
		c.txs[entry.TxID] = entry.State
	}
	snapshot := make(map[string]common.TxState, len(c.txs))
	for txID, state := range c.txs {
		snapshot[txID] = state
	}
	c.mu.Unlock()

	for txID, state := range snapshot {
		switch state {
		case common.Started, common.Aborted:
			c.log.Info().Str("tx", txID).Msg("aborting transaction during recovery")
			c.sendAbort(txID)
		case common.Committed:
			c.log.Info().Str("tx", txID).Msg("completing commit during recovery")
			c.sendAndWaitForCommit(txID)
		}
	}
	return nil
}
