// Package coordinator drives two-phase commit over the replica set and
// records every decision in a write-ahead log before acknowledging it.
package coordinator

import (
	"sync"

	"github.com/rs/zerolog"

	"txmesh/pkg/common"
	"txmesh/pkg/wal"
)

// ReplicaConn is the coordinator's view of one replica. client.ReplicaClient
// implements it; tests substitute fakes.
type ReplicaConn interface {
	Prepare(txID string, ops common.WriteSet) (ok bool, conflict bool, err error)
	Commit(txID string) error
	Abort(txID string) error
	Read(key string) (string, bool, error)
}

type Coordinator struct {
	replicas []ReplicaConn
	wal      *wal.Log
	log      zerolog.Logger
	metrics  *Metrics

	mu  sync.Mutex
	txs map[string]common.TxState
}

func New(replicas []ReplicaConn, walPath string, metrics *Metrics, log zerolog.Logger) (*Coordinator, error) {
	l, err := wal.Open(walPath)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		replicas: replicas,
		wal:      l,
		metrics:  metrics,
		log:      log.With().Str("component", "coordinator").Logger(),
		txs:      make(map[string]common.TxState),
	}, nil
}

func (c *Coordinator) Close() error {
	return c.wal.Close()
}

func (c *Coordinator) setState(txID string, state common.TxState) error {
	if err := c.wal.AppendState(txID, state); err != nil {
		return err
	}
	c.mu.Lock()
	c.txs[txID] = state
	c.mu.Unlock()
	return nil
}

// state reports the recorded decision for a transaction; NoState when the
// coordinator has never heard of it.
func (c *Coordinator) state(txID string) common.TxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.txs[txID]
	if !ok {
		return common.NoState
	}
	return state
}

func (c *Coordinator) forEachReplica(f func(i int, r ReplicaConn)) {
	var wg sync.WaitGroup
	wg.Add(len(c.replicas))
	for i, r := range c.replicas {
		go func(i int, r ReplicaConn) {
			defer wg.Done()
			f(i, r)
		}(i, r)
	}
	wg.Wait()
}
