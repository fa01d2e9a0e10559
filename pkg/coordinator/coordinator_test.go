package coordinator

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
)

// fakeReplica scripts prepare outcomes and records delivered decisions.
type fakeReplica struct {
	mu          sync.Mutex
	conflict    bool
	prepareErr  error
	commitFails int
	prepared    []string
	committed   []string
	aborted     []string
	data        map[string]string
}

func (f *fakeReplica) Prepare(txID string, ops common.WriteSet) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareErr != nil {
		return false, false, f.prepareErr
	}
	if f.conflict {
		return false, true, nil
	}
	f.prepared = append(f.prepared, txID)
	return true, false, nil
}

func (f *fakeReplica) Commit(txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitFails > 0 {
		f.commitFails--
		return errors.New("replica unavailable")
	}
	f.committed = append(f.committed, txID)
	return nil
}

func (f *fakeReplica) Abort(txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, txID)
	return nil
}

func (f *fakeReplica) Read(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	return value, ok, nil
}

func (f *fakeReplica) committedTxs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.committed...)
}

func (f *fakeReplica) abortedTxs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborted...)
}

func newTestCoordinator(t *testing.T, replicas ...*fakeReplica) (*Coordinator, *Metrics) {
	t.Helper()
	conns := make([]ReplicaConn, len(replicas))
	for i, r := range replicas {
		conns[i] = r
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	c, err := New(conns, filepath.Join(t.TempDir(), "wal.log"), metrics, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, metrics
}

var testOps = common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}}

func TestDurableCommitAcksAfterEveryReplica(t *testing.T) {
	r1, r2 := &fakeReplica{}, &fakeReplica{}
	c, metrics := newTestCoordinator(t, r1, r2)

	status, detail, err := c.commit("tx1", testOps, true)
	require.NoError(t, err)
	assert.Equal(t, client.StatusCommitted, status)
	assert.Empty(t, detail)

	// Durable mode returns only after every replica acknowledged.
	assert.Equal(t, []string{"tx1"}, r1.committedTxs())
	assert.Equal(t, []string{"tx1"}, r2.committedTxs())
	assert.Equal(t, common.Committed, c.state("tx1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Begun))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Committed.WithLabelValues("durable")))
}

func TestAsyncCommitDeliversInBackground(t *testing.T) {
	r1 := &fakeReplica{commitFails: 2}
	c, metrics := newTestCoordinator(t, r1)

	status, _, err := c.commit("tx1", testOps, false)
	require.NoError(t, err)
	assert.Equal(t, client.StatusCommitted, status)
	assert.Equal(t, common.Committed, c.state("tx1"))

	// Delivery retries until the replica takes the commit.
	require.Eventually(t, func() bool {
		return len(r1.committedTxs()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Committed.WithLabelValues("async")))
}

func TestConflictAbortsEveryReplica(t *testing.T) {
	winner, loser := &fakeReplica{}, &fakeReplica{conflict: true}
	c, metrics := newTestCoordinator(t, winner, loser)

	status, _, err := c.commit("tx1", testOps, true)
	require.NoError(t, err)
	assert.Equal(t, client.StatusConflict, status)
	assert.Equal(t, common.Aborted, c.state("tx1"))

	// Both replicas get the abort, including the one that prepared.
	assert.Equal(t, []string{"tx1"}, winner.abortedTxs())
	assert.Equal(t, []string{"tx1"}, loser.abortedTxs())
	assert.Empty(t, winner.committedTxs())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Aborted))
}

func TestPrepareFailureReturnsDetail(t *testing.T) {
	healthy := &fakeReplica{}
	broken := &fakeReplica{prepareErr: errors.New("disk full")}
	c, metrics := newTestCoordinator(t, healthy, broken)

	status, detail, err := c.commit("tx1", testOps, true)
	require.NoError(t, err)
	assert.Equal(t, client.StatusFailed, status)
	assert.Contains(t, detail, "disk full")
	assert.Equal(t, common.Aborted, c.state("tx1"))
	assert.Equal(t, []string{"tx1"}, healthy.abortedTxs())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Aborted))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Conflicts))
}

func TestEmptyWritesetCommitsImmediately(t *testing.T) {
	r1 := &fakeReplica{}
	c, _ := newTestCoordinator(t, r1)

	status, _, err := c.commit("tx1", nil, true)
	require.NoError(t, err)
	assert.Equal(t, client.StatusCommitted, status)

	// No prepare round, no commit delivery.
	assert.Empty(t, r1.prepared)
	assert.Empty(t, r1.committedTxs())
}

func TestStateUnknownTransaction(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeReplica{})
	assert.Equal(t, common.NoState, c.state("never-seen"))
}

func TestReadHitsAReplica(t *testing.T) {
	r1 := &fakeReplica{data: map[string]string{"k": "v"}}
	c, _ := newTestCoordinator(t, r1)

	value, found, err := c.read("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", value)

	_, found, err = c.read("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecoverFinishesInFlightTransactions(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "wal.log")
	undecided, decided := &fakeReplica{}, &fakeReplica{}

	first, err := New([]ReplicaConn{undecided}, walPath, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.setState("tx-started", common.Started))
	require.NoError(t, first.setState("tx-committed", common.Committed))
	require.NoError(t, first.Close())

	second, err := New([]ReplicaConn{decided}, walPath, nil, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Recover())

	assert.Equal(t, common.Started, second.state("tx-started"))
	assert.Equal(t, common.Committed, second.state("tx-committed"))
	assert.Equal(t, []string{"tx-started"}, decided.abortedTxs())
	assert.Equal(t, []string{"tx-committed"}, decided.committedTxs())
}
