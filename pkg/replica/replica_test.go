package replica

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
)

func newTestReplica(t *testing.T, dataDir string, status StatusFunc) *Replica {
	t.Helper()
	r, err := New("replica-0", dataDir, common.ModeDisc, status, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func prepareTx(t *testing.T, r *Replica, txID string, ops common.WriteSet) {
	t.Helper()
	var reply client.ReplicaActionResult
	require.NoError(t, r.Prepare(&client.PrepareArgs{TxID: txID, Ops: ops}, &reply))
	require.True(t, reply.Success)
	require.False(t, reply.Conflict)
}

func commitTx(t *testing.T, r *Replica, txID string) {
	t.Helper()
	var reply client.ReplicaActionResult
	require.NoError(t, r.Commit(&client.CommitTxArgs{TxID: txID}, &reply))
	require.True(t, reply.Success)
}

func readKey(t *testing.T, r *Replica, key string) (string, bool) {
	t.Helper()
	var reply client.ReplicaGetResult
	require.NoError(t, r.Read(&client.ReplicaKeyArgs{Key: key}, &reply))
	return reply.Value, reply.Found
}

func TestPrepareCommitMakesWritesVisible(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{
		{Kind: common.WriteOp, Key: "accounts/alice", Value: "100"},
		{Kind: common.WriteOp, Key: "accounts/bob", Value: "50"},
	})

	// Staged writes are invisible until commit.
	_, found := readKey(t, r, "accounts/alice")
	assert.False(t, found)

	commitTx(t, r, "tx1")

	value, found := readKey(t, r, "accounts/alice")
	require.True(t, found)
	assert.Equal(t, "100", value)
	value, found = readKey(t, r, "accounts/bob")
	require.True(t, found)
	assert.Equal(t, "50", value)
}

func TestPrepareConflictsOnLockedKey(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "a"}})

	var reply client.ReplicaActionResult
	require.NoError(t, r.Prepare(&client.PrepareArgs{
		TxID: "tx2",
		Ops:  common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "b"}},
	}, &reply))
	assert.True(t, reply.Conflict)
	assert.False(t, reply.Success)

	// The loser staged nothing, so the winner's commit lands its value.
	commitTx(t, r, "tx1")
	value, found := readKey(t, r, "k")
	require.True(t, found)
	assert.Equal(t, "a", value)
}

func TestAbortReleasesLocks(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "a"}})

	var reply client.ReplicaActionResult
	require.NoError(t, r.Abort(&client.AbortArgs{TxID: "tx1"}, &reply))
	require.True(t, reply.Success)

	_, found := readKey(t, r, "k")
	assert.False(t, found)

	// The key is free again.
	prepareTx(t, r, "tx2", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "b"}})
	commitTx(t, r, "tx2")
	value, found := readKey(t, r, "k")
	require.True(t, found)
	assert.Equal(t, "b", value)
}

func TestDeleteOpRemovesKey(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	commitTx(t, r, "tx1")

	prepareTx(t, r, "tx2", common.WriteSet{{Kind: common.DeleteOp, Key: "k"}})
	commitTx(t, r, "tx2")

	_, found := readKey(t, r, "k")
	assert.False(t, found)
}

func TestCommitAndAbortAreIdempotent(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	commitTx(t, r, "tx1")
	commitTx(t, r, "tx1")

	// Resolving an unknown transaction is a no-op, not an error.
	var reply client.ReplicaActionResult
	require.NoError(t, r.Abort(&client.AbortArgs{TxID: "tx1"}, &reply))
	require.NoError(t, r.Commit(&client.CommitTxArgs{TxID: "never-seen"}, &reply))

	value, found := readKey(t, r, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestDuplicatePrepareIsNoOp(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	ops := common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}}
	prepareTx(t, r, "tx1", ops)
	prepareTx(t, r, "tx1", ops)

	commitTx(t, r, "tx1")
	value, found := readKey(t, r, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestRecoveryCommitsInDoubtTransaction(t *testing.T) {
	dir := t.TempDir()

	r1 := newTestReplica(t, dir, nil)
	prepareTx(t, r1, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	// Crash before the decision arrives.
	require.NoError(t, r1.Close())

	r2 := newTestReplica(t, dir, func(txID string) (common.TxState, error) {
		assert.Equal(t, "tx1", txID)
		return common.Committed, nil
	})
	defer r2.Close()
	require.NoError(t, r2.Recover())

	value, found := readKey(t, r2, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestRecoveryAbortsWithoutDecision(t *testing.T) {
	dir := t.TempDir()

	r1 := newTestReplica(t, dir, nil)
	prepareTx(t, r1, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	require.NoError(t, r1.Close())

	r2 := newTestReplica(t, dir, func(string) (common.TxState, error) {
		return common.NoState, nil
	})
	defer r2.Close()
	require.NoError(t, r2.Recover())

	_, found := readKey(t, r2, "k")
	assert.False(t, found)

	// Presumed abort released the lock.
	prepareTx(t, r2, "tx2", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "w"}})
}

func TestRecoveryIgnoresResolvedTransactions(t *testing.T) {
	dir := t.TempDir()

	r1 := newTestReplica(t, dir, nil)
	prepareTx(t, r1, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	commitTx(t, r1, "tx1")
	require.NoError(t, r1.Close())

	asked := false
	r2 := newTestReplica(t, dir, func(string) (common.TxState, error) {
		asked = true
		return common.NoState, errors.New("should not be called")
	})
	defer r2.Close()
	require.NoError(t, r2.Recover())

	assert.False(t, asked, "resolved transactions need no coordinator decision")
	value, found := readKey(t, r2, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestSetStorageModeCarriesData(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "accounts/alice", Value: "100"}})
	commitTx(t, r, "tx1")

	var reply client.SchemaResult
	require.NoError(t, r.SetStorageMode(&client.SetModeArgs{Mode: "ram"}, &reply))
	require.True(t, reply.OK)
	assert.Equal(t, common.ModeRAM, r.Mode())

	value, found := readKey(t, r, "accounts/alice")
	require.True(t, found)
	assert.Equal(t, "100", value)

	// And back to disc.
	require.NoError(t, r.SetStorageMode(&client.SetModeArgs{Mode: "disc"}, &reply))
	assert.Equal(t, common.ModeDisc, r.Mode())
	value, found = readKey(t, r, "accounts/alice")
	require.True(t, found)
	assert.Equal(t, "100", value)

	assert.ErrorIs(t, r.SetStorageMode(&client.SetModeArgs{Mode: "floppy"}, &reply), ErrUnknownMode)
}

func TestSchemaInfoFiltersByTable(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)
	defer r.Close()

	prepareTx(t, r, "tx1", common.WriteSet{
		{Kind: common.WriteOp, Key: "accounts/alice", Value: "100"},
		{Kind: common.WriteOp, Key: "accounts/bob", Value: "50"},
		{Kind: common.WriteOp, Key: "orders/1", Value: "open"},
	})
	commitTx(t, r, "tx1")

	var reply client.SchemaInfoResult
	require.NoError(t, r.SchemaInfo(&client.SchemaInfoArgs{Table: "accounts"}, &reply))
	assert.Equal(t, "replica-0", reply.Node)
	assert.Equal(t, "disc", reply.Mode)
	assert.Equal(t, 2, reply.KeyCount)
	assert.Equal(t, []string{"accounts/alice", "accounts/bob"}, reply.Keys)

	require.NoError(t, r.SchemaInfo(&client.SchemaInfoArgs{}, &reply))
	assert.Equal(t, 3, reply.KeyCount)
}

func TestDeleteAndRecreateSchema(t *testing.T) {
	r := newTestReplica(t, t.TempDir(), nil)

	prepareTx(t, r, "tx1", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "v"}})
	commitTx(t, r, "tx1")

	var reply client.SchemaResult
	require.NoError(t, r.DeleteSchema(&client.SchemaArgs{}, &reply))
	require.True(t, reply.OK)

	var getReply client.ReplicaGetResult
	assert.ErrorIs(t, r.Read(&client.ReplicaKeyArgs{Key: "k"}, &getReply), ErrNoSchema)
	assert.ErrorIs(t, r.setStorageMode(common.ModeRAM), ErrNoSchema)

	require.NoError(t, r.CreateSchema(&client.SchemaArgs{}, &reply))
	defer r.Close()

	// The old contents are gone with the schema.
	_, found := readKey(t, r, "k")
	assert.False(t, found)

	prepareTx(t, r, "tx2", common.WriteSet{{Kind: common.WriteOp, Key: "k", Value: "w"}})
	commitTx(t, r, "tx2")
	value, found := readKey(t, r, "k")
	require.True(t, found)
	assert.Equal(t, "w", value)
}
