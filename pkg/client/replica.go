package client

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/rs/zerolog"

	"txmesh/pkg/common"
)

// ReplicaClient is the coordinator's and admin tooling's connection to one
// replica.
type ReplicaClient struct {
	host      string
	rpcClient *rpc.Client
	log       zerolog.Logger
}

func NewReplicaClient(host string, log zerolog.Logger) *ReplicaClient {
	c := &ReplicaClient{
		host: host,
		log:  log.With().Str("component", "replica-client").Str("host", host).Logger(),
	}
	_ = c.tryConnect()
	return c
}

func (c *ReplicaClient) Host() string {
	return c.host
}

func (c *ReplicaClient) tryConnect() error {
	if c.rpcClient != nil {
		return nil
	}
	rpcClient, err := rpc.DialHTTP("tcp", c.host)
	if err != nil {
		return err
	}
	c.rpcClient = rpcClient
	return nil
}

func (c *ReplicaClient) call(serviceMethod string, args, reply any) error {
	if err := c.tryConnect(); err != nil {
		return err
	}
	err := c.rpcClient.Call(serviceMethod, args, reply)
	var opError *net.OpError
	if errors.Is(err, rpc.ErrShutdown) || errors.As(err, &opError) {
		c.rpcClient = nil
	}
	return err
}

// Prepare asks the replica to stage a writeset and lock its keys. conflict
// reports that at least one key was already locked by another transaction.
func (c *ReplicaClient) Prepare(txID string, ops common.WriteSet) (ok bool, conflict bool, err error) {
	var reply ReplicaActionResult
	if err := c.call("Replica.Prepare", &PrepareArgs{TxID: txID, Ops: ops}, &reply); err != nil {
		c.log.Debug().Err(err).Str("tx", txID).Msg("prepare failed")
		return false, false, err
	}
	return reply.Success, reply.Conflict, nil
}

func (c *ReplicaClient) Commit(txID string) error {
	var reply ReplicaActionResult
	if err := c.call("Replica.Commit", &CommitTxArgs{TxID: txID}, &reply); err != nil {
		c.log.Debug().Err(err).Str("tx", txID).Msg("commit failed")
		return err
	}
	return nil
}

func (c *ReplicaClient) Abort(txID string) error {
	var reply ReplicaActionResult
	if err := c.call("Replica.Abort", &AbortArgs{TxID: txID}, &reply); err != nil {
		c.log.Debug().Err(err).Str("tx", txID).Msg("abort failed")
		return err
	}
	return nil
}

func (c *ReplicaClient) Read(key string) (string, bool, error) {
	var reply ReplicaGetResult
	if err := c.call("Replica.Read", &ReplicaKeyArgs{Key: key}, &reply); err != nil {
		return "", false, err
	}
	return reply.Value, reply.Found, nil
}

func (c *ReplicaClient) Ping(key string) (string, error) {
	var reply ReplicaGetResult
	if err := c.call("Replica.Ping", &ReplicaKeyArgs{Key: key}, &reply); err != nil {
		return "", err
	}
	return reply.Value, nil
}

// CreateSchema initializes the replica's schema directories and stores.
func (c *ReplicaClient) CreateSchema() error {
	var reply SchemaResult
	return c.call("Replica.CreateSchema", &SchemaArgs{}, &reply)
}

// DeleteSchema wipes the replica's stores and schema directories.
func (c *ReplicaClient) DeleteSchema() error {
	var reply SchemaResult
	return c.call("Replica.DeleteSchema", &SchemaArgs{}, &reply)
}

// SetStorageMode switches the replica's committed store between ram and
// disc, carrying the current contents over.
func (c *ReplicaClient) SetStorageMode(mode common.StorageMode) error {
	var reply SchemaResult
	return c.call("Replica.SetStorageMode", &SetModeArgs{Mode: mode.String()}, &reply)
}

// SchemaInfo reports the replica's storage mode and key population,
// optionally restricted to one table.
func (c *ReplicaClient) SchemaInfo(table string) (SchemaInfoResult, error) {
	var reply SchemaInfoResult
	err := c.call("Replica.SchemaInfo", &SchemaInfoArgs{Table: table}, &reply)
	return reply, err
}
