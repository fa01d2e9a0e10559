package client

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/rs/zerolog"

	"txmesh/pkg/common"
)

// CoordinatorClient is the net/rpc client the transaction layer and the
// admin tooling use to reach the coordinator. Connections are re-dialed
// lazily after network errors.
type CoordinatorClient struct {
	host      string
	rpcClient *rpc.Client
	log       zerolog.Logger
}

func NewCoordinatorClient(host string, log zerolog.Logger) *CoordinatorClient {
	c := &CoordinatorClient{
		host: host,
		log:  log.With().Str("component", "coordinator-client").Str("host", host).Logger(),
	}
	_ = c.tryConnect()
	return c
}

func (c *CoordinatorClient) tryConnect() error {
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

func (c *CoordinatorClient) call(serviceMethod string, args, reply any) error {
	err := c.rpcClient.Call(serviceMethod, args, reply)
	var opError *net.OpError
	if errors.Is(err, rpc.ErrShutdown) || errors.As(err, &opError) {
		c.rpcClient = nil
	}
	return err
}

// Read fetches the committed value for key through the coordinator.
func (c *CoordinatorClient) Read(key string) (string, bool, error) {
	if err := c.tryConnect(); err != nil {
		return "", false, err
	}
	var reply ReadResult
	if err := c.call("Coordinator.Read", &ReadArgs{Key: key}, &reply); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("read failed")
		return "", false, err
	}
	return reply.Value, reply.Found, nil
}

// Commit ships a whole writeset for two-phase commit. Durable commits wait
// for every replica's acknowledgment before the call returns.
func (c *CoordinatorClient) Commit(txID string, ops common.WriteSet, durable bool) (CommitStatus, string, error) {
	if err := c.tryConnect(); err != nil {
		return StatusFailed, "", err
	}
	var reply CommitResult
	args := &CommitArgs{TxID: txID, Ops: ops, Durable: durable}
	if err := c.call("Coordinator.Commit", args, &reply); err != nil {
		c.log.Debug().Err(err).Str("tx", txID).Msg("commit failed")
		return StatusFailed, "", err
	}
	return reply.Status, reply.Detail, nil
}

// Status reports the coordinator's recorded decision for a transaction.
func (c *CoordinatorClient) Status(txID string) (common.TxState, error) {
	if err := c.tryConnect(); err != nil {
		return common.NoState, err
	}
	var reply StatusResult
	if err := c.call("Coordinator.Status", &StatusArgs{TxID: txID}, &reply); err != nil {
		c.log.Debug().Err(err).Str("tx", txID).Msg("status failed")
		return common.NoState, err
	}
	return reply.State, nil
}

func (c *CoordinatorClient) Ping(key string) (string, error) {
	if err := c.tryConnect(); err != nil {
		return "", err
	}
	var reply PingResult
	if err := c.call("Coordinator.Ping", &PingArgs{Key: key}, &reply); err != nil {
		return "", err
	}
	return reply.Value, nil
}
