package client

import "txmesh/pkg/common"

// CommitStatus is the coordinator's verdict on a writeset commit.
type CommitStatus int

const (
	StatusCommitted CommitStatus = iota
	StatusConflict
	StatusFailed
)

func (s CommitStatus) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusConflict:
		return "conflict"
	default:
		return "failed"
	}
}

// Coordinator RPC shapes.

type ReadArgs struct {
	Key string
}

type ReadResult struct {
	Value string
	Found bool
}

type CommitArgs struct {
	TxID    string
	Ops     common.WriteSet
	Durable bool
}

type CommitResult struct {
	Status CommitStatus
	Detail string
}

type StatusArgs struct {
	TxID string
}

type StatusResult struct {
	State common.TxState
}

type PingArgs struct {
	Key string
}

type PingResult struct {
	Value string
}

// Replica RPC shapes.

type PrepareArgs struct {
	TxID string
	Ops  common.WriteSet
}

type ReplicaActionResult struct {
	Success  bool
	Conflict bool
}

type CommitTxArgs struct {
	TxID string
}

type AbortArgs struct {
	TxID string
}

type ReplicaKeyArgs struct {
	Key string
}

type ReplicaGetResult struct {
	Value string
	Found bool
}

// Administrative RPC shapes.

type SchemaArgs struct{}

type SchemaResult struct {
	OK bool
}

type SetModeArgs struct {
	Mode string
}

type SchemaInfoArgs struct {
	// Table restricts the report to keys under "table/"; empty means all.
	Table string
}

type SchemaInfoResult struct {
	Node     string
	Mode     string
	KeyCount int
	Keys     []string
}
