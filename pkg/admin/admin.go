// Package admin holds the administrative operations over the cluster:
// schema creation and deletion, storage-mode toggling and schema reporting.
// These forward straight to the replicas; the transaction layer never calls
// them.
package admin

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
)

// ReplicaConn is the administrative slice of the replica API.
// client.ReplicaClient implements it.
type ReplicaConn interface {
	CreateSchema() error
	DeleteSchema() error
	SetStorageMode(mode common.StorageMode) error
	SchemaInfo(table string) (client.SchemaInfoResult, error)
}

type Admin struct {
	nodes []string
	conns map[string]ReplicaConn
	dial  func(node string) ReplicaConn
	log   zerolog.Logger
}

// New builds an admin client over the given replica addresses.
func New(nodes []string, log zerolog.Logger) *Admin {
	adminLog := log.With().Str("component", "admin").Logger()
	return &Admin{
		nodes: nodes,
		conns: make(map[string]ReplicaConn),
		dial: func(node string) ReplicaConn {
			return client.NewReplicaClient(node, adminLog)
		},
		log: adminLog,
	}
}

func (a *Admin) conn(node string) ReplicaConn {
	c, ok := a.conns[node]
	if !ok {
		c = a.dial(node)
		a.conns[node] = c
	}
	return c
}

// resolve defaults an empty node list to every known node.
func (a *Admin) resolve(nodes []string) []string {
	if len(nodes) == 0 {
		return a.nodes
	}
	return nodes
}

// CreateSchema initializes schema directories on the given nodes (all nodes
// when the list is empty).
func (a *Admin) CreateSchema(nodes []string) error {
	var errs []string
	for _, node := range a.resolve(nodes) {
		if err := a.conn(node).CreateSchema(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", node, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("create schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DeleteSchema wipes schema directories on the given nodes.
func (a *Admin) DeleteSchema(nodes []string) error {
	var errs []string
	for _, node := range a.resolve(nodes) {
		if err := a.conn(node).DeleteSchema(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", node, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SetStorageMode switches one node's committed store between ram and disc.
func (a *Admin) SetStorageMode(node string, mode common.StorageMode) error {
	if err := a.conn(node).SetStorageMode(mode); err != nil {
		return fmt.Errorf("set storage mode on %s: %w", node, err)
	}
	return nil
}

// PrintSchemaInfo writes a per-node schema report to w, restricted to one
// table when table is non-empty.
func (a *Admin) PrintSchemaInfo(w io.Writer, table string) error {
	for _, node := range a.nodes {
		info, err := a.conn(node).SchemaInfo(table)
		if err != nil {
			fmt.Fprintf(w, "%s: unreachable: %v\n", node, err)
			continue
		}
		fmt.Fprintf(w, "%s: mode=%s keys=%d\n", info.Node, info.Mode, info.KeyCount)
		for _, key := range info.Keys {
			fmt.Fprintf(w, "  %s\n", key)
		}
	}
	return nil
}
