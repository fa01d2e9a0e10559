// Package cluster plugs the replicated store into the engine adapter:
// transactions buffer their writes locally, read through the coordinator,
// and ship the whole writeset for two-phase commit.
package cluster

import (
	"context"

	"github.com/rs/zerolog"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
	"txmesh/pkg/engine"
)

// Coordinator is the slice of the coordinator API transactions need.
// client.CoordinatorClient implements it.
type Coordinator interface {
	Read(key string) (string, bool, error)
	Commit(txID string, ops common.WriteSet, durable bool) (client.CommitStatus, string, error)
}

type Backend struct {
	coord Coordinator
	log   zerolog.Logger
}

func NewBackend(coord Coordinator, log zerolog.Logger) *Backend {
	return &Backend{
		coord: coord,
		log:   log.With().Str("component", "cluster").Logger(),
	}
}

func (b *Backend) BeginTx(ctx context.Context, mode engine.CommitMode) (engine.Tx, error) {
	return newTx(ctx, b, mode), nil
}
