// Package replica implements a two-phase-commit participant: it stages
// writesets in a temp store under per-key locks, promotes them to the
// committed store on commit, and resolves in-doubt transactions against the
// coordinator after a restart.
package replica

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"txmesh/pkg/common"
	"txmesh/pkg/store"
	"txmesh/pkg/wal"
)

var (
	// ErrNoSchema is returned when the replica's schema has been deleted
	// and not recreated.
	ErrNoSchema = errors.New("schema does not exist")

	// ErrUnknownMode is returned for a storage mode that is neither ram
	// nor disc.
	ErrUnknownMode = errors.New("unknown storage mode")
)

// StatusFunc asks the coordinator for its recorded decision on a
// transaction. Used only during recovery.
type StatusFunc func(txID string) (common.TxState, error)

type txRecord struct {
	id    string
	ops   common.WriteSet
	state common.TxState
}

type Replica struct {
	name    string
	dataDir string
	status  StatusFunc
	log     zerolog.Logger

	mu        sync.Mutex
	mode      common.StorageMode
	committed store.Store
	temp      *store.FileStore
	wal       *wal.Log
	txs       map[string]*txRecord
	locked    map[string]string // key -> txID holding the lock
}

func New(name, dataDir string, mode common.StorageMode, status StatusFunc, log zerolog.Logger) (*Replica, error) {
	r := &Replica{
		name:    name,
		dataDir: dataDir,
		status:  status,
		mode:    mode,
		log:     log.With().Str("component", "replica").Str("node", name).Logger(),
		txs:     make(map[string]*txRecord),
		locked:  make(map[string]string),
	}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

// initSchema opens the stores and the write-ahead log. Callers hold no lock
// during construction; SetStorageMode and the schema ops take mu.
func (r *Replica) initSchema() error {
	var err error
	if r.mode == common.ModeRAM {
		r.committed = store.NewMemStore()
	} else {
		r.committed, err = store.NewFileStore(r.committedDir())
		if err != nil {
			return err
		}
	}
	// Staged values must survive a crash so an in-doubt transaction can
	// still commit after recovery, so the temp store is always on disc.
	r.temp, err = store.NewFileStore(filepath.Join(r.dataDir, "temp"))
	if err != nil {
		return err
	}
	r.wal, err = wal.Open(filepath.Join(r.dataDir, "wal.log"))
	if err != nil {
		return err
	}
	return nil
}

func (r *Replica) committedDir() string {
	return filepath.Join(r.dataDir, "committed")
}

func tempKey(txID, key string) string {
	return txID + "__" + key
}

func parseTempKey(s string) (txID, key string) {
	parts := strings.SplitN(s, "__", 2)
	if len(parts) != 2 {
		return s, ""
	}
	return parts[0], parts[1]
}

func (r *Replica) hasSchema() bool {
	return r.committed != nil
}

func (r *Replica) releaseLocks(txID string, ops common.WriteSet) {
	for _, op := range ops {
		if r.locked[op.Key] == txID {
			delete(r.locked, op.Key)
		}
	}
}

func (r *Replica) Name() string {
	return r.name
}

func (r *Replica) Mode() common.StorageMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Close flushes and closes the write-ahead log.
func (r *Replica) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wal == nil {
		return nil
	}
	err := r.wal.Close()
	r.wal = nil
	return err
}

func (r *Replica) read(key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSchema() {
		return "", false, ErrNoSchema
	}
	value, err := r.committed.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}
