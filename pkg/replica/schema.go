package replica

import (
	"os"
	"sort"
	"strings"

	"txmesh/pkg/common"
	"txmesh/pkg/store"
)

// Schema administration. These are independent of the transaction path: the
// executor never calls them.

func (r *Replica) createSchema() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasSchema() {
		return nil
	}
	return r.initSchema()
}

func (r *Replica) deleteSchema() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSchema() {
		return nil
	}
	if r.wal != nil {
		if err := r.wal.Close(); err != nil {
			return err
		}
		r.wal = nil
	}
	r.committed = nil
	r.temp = nil
	r.txs = make(map[string]*txRecord)
	r.locked = make(map[string]string)
	return os.RemoveAll(r.dataDir)
}

// setStorageMode swaps the committed store between ram and disc, carrying
// the current contents over.
func (r *Replica) setStorageMode(mode common.StorageMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSchema() {
		return ErrNoSchema
	}
	if mode == r.mode {
		return nil
	}

	var next store.Store
	if mode == common.ModeRAM {
		next = store.NewMemStore()
	} else {
		fs, err := store.NewFileStore(r.committedDir())
		if err != nil {
			return err
		}
		next = fs
	}
	if err := store.CopyAll(next, r.committed); err != nil {
		return err
	}
	if old, ok := r.committed.(*store.FileStore); ok && mode == common.ModeRAM {
		if err := old.Destroy(); err != nil {
			return err
		}
	}
	r.committed = next
	r.mode = mode
	r.log.Info().Str("mode", mode.String()).Msg("storage mode changed")
	return nil
}

// schemaInfo reports storage mode and key population, optionally limited to
// one table's "table/" key prefix.
func (r *Replica) schemaInfo(table string) (mode string, keys []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSchema() {
		return "", nil, ErrNoSchema
	}
	all, err := r.committed.List()
	if err != nil {
		return "", nil, err
	}
	prefix := ""
	if table != "" {
		prefix = table + "/"
	}
	for _, key := range all {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return r.mode.String(), keys, nil
}
