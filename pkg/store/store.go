// Package store holds the key-value backends a replica keeps its table
// copies in: a file-per-key disc store and an in-memory ram store.
package store

import "errors"

var ErrNotFound = errors.New("key not found")

type Store interface {
	Put(key, value string) error
	Get(key string) (string, error)
	Del(key string) error
	List() ([]string, error)
}

// CopyAll copies every key from src into dst. Used when a replica switches
// storage mode.
func CopyAll(dst, src Store) error {
	keys, err := src.List()
	if err != nil {
		return err
	}
	for _, key := range keys {
		value, err := src.Get(key)
		if err != nil {
			return err
		}
		if err := dst.Put(key, value); err != nil {
			return err
		}
	}
	return nil
}
