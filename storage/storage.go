// Package storage provides the key-value stores the ledger and the blob store
// persist into.
package storage

import "fmt"

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidHandle = fmt.Errorf("invalid handle")
	ErrCorrupted     = fmt.Errorf("corrupted content")
)

// KvStore is the minimal key-value surface the upper layers need
type KvStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Write applies every put atomically
	Write(puts map[string][]byte) error
	Close() error
}
