package history

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by KV.Get for a key that was never written or was deleted
var ErrNotFound = errors.New("key not found")

// KV is the scoped key-value substrate the history is persisted in
type KV interface {
	// Put stores value under key, replacing any previous value
	Put(key string, value []byte) error

	// Get returns the value stored under key or ErrNotFound
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases the underlying storage
	Close() error
}

// Backends accepted by Open
const (
	BackendBolt   = "bolt"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open opens the named KV backend at path
func Open(backend string, path string) (KV, error) {
	switch backend {
	case BackendBolt, "":
		return NewBoltKV(path)
	case BackendFile:
		return NewFileKV(path)
	case BackendSQLite:
		return NewSQLiteKV(path)
	default:
		return nil, fmt.Errorf("unknown history backend %q (valid: bolt, file, sqlite)", backend)
	}
}
