package shellcache

import (
	"errors"
	"fmt"

	"stocktool/internal/config"
)

// ErrNotFound is returned by Bucket.Match on a cache miss.
var ErrNotFound = errors.New("shellcache: not found")

// Storage holds named buckets, the Go analogue of browser Cache Storage.
type Storage interface {
	// Open returns the named bucket, creating it when missing.
	Open(name string) (Bucket, error)
	// Names lists existing buckets in lexical order.
	Names() ([]string, error)
	// Delete drops a bucket and its entries. Deleting a missing bucket is not an error.
	Delete(name string) error
	Close() error
}

// Bucket maps request URLs to response snapshots.
type Bucket interface {
	Name() string
	Match(key string) (*Snapshot, error)
	Put(key string, s *Snapshot) error
	// PutAll stores every entry or none of them.
	PutAll(entries map[string]*Snapshot) error
	Keys() ([]string, error)
}

// NewStorage opens the backend selected by cfg.Storage.
func NewStorage(cfg config.Shell) (Storage, error) {
	switch cfg.Storage {
	case "", config.StorageMemory:
		return NewMemory(), nil
	case config.StorageLevelDB:
		return OpenLevelDB(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown shell storage %q", cfg.Storage)
	}
}
