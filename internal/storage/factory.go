package storage

import (
	"errors"
	"fmt"
)

// Store backends accepted by NewStore.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore builds the run store named by kind. An empty kind selects the
// memory store; sqlitePath is only read by the sqlite backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if sqlitePath == "" {
			return nil, errors.New("sqlite store needs a database path")
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w %q: want %s or %s", ErrUnsupportedStore, kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported releases stores that hold resources, such as the sqlite
// connection pool. The memory store needs no closing.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
