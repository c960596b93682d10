package history

import "fmt"

// NewStore builds a black-box recorder. kind "" or "memory" gives an
// in-process store good for the life of one coordinator run; "sqlite"
// requires the sqlite build tag.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", kind)
	}
}

// CloseIfSupported closes a store that implements io.Closer, a no-op
// otherwise (MemoryStore has nothing to release).
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
