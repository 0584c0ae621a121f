package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deixis/candy/internal/config"
)

// Open builds the store selected by cfg, always fronted by an LRU cache.
// Callers should Close it when done.
func Open(cfg *config.Config) (*LRUStore, error) {
	capacity := cfg.StoreCapacity()
	switch kind := cfg.StoreKind(); kind {
	case config.StoreMemory:
		return NewLRUStore(capacity, nil), nil
	case config.StoreDisk:
		return NewLRUStore(capacity, NewDiskStore(cfg.StoreDir())), nil
	case config.StoreSQLite:
		dir := cfg.StoreDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		db, err := OpenSQLite(filepath.Join(dir, "runs.db"))
		if err != nil {
			return nil, err
		}
		return NewLRUStore(capacity, db), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
