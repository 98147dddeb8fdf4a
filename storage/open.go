package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open returns the database backend named by kind rooted at dataDir.
func Open(kind, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case BackendMemory:
		return NewMemDB(), nil
	case "", BackendLevelDB:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: data directory required for leveldb")
		}
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: data directory required for bolt")
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
		return NewBoltDB(filepath.Join(dataDir, "state.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}
