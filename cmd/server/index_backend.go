package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lastoasis.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read-model index. A nil index means indexing
// is off; the world runs the same either way.
func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported INDEX_BACKEND: %s", backend)
	}
}
