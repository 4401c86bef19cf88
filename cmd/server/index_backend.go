package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"voxelpath.ai/internal/persistence/indexdb"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.SearchLogger
	Close() error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Sync(ctx context.Context) error
	SearchSummary(ctx context.Context) (indexdb.SearchSummary, error)
	AgentSearches(ctx context.Context, agentID string, limit int) ([]world.SearchRecord, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index backend disabled (VP_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		logger.Printf("index backend sqlite path=%s", dbPath)
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VP_INDEX_BACKEND: %s", backend)
	}
}

// multiSink fans world records out to the JSONL logs and the index.
type multiSink struct {
	tickLog   world.TickLogger
	searchLog world.SearchLogger
	idx       runtimeIndex
}

func (m multiSink) WriteTick(entry world.TickLogEntry) error {
	var err error
	if m.tickLog != nil {
		err = m.tickLog.WriteTick(entry)
	}
	if m.idx != nil {
		_ = m.idx.WriteTick(entry)
	}
	return err
}

func (m multiSink) WriteSearch(rec world.SearchRecord) error {
	var err error
	if m.searchLog != nil {
		err = m.searchLog.WriteSearch(rec)
	}
	if m.idx != nil {
		_ = m.idx.WriteSearch(rec)
	}
	return err
}
