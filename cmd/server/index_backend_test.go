package main

import (
	"context"
	"io"
	"log"
	"testing"

	"voxelpath.ai/internal/sim/world"
)

func TestOpenRuntimeIndex_Backends(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	idx, err := openRuntimeIndex(t.TempDir(), true, logger)
	if err != nil || idx != nil {
		t.Fatalf("disable_db: idx=%v err=%v", idx, err)
	}

	t.Setenv("VP_INDEX_BACKEND", "none")
	idx, err = openRuntimeIndex(t.TempDir(), false, logger)
	if err != nil || idx != nil {
		t.Fatalf("backend none: idx=%v err=%v", idx, err)
	}

	t.Setenv("VP_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(t.TempDir(), false, logger); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("VP_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(t.TempDir(), false, logger)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if idx == nil {
		t.Fatalf("sqlite: expected index")
	}
	defer idx.Close()

	sink := multiSink{idx: idx}
	if err := sink.WriteSearch(world.SearchRecord{Tick: 1, AgentID: "A1", Found: true, PathLen: 3, Iterations: 5}); err != nil {
		t.Fatalf("WriteSearch: %v", err)
	}
	if err := sink.WriteTick(world.TickLogEntry{Tick: 1, Searches: 1}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	recs, err := idx.AgentSearches(context.Background(), "A1", 10)
	if err != nil {
		t.Fatalf("AgentSearches: %v", err)
	}
	if len(recs) != 1 || recs[0].Iterations != 5 {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

type captureTicks struct{ n int }

func (c *captureTicks) WriteTick(world.TickLogEntry) error { c.n++; return nil }

type captureSearches struct{ n int }

func (c *captureSearches) WriteSearch(world.SearchRecord) error { c.n++; return nil }

func TestMultiSink_FansOutWithoutIndex(t *testing.T) {
	ticks := &captureTicks{}
	searches := &captureSearches{}
	sink := multiSink{tickLog: ticks, searchLog: searches}
	_ = sink.WriteTick(world.TickLogEntry{})
	_ = sink.WriteSearch(world.SearchRecord{})
	if ticks.n != 1 || searches.n != 1 {
		t.Fatalf("ticks=%d searches=%d", ticks.n, searches.n)
	}
}
