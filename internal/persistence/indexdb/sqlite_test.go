package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteSearch(world.SearchRecord{Tick: 2})
	s.RecordSnapshot("/tmp/0.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropSearchTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("unexpected drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_SearchesQueryable(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	records := []world.SearchRecord{
		{Tick: 1, AgentID: "A1", Ref: "G1", Goal: [3]int{3, 3, 1}, Found: true, PathLen: 4, Cost: 42, Iterations: 4, DurationUS: 10},
		{Tick: 1, AgentID: "A2", Ref: "G1", Goal: [3]int{5, 5, 1}, Found: false, Iterations: 90, DurationUS: 30},
		{Tick: 4, AgentID: "A1", Ref: "G2", Goal: [3]int{0, 0, 1}, Found: true, PathLen: 2, Cost: 10, Iterations: 2, DurationUS: 5},
	}
	for _, r := range records {
		if err := idx.WriteSearch(r); err != nil {
			t.Fatalf("WriteSearch: %v", err)
		}
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1, Searches: 2, Digest: "abc"}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	sum, err := idx.SearchSummary(ctx)
	if err != nil {
		t.Fatalf("SearchSummary: %v", err)
	}
	if sum.Total != 3 || sum.Found != 2 || sum.MaxIterations != 90 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.AvgPathLen != 3 {
		t.Fatalf("AvgPathLen=%v want 3", sum.AvgPathLen)
	}

	got, err := idx.AgentSearches(ctx, "A1", 10)
	if err != nil {
		t.Fatalf("AgentSearches: %v", err)
	}
	if len(got) != 2 || got[0].Ref != "G2" || got[1].Cost != 42 || !got[1].Found {
		t.Fatalf("unexpected agent searches: %+v", got)
	}

	var digest string
	if err := idx.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick = 1`).Scan(&digest); err != nil {
		t.Fatalf("query tick: %v", err)
	}
	if digest != "abc" {
		t.Fatalf("digest=%q", digest)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.WriteSearch(world.SearchRecord{Tick: 1}); err != nil {
		t.Fatalf("WriteSearch after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
