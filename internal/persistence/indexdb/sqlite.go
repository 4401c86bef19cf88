package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/terrain"
	"voxelpath.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of ticks and searches. Writes
// are queued to a single writer goroutine and dropped when the queue is
// full; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSearch   atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSearch
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	search   world.SearchRecord
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Width  int
	Height int
	Depth  int
	Solid  int
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSearchTotal   uint64 `json:"drop_search_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// busy_timeout is per connection, so it rides on the DSN.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// One connection for the writer loop, one for queries. WAL lets a reader
	// proceed while the writer holds an open transaction.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			searches INTEGER NOT NULL,
			moves INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS searches (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			ref TEXT,
			start_x INTEGER NOT NULL,
			start_y INTEGER NOT NULL,
			start_z INTEGER NOT NULL,
			goal_x INTEGER NOT NULL,
			goal_y INTEGER NOT NULL,
			goal_z INTEGER NOT NULL,
			found INTEGER NOT NULL,
			path_len INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			duration_us INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_searches_agent_tick ON searches(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			solid INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteSearch(rec world.SearchRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSearch, search: rec}:
	default:
		s.dropSearch.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	solid := -1
	if m, err := snap.Terrain(); err == nil {
		solid = m.Count(terrain.Solid)
	}
	r := snapshotRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Width:  snap.Header.Grid[0],
		Height: snap.Header.Grid[1],
		Depth:  snap.Header.Grid[2],
		Solid:  solid,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Sync blocks until every write queued before it has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSearchTotal:   s.dropSearch.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// SearchSummary aggregates the indexed searches.
type SearchSummary struct {
	Total         int     `json:"total"`
	Found         int     `json:"found"`
	AvgIterations float64 `json:"avg_iterations"`
	MaxIterations int     `json:"max_iterations"`
	AvgDurationUS float64 `json:"avg_duration_us"`
	AvgPathLen    float64 `json:"avg_path_len"`
}

func (s *SQLiteIndex) SearchSummary(ctx context.Context) (SearchSummary, error) {
	var out SearchSummary
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(found), 0),
		COALESCE(AVG(iterations), 0),
		COALESCE(MAX(iterations), 0),
		COALESCE(AVG(duration_us), 0),
		COALESCE(AVG(CASE WHEN found = 1 THEN path_len END), 0)
		FROM searches`)
	if err := row.Scan(&out.Total, &out.Found, &out.AvgIterations, &out.MaxIterations, &out.AvgDurationUS, &out.AvgPathLen); err != nil {
		return out, fmt.Errorf("search summary: %w", err)
	}
	return out, nil
}

// AgentSearches returns the most recent searches for one agent, newest first.
func (s *SQLiteIndex) AgentSearches(ctx context.Context, agentID string, limit int) ([]world.SearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick, agent_id, COALESCE(ref, ''),
		start_x, start_y, start_z, goal_x, goal_y, goal_z,
		found, path_len, cost, iterations, duration_us
		FROM searches WHERE agent_id = ? ORDER BY tick DESC, seq DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.SearchRecord
	for rows.Next() {
		var (
			r     world.SearchRecord
			tick  int64
			found int
		)
		if err := rows.Scan(&tick, &r.AgentID, &r.Ref,
			&r.Start[0], &r.Start[1], &r.Start[2], &r.Goal[0], &r.Goal[1], &r.Goal[2],
			&found, &r.PathLen, &r.Cost, &r.Iterations, &r.DurationUS); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Found = found == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,actions,searches,moves,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertSearch, _ := s.db.Prepare(`INSERT OR REPLACE INTO searches(tick,seq,agent_id,ref,start_x,start_y,start_z,goal_x,goal_y,goal_z,found,path_len,cost,iterations,duration_us) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,width,height,depth,solid) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertSearch, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastSearchTick uint64
		searchSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			exec(insertTick, int64(e.Tick), e.Digest, len(e.Joins), len(e.Leaves), len(e.Actions), e.Searches, e.Moves, string(raw))

		case reqSearch:
			e := r.search
			if e.Tick != lastSearchTick {
				lastSearchTick = e.Tick
				searchSeq = 0
			}
			seq := searchSeq
			searchSeq++
			found := 0
			if e.Found {
				found = 1
			}
			exec(insertSearch, int64(e.Tick), seq, e.AgentID, e.Ref,
				e.Start[0], e.Start[1], e.Start[2], e.Goal[0], e.Goal[1], e.Goal[2],
				found, e.PathLen, e.Cost, e.Iterations, e.DurationUS)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Width, sn.Height, sn.Depth, sn.Solid)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
