package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/terrain"
	"voxelpath.ai/internal/sim/tuning"
	"voxelpath.ai/internal/sim/world"
	"voxelpath.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite search index")
		snapPath   = flag.String("snapshot", "", "terrain snapshot to load instead of generating terrain (optional)")
		pprofHTTP  = flag.Bool("pprof", false, "serve /debug/pprof")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	// Runs after every other deferred close.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	// Every process start is a new run: ticks restart at zero, so logs from
	// different runs must not be mixed.
	runID := uuid.NewString()
	runDir := filepath.Join(worldDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Fatalf("create run dir: %v", err)
	}

	var (
		tune  tuning.Tuning
		tiles *terrain.Tilemap
	)
	if p := strings.TrimSpace(*snapPath); p != "" {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		tiles, err = snap.Terrain()
		if err != nil {
			logger.Fatalf("snapshot terrain: %v", err)
		}
		tune = snap.Tuning
		logger.Printf("terrain from snapshot=%s grid=%v", filepath.Base(p), snap.Header.Grid)
	} else {
		var err error
		tune, err = tuning.Load(*tuningPath)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Fatalf("load tuning: %v", err)
			}
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		}
		tiles = world.GenerateTerrain(tune)
	}

	cfg, err := world.ConfigFromTuning(*worldID, tune)
	if err != nil {
		logger.Fatalf("world config: %v", err)
	}
	finder, err := world.NewPathfinder(tune.Pathfinding)
	if err != nil {
		logger.Fatalf("pathfinder: %v", err)
	}
	w, err := world.New(cfg, tiles, finder)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	// The run's snapshot pins the terrain and tuning for replay.
	snap := snapshot.FromTerrain(*worldID, w.CurrentTick(), tune, w.Terrain())
	snapFile := filepath.Join(runDir, "snapshots", strconv.FormatUint(snap.Header.Tick, 10)+".snap.zst")
	if err := snapshot.WriteSnapshot(snapFile, snap); err != nil {
		logger.Fatalf("write snapshot: %v", err)
	}
	if idx != nil {
		idx.RecordSnapshot(snapFile, snap)
	}

	tickLog := persistlog.NewTickLogger(runDir)
	searchLog := persistlog.NewSearchLogger(runDir)
	defer tickLog.Close()
	defer searchLog.Close()
	sink := multiSink{tickLog: tickLog, searchLog: searchLog, idx: idx}
	w.SetTickLogger(sink)
	w.SetSearchLogger(sink)

	ctx, cancel := signalContext()
	defer cancel()

	// The sinks deferred above close only after the world loop has returned.
	worldDone := startWorld(ctx, w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/world", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, struct {
			RunID   string             `json:"run_id"`
			Metrics world.WorldMetrics `json:"metrics"`
			State   world.DebugState   `json:"state"`
		}{RunID: runID, Metrics: w.Metrics(), State: w.Debug()})
	})
	mux.HandleFunc("/debug/searches", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		if agent := strings.TrimSpace(r.URL.Query().Get("agent")); agent != "" {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			recs, err := idx.AgentSearches(ctx2, agent, limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(rw, recs)
			return
		}
		_ = idx.Sync(ctx2)
		sum, err := idx.SearchSummary(ctx2)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, map[string]any{"summary": sum, "index": idx.Stats()})
	})
	if *pprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	gw, gh, gd := tiles.Grid().Size()
	logger.Printf("world=%s run=%s grid=%dx%dx%d tick_rate=%d neighbourhood=%s relax=%s listening on %s",
		*worldID, runID, gw, gh, gd, cfg.TickRateHz, finder.Neighbourhood(), finder.Relax(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		exitCode = 1
	}
	cancel()
	<-worldDone
	logger.Printf("world stopped at tick=%d", w.CurrentTick())
}

// startWorld runs the world loop until ctx is cancelled. The returned channel
// is closed once the loop has returned and no tick is in flight.
func startWorld(ctx context.Context, w *world.World, logger *log.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()
	return done
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
