package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		snapPath    = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir   = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		searchesDir = flag.String("searches", "", "searches dir containing searches-*.jsonl.zst (optional)")
		fromTick    = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick      = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" && *searchesDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -searches")
		os.Exit(2)
	}

	if *snapPath != "" {
		if err := verify(*snapPath, *eventsDir, *fromTick, *toTick); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	if *searchesDir != "" {
		sum, err := summarizeSearches(*searchesDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "searches:", err)
			os.Exit(1)
		}
		sum.print()
	}
}

func verify(snapPath, eventsDir string, fromTick, toTick uint64) error {
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	tiles, err := snap.Terrain()
	if err != nil {
		return fmt.Errorf("snapshot terrain: %w", err)
	}
	g := snap.Header.Grid
	fmt.Printf("snapshot v%d world=%s tick=%d grid=%dx%dx%d seed=%d neighbourhood=%s heuristic=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, g[0], g[1], g[2],
		snap.Tuning.Terrain.Seed, snap.Tuning.Pathfinding.Neighbourhood, snap.Tuning.Pathfinding.Heuristic)

	if eventsDir == "" {
		return nil
	}

	cfg, err := world.ConfigFromTuning(snap.Header.WorldID, snap.Tuning)
	if err != nil {
		return fmt.Errorf("world config: %w", err)
	}
	finder, err := world.NewPathfinder(snap.Tuning.Pathfinding)
	if err != nil {
		return fmt.Errorf("pathfinder: %w", err)
	}
	w, err := world.New(cfg, tiles, finder)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}

	files, err := persistlog.ListFiles(eventsDir, "events")
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no events files found in %s", eventsDir)
	}

	var checked uint64
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}
			joins, leaves, acts := inputsOf(entry)
			tick, digest := w.StepOnce(joins, leaves, acts)
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
			}
			if tick >= fromTick {
				checked++
				if digest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return err
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
	return nil
}

// inputsOf rebuilds the world inputs that produced a logged tick.
func inputsOf(entry world.TickLogEntry) ([]world.JoinRequest, []string, []world.ActionEnvelope) {
	joins := make([]world.JoinRequest, 0, len(entry.Joins))
	for _, j := range entry.Joins {
		req := world.JoinRequest{AgentID: j.AgentID, Name: j.Name, Locomotion: j.Locomotion}
		if j.Spawn != nil {
			p := grid.FromArray(*j.Spawn)
			req.Spawn = &p
		}
		joins = append(joins, req)
	}

	acts := make([]world.ActionEnvelope, 0, len(entry.Actions))
	for _, ra := range entry.Actions {
		env := world.ActionEnvelope{AgentID: ra.AgentID}
		switch ra.Type {
		case protocol.TypeGoto:
			msg := protocol.GotoMsg{Type: protocol.TypeGoto, ProtocolVersion: protocol.Version, ID: ra.Ref}
			if ra.Goal != nil {
				msg.Goal = *ra.Goal
			}
			env.Goto = &msg
		case protocol.TypeCancel:
			env.Cancel = &protocol.CancelMsg{Type: protocol.TypeCancel, ProtocolVersion: protocol.Version, ID: ra.Ref}
		default:
			continue
		}
		acts = append(acts, env)
	}
	return joins, entry.Leaves, acts
}

type searchSummary struct {
	Total         int
	Found         int
	SumIterations int64
	MaxIterations int
	SumDurationUS int64
	MaxDurationUS int64
	SumPathLen    int64
}

func summarizeSearches(dir string) (searchSummary, error) {
	var sum searchSummary
	files, err := persistlog.ListFiles(dir, "searches")
	if err != nil {
		return sum, err
	}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var rec world.SearchRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			sum.add(rec)
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s *searchSummary) add(rec world.SearchRecord) {
	s.Total++
	s.SumIterations += int64(rec.Iterations)
	if rec.Iterations > s.MaxIterations {
		s.MaxIterations = rec.Iterations
	}
	s.SumDurationUS += rec.DurationUS
	if rec.DurationUS > s.MaxDurationUS {
		s.MaxDurationUS = rec.DurationUS
	}
	if rec.Found {
		s.Found++
		s.SumPathLen += int64(rec.PathLen)
	}
}

func (s searchSummary) print() {
	if s.Total == 0 {
		fmt.Println("searches: none")
		return
	}
	avgPath := 0.0
	if s.Found > 0 {
		avgPath = float64(s.SumPathLen) / float64(s.Found)
	}
	fmt.Printf("searches=%d found=%d success=%.1f%% avg_iterations=%.1f max_iterations=%d avg_duration=%s max_duration=%s avg_path_len=%.1f\n",
		s.Total, s.Found, 100*float64(s.Found)/float64(s.Total),
		float64(s.SumIterations)/float64(s.Total), s.MaxIterations,
		time.Duration(s.SumDurationUS/int64(s.Total))*time.Microsecond,
		time.Duration(s.MaxDurationUS)*time.Microsecond, avgPath)
}
