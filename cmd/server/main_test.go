package main

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"voxelpath.ai/internal/sim/tuning"
	"voxelpath.ai/internal/sim/world"
)

type countingTicks struct {
	mu sync.Mutex
	n  int
}

func (c *countingTicks) WriteTick(world.TickLogEntry) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingTicks) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestStartWorld_DoneMeansNoMoreTicks(t *testing.T) {
	tune := tuning.Defaults()
	tune.TickRateHz = 100
	tune.Grid = tuning.GridSize{Width: 8, Height: 8, Depth: 3}
	cfg, err := world.ConfigFromTuning("w1", tune)
	if err != nil {
		t.Fatalf("ConfigFromTuning: %v", err)
	}
	finder, err := world.NewPathfinder(tune.Pathfinding)
	if err != nil {
		t.Fatalf("NewPathfinder: %v", err)
	}
	w, err := world.New(cfg, world.GenerateTerrain(tune), finder)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ticks := &countingTicks{}
	w.SetTickLogger(ticks)

	ctx, cancel := context.WithCancel(context.Background())
	done := startWorld(ctx, w, log.New(io.Discard, "", 0))

	deadline := time.Now().Add(2 * time.Second)
	for ticks.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("world did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("world loop did not return")
	}
	after := ticks.count()
	if got := w.CurrentTick(); int(got) != after {
		t.Fatalf("tick=%d but %d ticks logged", got, after)
	}
	time.Sleep(50 * time.Millisecond)
	if ticks.count() != after {
		t.Fatalf("tick written after the loop returned: %d -> %d", after, ticks.count())
	}
}
