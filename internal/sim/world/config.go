package world

import (
	"fmt"

	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
	"voxelpath.ai/internal/sim/terrain"
	"voxelpath.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	StraightCost int
	DiagonalCost int

	// Workers caps the number of searches run at once. ParallelThreshold is
	// the pending count below which searches run on the world goroutine.
	Workers           int
	ParallelThreshold int

	MaxAgents         int
	DefaultLocomotion pathfinding.Locomotion
	Neighbourhood     pathfinding.Neighbourhood
}

func ConfigFromTuning(id string, t tuning.Tuning) (WorldConfig, error) {
	loco, err := pathfinding.ParseLocomotion(t.Agents.DefaultLocomotion)
	if err != nil {
		return WorldConfig{}, fmt.Errorf("agents.default_locomotion: %w", err)
	}
	nb, err := pathfinding.ParseNeighbourhood(t.Pathfinding.Neighbourhood)
	if err != nil {
		return WorldConfig{}, err
	}
	return WorldConfig{
		ID:                id,
		TickRateHz:        t.TickRateHz,
		Seed:              t.Terrain.Seed,
		StraightCost:      t.Pathfinding.StraightCost,
		DiagonalCost:      t.Pathfinding.DiagonalCost,
		Workers:           t.Pathfinding.Workers,
		ParallelThreshold: t.Pathfinding.ParallelThreshold,
		MaxAgents:         t.Agents.MaxAgents,
		DefaultLocomotion: loco,
		Neighbourhood:     nb,
	}, nil
}

// NewPathfinder builds the A* engine described by the pathfinding section of
// tuning.yaml.
func NewPathfinder(p tuning.Pathfinding) (pathfinding.AStar, error) {
	nb, err := pathfinding.ParseNeighbourhood(p.Neighbourhood)
	if err != nil {
		return pathfinding.AStar{}, err
	}
	h, ok := pathfinding.HeuristicByName(p.Heuristic)
	if !ok {
		return pathfinding.AStar{}, fmt.Errorf("unknown heuristic %q", p.Heuristic)
	}
	relax, err := pathfinding.ParseRelaxMode(p.Relax)
	if err != nil {
		return pathfinding.AStar{}, err
	}
	return pathfinding.NewAStar(
		pathfinding.WithNeighbourhood(nb),
		pathfinding.WithHeuristic(h),
		pathfinding.WithHeuristicScale(p.HeuristicScale),
		pathfinding.WithMaxIterations(p.MaxIterations),
		pathfinding.WithRelax(relax),
	), nil
}

func GenerateTerrain(t tuning.Tuning) *terrain.Tilemap {
	g := grid.WithSize(t.Grid.Width, t.Grid.Height, t.Grid.Depth)
	return terrain.Generate(g, terrain.GenConfig{
		Seed:           t.Terrain.Seed,
		Floor:          t.Terrain.Floor,
		WallPermille:   t.Terrain.WallPermille,
		LadderPermille: t.Terrain.LadderPermille,
		StairsPermille: t.Terrain.StairsPermille,
	})
}
