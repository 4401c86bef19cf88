package pathfinding

import "voxelpath.ai/internal/sim/grid"

// NoOpCost prices every move at StraightCost. For tests and benchmarks.
type NoOpCost struct{}

func (NoOpCost) IsPassable(grid.Pos, grid.Pos) Cost { return Passable(StraightCost) }

// NoOpLocomotion accepts every move. For tests and benchmarks.
type NoOpLocomotion struct{}

func (NoOpLocomotion) IsPassable(Locomotion, grid.Pos, grid.Pos) bool { return true }
