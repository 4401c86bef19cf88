package pathfinding

import (
	"math"

	"voxelpath.ai/internal/sim/grid"
)

// DefaultHeuristicScale keeps heuristic values commensurate with the 10/14
// step costs.
const DefaultHeuristicScale = 10

// Heuristic estimates the remaining cost from a to b, already multiplied by
// scale.
type Heuristic func(a, b grid.Pos, scale int) int

// Euclidean is floor(scale * straight-line distance). It pairs with 10/14
// diagonal pricing.
func Euclidean(a, b grid.Pos, scale int) int {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return int(math.Floor(float64(scale) * math.Sqrt(dx*dx+dy*dy+dz*dz)))
}

// Manhattan is scale * (|dx|+|dy|+|dz|). It overestimates diagonal moves, so
// paths are not optimal when diagonal steps are allowed.
func Manhattan(a, b grid.Pos, scale int) int {
	return scale * (abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z))
}

// HeuristicByName maps config names to heuristics.
func HeuristicByName(name string) (Heuristic, bool) {
	switch name {
	case "", "euclidean":
		return Euclidean, true
	case "manhattan":
		return Manhattan, true
	}
	return nil, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
