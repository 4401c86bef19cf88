package pathfinding

import "voxelpath.ai/internal/sim/grid"

// Node is the best-known search record for one cell.
type Node struct {
	Pos grid.Pos
	// G is the accumulated step cost from the start.
	G int
	// H is the heuristic estimate to the goal.
	H int
	// Cost is G+H, the open-queue priority.
	Cost int
}

func newNode(p grid.Pos, g, h int) Node {
	return Node{Pos: p, G: g, H: h, Cost: g + h}
}
