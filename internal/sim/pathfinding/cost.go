package pathfinding

import (
	"math"

	"voxelpath.ai/internal/sim/grid"
)

const (
	StraightCost = 10
	DiagonalCost = 14
)

// Cost is the outcome of a CostStrategy check: either blocked, or passable
// at a non-negative step cost.
type Cost struct {
	step    int
	blocked bool
}

var Blocked = Cost{blocked: true}

func Passable(step int) Cost {
	if step < 0 {
		step = 0
	}
	return Cost{step: step}
}

func (c Cost) IsBlocked() bool { return c.blocked }

// Step returns the step cost and whether the move is passable.
func (c Cost) Step() (int, bool) {
	if c.blocked {
		return 0, false
	}
	return c.step, true
}

// CostStrategy answers whether a pather may step from src to dst and at what
// price.
type CostStrategy interface {
	IsPassable(src, dst grid.Pos) Cost
}

// CostFunc adapts a plain function to CostStrategy.
type CostFunc func(src, dst grid.Pos) Cost

func (f CostFunc) IsPassable(src, dst grid.Pos) Cost { return f(src, dst) }

// StepCost prices a single move by how many axes it changes. One axis costs
// straight and two cost diagonal, whether the pair is horizontal or
// vertical. A move along all three axes costs CornerCost(straight, diagonal).
// Under the 10/14 defaults no single step is cheaper than its Euclidean
// estimate at scale 10.
func StepCost(src, dst grid.Pos, straight, diagonal int) int {
	switch axesChanged(src, dst) {
	case 0, 1:
		return straight
	case 2:
		return diagonal
	default:
		return CornerCost(straight, diagonal)
	}
}

// CornerCost is ceil(straight*sqrt(3)), raised to diagonal if that is
// higher. It is 18 for a straight cost of 10.
func CornerCost(straight, diagonal int) int {
	c := int(math.Ceil(float64(straight) * math.Sqrt(3)))
	if c < diagonal {
		return diagonal
	}
	return c
}

func axesChanged(a, b grid.Pos) int {
	n := 0
	if a.X != b.X {
		n++
	}
	if a.Y != b.Y {
		n++
	}
	if a.Z != b.Z {
		n++
	}
	return n
}
