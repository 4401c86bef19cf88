package pathfinding

import (
	"time"

	"voxelpath.ai/internal/sim/grid"
)

// Result is the immutable outcome of one search.
type Result struct {
	iterations int
	duration   time.Duration
	path       []Node
	found      bool
}

// WithStats builds a successful result. The path must run start to goal.
func WithStats(iterations int, d time.Duration, path []Node) Result {
	cp := make([]Node, len(path))
	copy(cp, path)
	return Result{iterations: iterations, duration: d, path: cp, found: true}
}

// WithFailStats builds a failed result carrying the diagnostics collected
// before the search gave up.
func WithFailStats(iterations int, d time.Duration) Result {
	return Result{iterations: iterations, duration: d}
}

func (r Result) Success() bool { return r.found }

// Path returns a copy of the nodes from start to goal, or nil on failure.
func (r Result) Path() []Node {
	if !r.found {
		return nil
	}
	out := make([]Node, len(r.path))
	copy(out, r.path)
	return out
}

// At returns the i-th node of the path.
func (r Result) At(i int) (Node, bool) {
	if i < 0 || i >= len(r.path) {
		return Node{}, false
	}
	return r.path[i], true
}

func (r Result) Len() int { return len(r.path) }

func (r Result) Positions() []grid.Pos {
	if !r.found {
		return nil
	}
	out := make([]grid.Pos, len(r.path))
	for i, n := range r.path {
		out[i] = n.Pos
	}
	return out
}

// Cost is the accumulated step cost of the goal node.
func (r Result) Cost() int {
	if len(r.path) == 0 {
		return 0
	}
	return r.path[len(r.path)-1].G
}

func (r Result) Iterations() int { return r.iterations }

func (r Result) Duration() time.Duration { return r.duration }
