package pathfinding

import (
	"container/heap"
	"fmt"
	"time"

	"voxelpath.ai/internal/sim/grid"
)

// Pathfinder searches a grid for a path between two cells.
type Pathfinder interface {
	FindPath(g grid.Grid, l Locomotion, start, goal grid.Pos, cost CostStrategy, loco LocomotionStrategy) Result
}

type Neighbourhood int

const (
	// Planar searches the 8 neighbours on the same z layer.
	Planar Neighbourhood = iota
	// Volumetric searches all 26 neighbours.
	Volumetric
)

func ParseNeighbourhood(s string) (Neighbourhood, error) {
	switch s {
	case "", "2d":
		return Planar, nil
	case "3d":
		return Volumetric, nil
	}
	return Planar, fmt.Errorf("unknown neighbourhood %q", s)
}

func (n Neighbourhood) String() string {
	if n == Volumetric {
		return "3d"
	}
	return "2d"
}

type RelaxMode int

const (
	// RelaxOnce marks a cell visited when it is first pushed. Each cell is
	// relaxed from exactly one source and never reconsidered, so the stored
	// g is never compared against a later candidate.
	RelaxOnce RelaxMode = iota
	// RelaxStrict closes a cell when it is popped and only overwrites an
	// open cell when the new g is strictly lower. Superseded queue entries
	// are skipped on pop.
	RelaxStrict
)

func ParseRelaxMode(s string) (RelaxMode, error) {
	switch s {
	case "", "once":
		return RelaxOnce, nil
	case "strict":
		return RelaxStrict, nil
	}
	return RelaxOnce, fmt.Errorf("unknown relax mode %q", s)
}

func (m RelaxMode) String() string {
	if m == RelaxStrict {
		return "strict"
	}
	return "once"
}

// AStar is a stateless A* engine. All per-search state is allocated inside
// FindPath, so one AStar can be shared by concurrent callers.
type AStar struct {
	neighbourhood Neighbourhood
	heuristic     Heuristic
	scale         int
	maxIterations int
	relax         RelaxMode
}

type Option func(*AStar)

func WithNeighbourhood(n Neighbourhood) Option { return func(a *AStar) { a.neighbourhood = n } }

func WithHeuristic(h Heuristic) Option { return func(a *AStar) { a.heuristic = h } }

func WithHeuristicScale(scale int) Option { return func(a *AStar) { a.scale = scale } }

// WithMaxIterations caps the number of expansions. Zero means no cap.
func WithMaxIterations(n int) Option { return func(a *AStar) { a.maxIterations = n } }

func WithRelax(m RelaxMode) Option { return func(a *AStar) { a.relax = m } }

func NewAStar(opts ...Option) AStar {
	a := AStar{
		neighbourhood: Planar,
		heuristic:     Euclidean,
		scale:         DefaultHeuristicScale,
	}
	for _, o := range opts {
		o(&a)
	}
	if a.heuristic == nil {
		a.heuristic = Euclidean
	}
	if a.scale <= 0 {
		a.scale = DefaultHeuristicScale
	}
	if a.maxIterations < 0 {
		a.maxIterations = 0
	}
	return a
}

func (a AStar) Neighbourhood() Neighbourhood { return a.neighbourhood }

func (a AStar) Relax() RelaxMode { return a.relax }

func (a AStar) FindPath(g grid.Grid, l Locomotion, start, goal grid.Pos, cost CostStrategy, loco LocomotionStrategy) Result {
	began := time.Now()
	if !g.InBounds(start) || !g.InBounds(goal) {
		return WithFailStats(0, time.Since(began))
	}
	if cost == nil {
		cost = NoOpCost{}
	}
	if loco == nil {
		loco = NoOpLocomotion{}
	}
	h := a.heuristic
	if h == nil {
		h = Euclidean
	}
	scale := a.scale
	if scale <= 0 {
		scale = DefaultHeuristicScale
	}
	strict := a.relax == RelaxStrict

	space := NewSpace(g)
	// seen holds visited-at-push cells in RelaxOnce and closed-at-pop cells
	// in RelaxStrict.
	seen := make([]bool, g.Len())
	open := make(openQueue, 0, 64)
	seq := 0

	startH := h(start, goal, scale)
	space.Set(newNode(start, 0, startH), grid.Pos{}, false)
	heap.Push(&open, openEntry{pos: start, cost: startH, seq: seq})
	seq++
	if !strict {
		seen[g.Index(start)] = true
	}

	var buf [26]grid.Neighbour
	iterations := 0
	for open.Len() > 0 {
		if a.maxIterations > 0 && iterations >= a.maxIterations {
			break
		}
		e := heap.Pop(&open).(openEntry)
		cur, ok := space.Get(e.pos)
		if !ok {
			panic(fmt.Sprintf("pathfinding: popped %v which is not in the search space", e.pos))
		}
		if strict {
			ci := g.Index(e.pos)
			if seen[ci] || e.cost != cur.Node.Cost {
				continue
			}
			seen[ci] = true
		}
		iterations++

		if e.pos == goal {
			return WithStats(iterations, time.Since(began), space.CarvePath(goal))
		}

		for _, n := range a.neighbours(g, e.pos, &buf) {
			if !n.OK {
				continue
			}
			ni := g.Index(n.Pos)
			if seen[ni] {
				continue
			}
			step, ok := cost.IsPassable(e.pos, n.Pos).Step()
			if !ok {
				continue
			}
			if !loco.IsPassable(l, e.pos, n.Pos) {
				continue
			}
			ng := cur.Node.G + step
			if strict {
				if prev, ok := space.Get(n.Pos); ok && ng >= prev.Node.G {
					continue
				}
			}
			node := newNode(n.Pos, ng, h(n.Pos, goal, scale))
			space.Set(node, e.pos, true)
			heap.Push(&open, openEntry{pos: n.Pos, cost: node.Cost, seq: seq})
			seq++
			if !strict {
				seen[ni] = true
			}
		}
	}
	return WithFailStats(iterations, time.Since(began))
}

func (a AStar) neighbours(g grid.Grid, p grid.Pos, buf *[26]grid.Neighbour) []grid.Neighbour {
	if a.neighbourhood == Volumetric {
		*buf = g.Neighbours3D(p)
		return buf[:]
	}
	n := g.Neighbours(p)
	copy(buf[:8], n[:])
	return buf[:8]
}
