package pathfinding

import "voxelpath.ai/internal/sim/grid"

// openEntry orders a position by its cost at push time. The authoritative
// g/h live in the Space; an entry can be stale.
type openEntry struct {
	pos  grid.Pos
	cost int
	seq  int
}

// openQueue implements heap.Interface. Lowest cost pops first; equal costs
// pop in push order.
type openQueue []openEntry

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}

func (q openQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *openQueue) Push(x any) { *q = append(*q, x.(openEntry)) }

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}
