package pathfinding

import (
	"testing"

	"voxelpath.ai/internal/sim/grid"
)

func TestSpaceSetGetTake(t *testing.T) {
	s := NewSpace(grid.WithSize(4, 4, 4))
	p := grid.P(1, 2, 3)
	if _, ok := s.Get(p); ok {
		t.Fatalf("fresh space should be empty")
	}
	s.Set(newNode(p, 10, 5), grid.P(1, 2, 2), true)
	e, ok := s.Get(p)
	if !ok || e.Node.Cost != 15 || !e.HasParent || e.Parent != grid.P(1, 2, 2) {
		t.Fatalf("unexpected entry: %+v ok=%v", e, ok)
	}

	s.Set(newNode(p, 4, 5), grid.Pos{}, false)
	e, _ = s.Get(p)
	if e.Node.G != 4 || e.HasParent {
		t.Fatalf("Set should overwrite: %+v", e)
	}

	if _, ok := s.Take(p); !ok {
		t.Fatalf("Take should return the slot")
	}
	if _, ok := s.Take(p); ok {
		t.Fatalf("second Take should find nothing")
	}
}

func TestSpaceOutOfGrid(t *testing.T) {
	s := NewSpace(grid.WithSize(2, 2, 2))
	if _, ok := s.Get(grid.P(2, 0, 0)); ok {
		t.Fatalf("Get outside grid should report false")
	}
	if _, ok := s.Take(grid.P(0, 0, -1)); ok {
		t.Fatalf("Take outside grid should report false")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("Set outside grid should panic")
		}
	}()
	s.Set(newNode(grid.P(0, 5, 0), 0, 0), grid.Pos{}, false)
}

func TestSpaceClear(t *testing.T) {
	g := grid.WithSize(3, 3, 1)
	s := NewSpace(g)
	for i := 0; i < g.Len(); i++ {
		s.Set(newNode(g.PosAt(i), i, 0), grid.Pos{}, false)
	}
	s.Clear()
	for i := 0; i < g.Len(); i++ {
		if _, ok := s.Get(g.PosAt(i)); ok {
			t.Fatalf("slot %d survived Clear", i)
		}
	}
}

func TestSpaceCarvePath(t *testing.T) {
	s := NewSpace(grid.WithSize(5, 1, 1))
	s.Set(newNode(grid.P(0, 0, 0), 0, 40), grid.Pos{}, false)
	s.Set(newNode(grid.P(1, 0, 0), 10, 30), grid.P(0, 0, 0), true)
	s.Set(newNode(grid.P(2, 0, 0), 20, 20), grid.P(1, 0, 0), true)
	s.Set(newNode(grid.P(4, 0, 0), 99, 0), grid.P(3, 0, 0), true)

	if parent, ok := s.Parent(grid.P(2, 0, 0)); !ok || parent.Pos != grid.P(1, 0, 0) {
		t.Fatalf("Parent mismatch: %+v ok=%v", parent, ok)
	}

	path := s.CarvePath(grid.P(2, 0, 0))
	if len(path) != 3 {
		t.Fatalf("len=%d want 3", len(path))
	}
	for i, n := range path {
		if n.Pos != grid.P(i, 0, 0) {
			t.Fatalf("node %d=%v", i, n.Pos)
		}
	}
	if _, ok := s.Get(grid.P(1, 0, 0)); ok {
		t.Fatalf("carving should take the visited slots")
	}
	if _, ok := s.Get(grid.P(4, 0, 0)); !ok {
		t.Fatalf("carving should leave unrelated slots")
	}
}
