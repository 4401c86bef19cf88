package pathfinding

import (
	"fmt"

	"voxelpath.ai/internal/sim/grid"
)

// Entry is one populated slot of a Space.
type Entry struct {
	Node      Node
	Parent    grid.Pos
	HasParent bool
}

// Space is a dense, grid-addressed store of search records. Parent links are
// positions into the same store, so a path is traced by index rather than by
// pointer.
//
// Addressing goes through grid.Index. Passing a position outside the grid the
// Space was sized for is a caller bug: Set panics, Get and Take report false.
type Space struct {
	g     grid.Grid
	slots []Entry
	used  []bool
}

func NewSpace(g grid.Grid) *Space {
	return &Space{
		g:     g,
		slots: make([]Entry, g.Len()),
		used:  make([]bool, g.Len()),
	}
}

func (s *Space) Grid() grid.Grid { return s.g }

func (s *Space) Get(p grid.Pos) (Entry, bool) {
	if !s.g.InBounds(p) {
		return Entry{}, false
	}
	i := s.g.Index(p)
	if !s.used[i] {
		return Entry{}, false
	}
	return s.slots[i], true
}

// Set overwrites the slot at node.Pos.
func (s *Space) Set(node Node, parent grid.Pos, hasParent bool) {
	if !s.g.InBounds(node.Pos) {
		panic(fmt.Sprintf("pathfinding: Set %v outside grid %dx%dx%d", node.Pos, s.g.Width(), s.g.Height(), s.g.Depth()))
	}
	i := s.g.Index(node.Pos)
	s.slots[i] = Entry{Node: node, Parent: parent, HasParent: hasParent}
	s.used[i] = true
}

// Take removes and returns the slot at p.
func (s *Space) Take(p grid.Pos) (Entry, bool) {
	if !s.g.InBounds(p) {
		return Entry{}, false
	}
	i := s.g.Index(p)
	if !s.used[i] {
		return Entry{}, false
	}
	e := s.slots[i]
	s.slots[i] = Entry{}
	s.used[i] = false
	return e, true
}

// Parent returns the stored record of p's parent, if any.
func (s *Space) Parent(p grid.Pos) (Node, bool) {
	e, ok := s.Get(p)
	if !ok || !e.HasParent {
		return Node{}, false
	}
	pe, ok := s.Get(e.Parent)
	if !ok {
		return Node{}, false
	}
	return pe.Node, true
}

// Clear empties every slot so the Space can serve another search.
func (s *Space) Clear() {
	clear(s.slots)
	clear(s.used)
}

// CarvePath walks parent links back from end, taking each slot out of the
// store, and returns the nodes ordered start to end.
func (s *Space) CarvePath(end grid.Pos) []Node {
	var out []Node
	next := end
	for {
		e, ok := s.Take(next)
		if !ok {
			break
		}
		out = append(out, e.Node)
		if !e.HasParent {
			break
		}
		next = e.Parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
