package terrain

import (
	"fmt"
	"strings"

	"voxelpath.ai/internal/sim/grid"
)

type Tile uint8

const (
	Empty Tile = iota
	Solid
	Ladder
	Stairs
)

var tileNames = [...]string{"EMPTY", "SOLID", "LADDER", "STAIRS"}

func (t Tile) String() string {
	if int(t) < len(tileNames) {
		return tileNames[t]
	}
	return fmt.Sprintf("TILE_%d", t)
}

func ParseTile(s string) (Tile, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range tileNames {
		if n == key {
			return Tile(i), nil
		}
	}
	return Empty, fmt.Errorf("unknown tile %q", s)
}

// Tilemap is a dense tile array addressed through grid.Index.
type Tilemap struct {
	g     grid.Grid
	tiles []Tile
}

func New(g grid.Grid) *Tilemap {
	return &Tilemap{g: g, tiles: make([]Tile, g.Len())}
}

// FromTiles wraps an existing tile slice. It fails when the slice does not
// match the grid's cell count.
func FromTiles(g grid.Grid, tiles []Tile) (*Tilemap, error) {
	if len(tiles) != g.Len() {
		return nil, fmt.Errorf("tile count %d does not match grid %dx%dx%d", len(tiles), g.Width(), g.Height(), g.Depth())
	}
	cp := make([]Tile, len(tiles))
	copy(cp, tiles)
	return &Tilemap{g: g, tiles: cp}, nil
}

func (m *Tilemap) Grid() grid.Grid { return m.g }

// Tiles returns a copy of the backing array in grid.Index order.
func (m *Tilemap) Tiles() []Tile {
	cp := make([]Tile, len(m.tiles))
	copy(cp, m.tiles)
	return cp
}

// Tile reports the tile at p. Off-grid cells report false.
func (m *Tilemap) Tile(p grid.Pos) (Tile, bool) {
	if !m.g.InBounds(p) {
		return Empty, false
	}
	return m.tiles[m.g.Index(p)], true
}

// SetTile ignores off-grid positions.
func (m *Tilemap) SetTile(p grid.Pos, t Tile) {
	if !m.g.InBounds(p) {
		return
	}
	m.tiles[m.g.Index(p)] = t
}

// IsPassable is false for solid tiles and for anything off the grid.
func (m *Tilemap) IsPassable(p grid.Pos) bool {
	t, ok := m.Tile(p)
	return ok && t != Solid
}

func (m *Tilemap) Clone() *Tilemap {
	return &Tilemap{g: m.g, tiles: m.Tiles()}
}

// Count returns how many cells hold t.
func (m *Tilemap) Count(t Tile) int {
	n := 0
	for _, v := range m.tiles {
		if v == t {
			n++
		}
	}
	return n
}
