package grid

// Grid is a fixed-size 3D index space. It never changes size after construction.
type Grid struct {
	w, h, d int
}

// Neighbour is one slot of a neighbour table. OK is false when the offset
// falls outside the grid.
type Neighbour struct {
	Pos Pos
	OK  bool
}

// Offsets2D is the planar neighbour order: rows of y, then x, at the same z.
var Offsets2D = [8]Pos{
	{-1, -1, 0}, {0, -1, 0}, {1, -1, 0},
	{-1, 0, 0}, {1, 0, 0},
	{-1, 1, 0}, {0, 1, 0}, {1, 1, 0},
}

// Offsets3D is the volumetric neighbour order: the layer below, the same
// layer, then the layer above, each in Offsets2D order with the centre column
// included (except for self).
var Offsets3D = buildOffsets3D()

func buildOffsets3D() [26]Pos {
	var out [26]Pos
	i := 0
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[i] = Pos{X: dx, Y: dy, Z: dz}
				i++
			}
		}
	}
	return out
}

func WithSize(w, h, d int) Grid {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if d < 0 {
		d = 0
	}
	return Grid{w: w, h: h, d: d}
}

func (g Grid) Size() (w, h, d int) { return g.w, g.h, g.d }

func (g Grid) Width() int  { return g.w }
func (g Grid) Height() int { return g.h }
func (g Grid) Depth() int  { return g.d }

// Len is the number of cells in the grid.
func (g Grid) Len() int { return g.w * g.h * g.d }

func (g Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < g.w &&
		p.Y >= 0 && p.Y < g.h &&
		p.Z >= 0 && p.Z < g.d
}

// Index flattens p into a dense slice index. Every per-cell store in the
// module addresses its cells through this function. The result is only
// meaningful when InBounds(p) holds.
func (g Grid) Index(p Pos) int {
	return p.X + p.Y*g.w + p.Z*g.w*g.h
}

// PosAt is the inverse of Index.
func (g Grid) PosAt(i int) Pos {
	plane := g.w * g.h
	z := i / plane
	rem := i % plane
	return Pos{X: rem % g.w, Y: rem / g.w, Z: z}
}

// Neighbours returns the 8 planar neighbours of p in Offsets2D order.
func (g Grid) Neighbours(p Pos) [8]Neighbour {
	var out [8]Neighbour
	for i, off := range Offsets2D {
		n := p.Add(off)
		out[i] = Neighbour{Pos: n, OK: g.InBounds(n)}
	}
	return out
}

// Neighbours3D returns the 26 volumetric neighbours of p in Offsets3D order.
func (g Grid) Neighbours3D(p Pos) [26]Neighbour {
	var out [26]Neighbour
	for i, off := range Offsets3D {
		n := p.Add(off)
		out[i] = Neighbour{Pos: n, OK: g.InBounds(n)}
	}
	return out
}
