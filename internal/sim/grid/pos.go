package grid

import "fmt"

// Pos addresses one cell of a Grid. Z is the vertical axis.
type Pos struct {
	X int
	Y int
	Z int
}

func P(x, y, z int) Pos { return Pos{X: x, Y: y, Z: z} }

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }

func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }

// Below returns the cell directly underneath p.
func (p Pos) Below() Pos { return Pos{X: p.X, Y: p.Y, Z: p.Z - 1} }

// IsDiagonal2D reports whether moving from p to o changes both X and Y.
func (p Pos) IsDiagonal2D(o Pos) bool {
	return p.X != o.X && p.Y != o.Y
}

func (p Pos) Array() [3]int { return [3]int{p.X, p.Y, p.Z} }

func FromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}
