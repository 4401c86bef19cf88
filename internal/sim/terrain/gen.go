package terrain

import (
	"math/rand"

	"voxelpath.ai/internal/sim/grid"
)

type GenConfig struct {
	Seed int64
	// Floor lays a solid layer at z=0.
	Floor bool

	WallPermille   int
	LadderPermille int
	StairsPermille int
}

// Generate builds a tile map deterministically from cfg.Seed. Cells above the
// floor are visited in grid.Index order and each draws one roll against the
// wall, ladder and stairs bands.
func Generate(g grid.Grid, cfg GenConfig) *Tilemap {
	m := New(g)
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < g.Len(); i++ {
		p := g.PosAt(i)
		if cfg.Floor && p.Z == 0 {
			m.tiles[i] = Solid
			continue
		}
		roll := rng.Intn(1000)
		switch {
		case roll < cfg.WallPermille:
			m.tiles[i] = Solid
		case roll < cfg.WallPermille+cfg.LadderPermille:
			m.tiles[i] = Ladder
		case roll < cfg.WallPermille+cfg.LadderPermille+cfg.StairsPermille:
			m.tiles[i] = Stairs
		}
	}
	return m
}
