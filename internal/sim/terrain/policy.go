package terrain

import (
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
)

// Cost prices moves over a tile map. It holds a reference to the map, which
// must not change while a search is running.
type Cost struct {
	tiles    *Tilemap
	straight int
	diagonal int
}

func NewCost(m *Tilemap, straight, diagonal int) Cost {
	if straight <= 0 {
		straight = pathfinding.StraightCost
	}
	if diagonal <= 0 {
		diagonal = pathfinding.DiagonalCost
	}
	return Cost{tiles: m, straight: straight, diagonal: diagonal}
}

func (c Cost) IsPassable(src, dst grid.Pos) pathfinding.Cost {
	if !c.tiles.IsPassable(dst) {
		return pathfinding.Blocked
	}
	return pathfinding.Passable(pathfinding.StepCost(src, dst, c.straight, c.diagonal))
}

// Locomotion applies movement abilities to a tile map.
type Locomotion struct {
	tiles *Tilemap
}

func NewLocomotion(m *Tilemap) Locomotion {
	return Locomotion{tiles: m}
}

func (l Locomotion) IsPassable(caps pathfinding.Locomotion, _ grid.Pos, dst grid.Pos) bool {
	if caps.Has(pathfinding.GoAnywhere) {
		return true
	}
	t, ok := l.tiles.Tile(dst)
	if !ok {
		return false
	}
	if t == Ladder && caps.Has(pathfinding.ClimbLadders) {
		return true
	}
	if t == Stairs && caps.Has(pathfinding.ClimbStairs) {
		return true
	}
	if caps.Has(pathfinding.GroundWalk) {
		below, ok := l.tiles.Tile(dst.Below())
		// Bottom of the world has nothing to stand on.
		return ok && below == Solid
	}
	return false
}
