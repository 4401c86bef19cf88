package pathfinding

import (
	"fmt"
	"sort"
	"strings"

	"voxelpath.ai/internal/sim/grid"
)

// Locomotion is the set of movement abilities of one agent. It is a value:
// build it once with NewLocomotion and read it during search.
type Locomotion struct {
	methods uint32
}

const (
	// GroundWalk needs solid ground underneath.
	GroundWalk uint32 = 1 << 0
	// ClimbStairs traverses level-change features like stairs and ramps.
	ClimbStairs uint32 = 1 << 1
	// ClimbLadders traverses climbable structures like ladders and vines.
	ClimbLadders uint32 = 1 << 2
	// GoAnywhere disregards terrain rules.
	GoAnywhere uint32 = 1 << 31
)

var locomotionNames = map[string]uint32{
	"GROUND_WALK":   GroundWalk,
	"CLIMB_STAIRS":  ClimbStairs,
	"CLIMB_LADDERS": ClimbLadders,
	"GO_ANYWHERE":   GoAnywhere,
}

func NewLocomotion(methods ...uint32) Locomotion {
	var m uint32
	for _, v := range methods {
		m |= v
	}
	return Locomotion{methods: m}
}

// Has reports whether every bit of method is set.
func (l Locomotion) Has(method uint32) bool { return l.methods&method == method }

func (l Locomotion) Methods() uint32 { return l.methods }

// ParseLocomotion builds a Locomotion from wire names like "GROUND_WALK".
func ParseLocomotion(names []string) (Locomotion, error) {
	var methods []uint32
	for _, n := range names {
		key := strings.ToUpper(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		m, ok := locomotionNames[key]
		if !ok {
			return Locomotion{}, fmt.Errorf("unknown locomotion %q", n)
		}
		methods = append(methods, m)
	}
	return NewLocomotion(methods...), nil
}

// Names lists the wire names of the set bits, sorted.
func (l Locomotion) Names() []string {
	var out []string
	for name, bit := range locomotionNames {
		if l.Has(bit) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (l Locomotion) String() string {
	return strings.Join(l.Names(), "|")
}

// LocomotionStrategy answers whether an agent with the given abilities may
// step from src to dst. It is independent of terrain cost.
type LocomotionStrategy interface {
	IsPassable(l Locomotion, src, dst grid.Pos) bool
}

// LocomotionFunc adapts a plain function to LocomotionStrategy.
type LocomotionFunc func(l Locomotion, src, dst grid.Pos) bool

func (f LocomotionFunc) IsPassable(l Locomotion, src, dst grid.Pos) bool { return f(l, src, dst) }
