package world

import (
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
)

type Agent struct {
	ID         string
	Name       string
	Pos        grid.Pos
	Locomotion pathfinding.Locomotion
	Pather     *pathfinding.Pather

	// PathRef is the client id of the GOTO that owns the pather's request.
	PathRef string

	events []protocol.Event
}

func (a *Agent) AddEvent(e protocol.Event) { a.events = append(a.events, e) }

func (a *Agent) TakeEvents() []protocol.Event {
	out := a.events
	a.events = nil
	return out
}
