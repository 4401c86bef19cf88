package world

import (
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/pathfinding"
)

// systemMovement is the only reader of pather cursors. Each agent with a
// ready path steps one node per tick; an exhausted or failed request is
// reported and cleared so the agent can ask again.
func (w *World) systemMovement(nowTick uint64) (moves int) {
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		switch a.Pather.Request().Kind {
		case pathfinding.RequestReady:
			n, ok := a.Pather.Next()
			if ok && n.Pos == a.Pos {
				n, ok = a.Pather.Next()
			}
			if ok {
				a.Pos = n.Pos
				moves++
				a.AddEvent(protocol.Event{
					"t":    nowTick,
					"type": protocol.EventStatus,
					"ref":  a.PathRef,
					"pos":  a.Pos.Array(),
				})
			}
			if _, more := a.Pather.Current(); !more {
				a.AddEvent(protocol.Event{
					"t":    nowTick,
					"type": protocol.EventPathDone,
					"ref":  a.PathRef,
					"pos":  a.Pos.Array(),
				})
				a.Pather.Reset()
				a.PathRef = ""
			}

		case pathfinding.RequestFailed:
			a.AddEvent(protocol.Event{
				"t":    nowTick,
				"type": protocol.EventPathFailed,
				"ref":  a.PathRef,
			})
			a.Pather.Reset()
			a.PathRef = ""
		}
	}
	return moves
}
