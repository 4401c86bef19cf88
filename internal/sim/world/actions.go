package world

import (
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
	"voxelpath.ai/internal/sim/terrain"
)

// applyGoto validates a GOTO at the world boundary and, when accepted, stores
// a pending request from the agent's current cell. An accepted GOTO replaces
// a ready or failed path; it never replaces one that is still pending.
func (w *World) applyGoto(a *Agent, msg protocol.GotoMsg, nowTick uint64) {
	if msg.ID == "" {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrBadRequest, "missing id"))
		return
	}
	goal := grid.FromArray(msg.Goal)
	if !w.grid.InBounds(goal) {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrInvalidTarget, "goal out of bounds"))
		return
	}
	if t, _ := w.tiles.Tile(goal); t == terrain.Solid {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrBlocked, "goal is solid"))
		return
	}
	if a.Pather.NeedsPath() {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrConflict, "path request already pending"))
		return
	}
	a.Pather.SetRequest(pathfinding.Pending(a.Pos, goal))
	a.PathRef = msg.ID
	a.AddEvent(protocol.ActionResult(nowTick, msg.ID, true, "", "ok"))
}

func (w *World) applyCancel(a *Agent, msg protocol.CancelMsg, nowTick uint64) {
	if a.Pather.Request().Kind == pathfinding.RequestNone {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrInvalidTarget, "no active path"))
		return
	}
	if msg.ID != a.PathRef {
		a.AddEvent(protocol.ActionResult(nowTick, msg.ID, false, protocol.ErrInvalidTarget, "path not found"))
		return
	}
	a.Pather.Reset()
	a.PathRef = ""
	a.AddEvent(protocol.ActionResult(nowTick, msg.ID, true, "", "canceled"))
}
