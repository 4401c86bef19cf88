package world

import (
	"golang.org/x/sync/errgroup"

	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
	"voxelpath.ai/internal/sim/terrain"
)

type searchJob struct {
	agent  *Agent
	req    pathfinding.PathRequest
	result pathfinding.Result
}

// systemPathfinding claims every pending request, runs the searches and
// stores each outcome back in its agent's pather. Searches share nothing but
// the read-only terrain, so small batches run inline and larger ones fan out
// to at most cfg.Workers goroutines. The outcome is identical either way.
func (w *World) systemPathfinding(nowTick uint64) []SearchRecord {
	var jobs []*searchJob
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a.Pather.NeedsPath() {
			jobs = append(jobs, &searchJob{agent: a})
		}
	}
	pendingRequests.Set(float64(len(jobs)))
	if len(jobs) == 0 {
		return nil
	}

	cost := terrain.NewCost(w.tiles, w.cfg.StraightCost, w.cfg.DiagonalCost)
	loco := terrain.NewLocomotion(w.tiles)

	run := func(j *searchJob) {
		j.req = j.agent.Pather.TakeRequest()
		if j.req.Kind != pathfinding.RequestPending {
			return
		}
		j.result = w.finder.FindPath(w.grid, j.agent.Locomotion, j.req.Start, j.req.Goal, cost, loco)
		j.agent.Pather.Fulfil(j.result)
	}

	if len(jobs) >= w.cfg.ParallelThreshold && w.cfg.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(w.cfg.Workers)
		for _, j := range jobs {
			j := j
			g.Go(func() error {
				run(j)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, j := range jobs {
			run(j)
		}
	}

	records := make([]SearchRecord, 0, len(jobs))
	for _, j := range jobs {
		if j.req.Kind != pathfinding.RequestPending {
			continue
		}
		rec := searchRecord(nowTick, j)
		records = append(records, rec)
		observeSearch(j.result)
		j.agent.AddEvent(pathResultEvent(nowTick, j.agent.PathRef, j.result))
		if w.searchLogger != nil {
			if err := w.searchLogger.WriteSearch(rec); err != nil {
				w.logf("search log: %v", err)
			}
		}
		w.searchesTotal++
		if j.result.Success() {
			w.foundTotal++
		}
	}
	return records
}

func searchRecord(nowTick uint64, j *searchJob) SearchRecord {
	return SearchRecord{
		Tick:       nowTick,
		AgentID:    j.agent.ID,
		Ref:        j.agent.PathRef,
		Start:      j.req.Start.Array(),
		Goal:       j.req.Goal.Array(),
		Found:      j.result.Success(),
		PathLen:    j.result.Len(),
		Cost:       j.result.Cost(),
		Iterations: j.result.Iterations(),
		DurationUS: j.result.Duration().Microseconds(),
	}
}

func pathResultEvent(nowTick uint64, ref string, r pathfinding.Result) protocol.Event {
	e := protocol.Event{
		"t":           nowTick,
		"type":        protocol.EventPathResult,
		"ref":         ref,
		"ok":          r.Success(),
		"iterations":  r.Iterations(),
		"duration_us": r.Duration().Microseconds(),
	}
	if r.Success() {
		e["path"] = posArrays(r.Positions())
		e["cost"] = r.Cost()
	}
	return e
}

func posArrays(ps []grid.Pos) [][3]int {
	out := make([][3]int, len(ps))
	for i, p := range ps {
		out[i] = p.Array()
	}
	return out
}
