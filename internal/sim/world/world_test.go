package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
	"voxelpath.ai/internal/sim/terrain"
	"voxelpath.ai/internal/sim/tuning"
)

func flatTerrain(w, h, d int) *terrain.Tilemap {
	return terrain.Generate(grid.WithSize(w, h, d), terrain.GenConfig{Seed: 1, Floor: true})
}

func testConfig() WorldConfig {
	return WorldConfig{
		ID:                "test",
		TickRateHz:        5,
		StraightCost:      pathfinding.StraightCost,
		DiagonalCost:      pathfinding.DiagonalCost,
		Workers:           1,
		ParallelThreshold: 1,
		MaxAgents:         64,
		DefaultLocomotion: pathfinding.NewLocomotion(pathfinding.GroundWalk),
		Neighbourhood:     pathfinding.Volumetric,
	}
}

func newTestWorld(t *testing.T, cfg WorldConfig, tiles *terrain.Tilemap) *World {
	t.Helper()
	w, err := New(cfg, tiles, pathfinding.NewAStar(pathfinding.WithNeighbourhood(cfg.Neighbourhood)))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

type joined struct {
	id   string
	out  chan []byte
	resp JoinResponse
}

func joinAt(t *testing.T, w *World, id string, spawn grid.Pos) joined {
	t.Helper()
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{AgentID: id, Name: id, Spawn: &spawn, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Code != "" {
		t.Fatalf("join %s: %s %s", id, r.Code, r.Message)
	}
	return joined{id: id, out: out, resp: r}
}

func gotoAct(agentID, ref string, goal grid.Pos) ActionEnvelope {
	return ActionEnvelope{AgentID: agentID, Goto: &protocol.GotoMsg{
		Type:            protocol.TypeGoto,
		ProtocolVersion: protocol.Version,
		ID:              ref,
		Goal:            goal.Array(),
	}}
}

// drain decodes every EVENTS message queued for one client.
func drain(t *testing.T, out chan []byte) []map[string]any {
	t.Helper()
	var events []map[string]any
	for {
		select {
		case b := <-out:
			var msg struct {
				Events []map[string]any `json:"events"`
			}
			if err := json.Unmarshal(b, &msg); err != nil {
				t.Fatalf("decode events: %v", err)
			}
			events = append(events, msg.Events...)
		default:
			return events
		}
	}
}

func findEvent(events []map[string]any, typ string) map[string]any {
	for _, e := range events {
		if e["type"] == typ {
			return e
		}
	}
	return nil
}

func TestWorld_JoinWelcome(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	j := joinAt(t, w, "A1", grid.P(2, 2, 1))
	wel := j.resp.Welcome
	if wel.AgentID != "A1" || wel.Spawn != [3]int{2, 2, 1} {
		t.Fatalf("unexpected welcome: %+v", wel)
	}
	if wel.WorldParams.Grid != [3]int{8, 8, 4} || wel.WorldParams.Neighbourhood != "3d" {
		t.Fatalf("unexpected world params: %+v", wel.WorldParams)
	}
	if len(wel.Locomotion) != 1 || wel.Locomotion[0] != "GROUND_WALK" {
		t.Fatalf("unexpected locomotion: %v", wel.Locomotion)
	}
}

func TestWorld_JoinAssignsUUIDAndSpawnsOnGround(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "bot", Resp: resp}}, nil, nil)
	r := <-resp
	if len(r.Welcome.AgentID) != 36 {
		t.Fatalf("expected uuid agent id, got %q", r.Welcome.AgentID)
	}
	if r.Welcome.Spawn != [3]int{0, 0, 1} {
		t.Fatalf("spawn=%v want first cell above the floor", r.Welcome.Spawn)
	}
}

func TestWorld_GotoWalksPathAndCompletes(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	j := joinAt(t, w, "A1", grid.P(0, 0, 1))
	drain(t, j.out)

	w.StepOnce(nil, nil, []ActionEnvelope{gotoAct("A1", "G1", grid.P(3, 3, 1))})
	events := drain(t, j.out)
	ar := findEvent(events, protocol.EventActionResult)
	if ar == nil || ar["ok"] != true || ar["ref"] != "G1" {
		t.Fatalf("missing accepted ACTION_RESULT: %v", events)
	}
	pr := findEvent(events, protocol.EventPathResult)
	if pr == nil || pr["ok"] != true {
		t.Fatalf("missing PATH_RESULT: %v", events)
	}
	if cost := pr["cost"].(float64); cost != 42 {
		t.Fatalf("cost=%v want 42", cost)
	}
	if path := pr["path"].([]any); len(path) != 4 {
		t.Fatalf("path=%v want 4 nodes", path)
	}
	a := w.agents["A1"]
	if a.Pos != grid.P(1, 1, 1) {
		t.Fatalf("after first tick pos=%v want (1,1,1)", a.Pos)
	}

	w.StepOnce(nil, nil, nil)
	if a.Pos != grid.P(2, 2, 1) {
		t.Fatalf("after second tick pos=%v", a.Pos)
	}
	drain(t, j.out)

	w.StepOnce(nil, nil, nil)
	if a.Pos != grid.P(3, 3, 1) {
		t.Fatalf("after third tick pos=%v", a.Pos)
	}
	if done := findEvent(drain(t, j.out), protocol.EventPathDone); done == nil || done["ref"] != "G1" {
		t.Fatalf("missing PATH_DONE")
	}
	if a.Pather.Request().Kind != pathfinding.RequestNone || a.PathRef != "" {
		t.Fatalf("pather should be reset after completion: %v", a.Pather.Request().Kind)
	}
}

func TestWorld_GotoValidation(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	j := joinAt(t, w, "A1", grid.P(0, 0, 1))
	drain(t, j.out)

	w.StepOnce(nil, nil, []ActionEnvelope{
		gotoAct("A1", "OOB", grid.P(8, 0, 1)),
		gotoAct("A1", "SOLID", grid.P(3, 3, 0)),
		gotoAct("A1", "", grid.P(3, 3, 1)),
		gotoAct("A1", "G1", grid.P(3, 3, 1)),
		gotoAct("A1", "G2", grid.P(4, 4, 1)),
	})
	want := map[string]string{
		"OOB":   protocol.ErrInvalidTarget,
		"SOLID": protocol.ErrBlocked,
		"":      protocol.ErrBadRequest,
		"G1":    "",
		"G2":    protocol.ErrConflict,
	}
	got := map[string]string{}
	for _, e := range drain(t, j.out) {
		if e["type"] != protocol.EventActionResult {
			continue
		}
		code, _ := e["code"].(string)
		got[e["ref"].(string)] = code
	}
	for ref, code := range want {
		if c, ok := got[ref]; !ok || c != code {
			t.Fatalf("ref %q: code=%q want %q (all=%v)", ref, c, code, got)
		}
	}
	if w.agents["A1"].PathRef != "G1" {
		t.Fatalf("first accepted request should own the pather")
	}
}

func TestWorld_UnreachableGoalReportsFailure(t *testing.T) {
	tiles := flatTerrain(10, 10, 4)
	for z := 1; z <= 2; z++ {
		for y := 4; y <= 6; y++ {
			for x := 4; x <= 6; x++ {
				if x == 5 && y == 5 && z == 1 {
					continue
				}
				tiles.SetTile(grid.P(x, y, z), terrain.Solid)
			}
		}
	}
	w := newTestWorld(t, testConfig(), tiles)
	j := joinAt(t, w, "A1", grid.P(0, 0, 1))
	drain(t, j.out)

	w.StepOnce(nil, nil, []ActionEnvelope{gotoAct("A1", "G1", grid.P(5, 5, 1))})
	events := drain(t, j.out)
	pr := findEvent(events, protocol.EventPathResult)
	if pr == nil || pr["ok"] != false {
		t.Fatalf("expected failed PATH_RESULT: %v", events)
	}
	if it := pr["iterations"].(float64); it <= 0 {
		t.Fatalf("failed search should report iterations, got %v", it)
	}
	if findEvent(events, protocol.EventPathFailed) == nil {
		t.Fatalf("missing PATH_FAILED: %v", events)
	}
	a := w.agents["A1"]
	if a.Pather.Request().Kind != pathfinding.RequestNone || a.Pos != grid.P(0, 0, 1) {
		t.Fatalf("agent should stay put with a cleared pather")
	}
}

func TestWorld_Cancel(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	j := joinAt(t, w, "A1", grid.P(0, 0, 1))
	w.StepOnce(nil, nil, []ActionEnvelope{gotoAct("A1", "G1", grid.P(7, 7, 1))})
	drain(t, j.out)

	cancel := func(ref string) {
		w.StepOnce(nil, nil, []ActionEnvelope{{AgentID: "A1", Cancel: &protocol.CancelMsg{Type: protocol.TypeCancel, ProtocolVersion: protocol.Version, ID: ref}}})
	}
	cancel("OTHER")
	if ar := findEvent(drain(t, j.out), protocol.EventActionResult); ar == nil || ar["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("cancel of unknown ref should fail: %v", ar)
	}
	cancel("G1")
	if ar := findEvent(drain(t, j.out), protocol.EventActionResult); ar == nil || ar["ok"] != true {
		t.Fatalf("cancel should succeed: %v", ar)
	}
	pos := w.agents["A1"].Pos
	w.StepOnce(nil, nil, nil)
	if w.agents["A1"].Pos != pos {
		t.Fatalf("agent kept moving after cancel")
	}
	cancel("G1")
	if ar := findEvent(drain(t, j.out), protocol.EventActionResult); ar == nil || ar["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("second cancel should fail: %v", ar)
	}
}

func TestWorld_LeaveAndCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAgents = 1
	w := newTestWorld(t, cfg, flatTerrain(4, 4, 3))
	joinAt(t, w, "A1", grid.P(0, 0, 1))

	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{AgentID: "A2", Resp: resp}}, nil, nil)
	if r := <-resp; r.Code != protocol.ErrWorldBusy {
		t.Fatalf("code=%q want %s", r.Code, protocol.ErrWorldBusy)
	}

	w.StepOnce(nil, []string{"A1"}, nil)
	if len(w.agents) != 0 || len(w.clients) != 0 {
		t.Fatalf("leave did not remove agent")
	}
	joinAt(t, w, "A2", grid.P(1, 1, 1))
}

func TestWorld_JoinRejectsUnknownLocomotion(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(4, 4, 3))
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{AgentID: "A1", Locomotion: []string{"FLY"}, Resp: resp}}, nil, nil)
	if r := <-resp; r.Code != protocol.ErrBadRequest {
		t.Fatalf("code=%q want %s", r.Code, protocol.ErrBadRequest)
	}
}

type captureSink struct {
	ticks    []TickLogEntry
	searches []SearchRecord
}

func (c *captureSink) WriteTick(e TickLogEntry) error {
	c.ticks = append(c.ticks, e)
	return nil
}

func (c *captureSink) WriteSearch(r SearchRecord) error {
	c.searches = append(c.searches, r)
	return nil
}

func TestWorld_SinksReceiveRecords(t *testing.T) {
	w := newTestWorld(t, testConfig(), flatTerrain(8, 8, 4))
	sink := &captureSink{}
	w.SetTickLogger(sink)
	w.SetSearchLogger(sink)

	joinAt(t, w, "A1", grid.P(0, 0, 1))
	w.StepOnce(nil, nil, []ActionEnvelope{gotoAct("A1", "G1", grid.P(3, 3, 1))})

	if len(sink.searches) != 1 {
		t.Fatalf("searches=%d want 1", len(sink.searches))
	}
	rec := sink.searches[0]
	if !rec.Found || rec.Cost != 42 || rec.PathLen != 4 || rec.Ref != "G1" || rec.Tick != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(sink.ticks) != 2 {
		t.Fatalf("ticks=%d want 2", len(sink.ticks))
	}
	if len(sink.ticks[0].Joins) != 1 || sink.ticks[0].Joins[0].Spawn == nil {
		t.Fatalf("tick 0 should record the join with its spawn: %+v", sink.ticks[0])
	}
	if got := sink.ticks[1]; got.Searches != 1 || got.Moves != 1 || len(got.Actions) != 1 {
		t.Fatalf("unexpected tick entry: %+v", got)
	}
	m := w.Metrics()
	if m.Tick != 1 || m.SearchesTotal != 1 || m.FoundTotal != 1 || m.Agents != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	ds := w.Debug()
	if len(ds.Agents) != 1 || ds.Agents[0].Request != "READY" || ds.Agents[0].PathLen != 4 {
		t.Fatalf("unexpected debug state: %+v", ds)
	}
}

func TestWorld_ParallelMatchesSequential(t *testing.T) {
	tiles := terrain.Generate(grid.WithSize(24, 24, 4), terrain.GenConfig{Seed: 7, Floor: true, WallPermille: 120, LadderPermille: 10, StairsPermille: 10})

	seqCfg := testConfig()
	parCfg := testConfig()
	parCfg.Workers = 8
	parCfg.ParallelThreshold = 2

	seq := newTestWorld(t, seqCfg, tiles.Clone())
	par := newTestWorld(t, parCfg, tiles.Clone())

	var joins []JoinRequest
	for i := 0; i < 24; i++ {
		joins = append(joins, JoinRequest{AgentID: fmt.Sprintf("A%02d", i), Locomotion: []string{"GROUND_WALK", "CLIMB_LADDERS", "CLIMB_STAIRS"}})
	}
	seq.StepOnce(joins, nil, nil)
	par.StepOnce(joins, nil, nil)

	rng := rand.New(rand.NewSource(99))
	for tick := 0; tick < 40; tick++ {
		var acts []ActionEnvelope
		if tick%5 == 0 {
			for i := 0; i < 24; i++ {
				goal := grid.P(rng.Intn(24), rng.Intn(24), 1+rng.Intn(3))
				acts = append(acts, gotoAct(fmt.Sprintf("A%02d", i), fmt.Sprintf("G%d_%d", tick, i), goal))
			}
		}
		_, d1 := seq.StepOnce(nil, nil, acts)
		_, d2 := par.StepOnce(nil, nil, acts)
		if d1 != d2 {
			t.Fatalf("tick %d: digests diverged", tick)
		}
	}
	if seq.Metrics().SearchesTotal == 0 || seq.Metrics().SearchesTotal != par.Metrics().SearchesTotal {
		t.Fatalf("search totals differ: %d vs %d", seq.Metrics().SearchesTotal, par.Metrics().SearchesTotal)
	}
}

func TestWorld_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.TickRateHz = 50
	w := newTestWorld(t, cfg, flatTerrain(4, 4, 3))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	resp := make(chan JoinResponse, 1)
	w.Join() <- JoinRequest{Name: "bot", Resp: resp}
	select {
	case r := <-resp:
		if r.Welcome.AgentID == "" {
			t.Fatalf("empty agent id")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestConfigFromTuning(t *testing.T) {
	tune := tuning.Defaults()
	cfg, err := ConfigFromTuning("w1", tune)
	if err != nil {
		t.Fatalf("ConfigFromTuning: %v", err)
	}
	if !cfg.DefaultLocomotion.Has(pathfinding.GroundWalk | pathfinding.ClimbLadders) {
		t.Fatalf("default locomotion not parsed: %v", cfg.DefaultLocomotion)
	}
	if cfg.Neighbourhood != pathfinding.Volumetric || cfg.TickRateHz != tune.TickRateHz {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	finder, err := NewPathfinder(tune.Pathfinding)
	if err != nil {
		t.Fatalf("NewPathfinder: %v", err)
	}
	if finder.Neighbourhood() != pathfinding.Volumetric || finder.Relax() != pathfinding.RelaxOnce {
		t.Fatalf("pathfinder neighbourhood=%s relax=%s", finder.Neighbourhood(), finder.Relax())
	}
	if _, err := New(cfg, GenerateTerrain(tune), finder); err != nil {
		t.Fatalf("world from tuned pathfinder: %v", err)
	}

	strict := tune.Pathfinding
	strict.Relax = "strict"
	strict.Neighbourhood = "2d"
	finder, err = NewPathfinder(strict)
	if err != nil {
		t.Fatalf("NewPathfinder strict: %v", err)
	}
	if finder.Neighbourhood() != pathfinding.Planar || finder.Relax() != pathfinding.RelaxStrict {
		t.Fatalf("strict pathfinder neighbourhood=%s relax=%s", finder.Neighbourhood(), finder.Relax())
	}

	tune.Pathfinding.Heuristic = "chebyshev"
	if _, err := NewPathfinder(tune.Pathfinding); err == nil {
		t.Fatalf("expected unknown heuristic error")
	}
	tiles := GenerateTerrain(tuning.Defaults())
	if tiles.Grid().Len() != 64*64*8 {
		t.Fatalf("terrain size=%d", tiles.Grid().Len())
	}
}
