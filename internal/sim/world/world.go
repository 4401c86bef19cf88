package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
	"voxelpath.ai/internal/sim/terrain"
)

type JoinRequest struct {
	// AgentID is normally empty; replays set it to reproduce a recorded join.
	AgentID    string
	Name       string
	Locomotion []string
	Spawn      *grid.Pos
	Out        chan []byte
	Resp       chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
	Message string
}

type ActionEnvelope struct {
	AgentID string
	Goto    *protocol.GotoMsg
	Cancel  *protocol.CancelMsg
}

// World is a single-threaded authoritative simulation. All state must be
// accessed only from the world loop goroutine; the pathfinding step fans out
// searches but joins them before returning.
type World struct {
	cfg    WorldConfig
	grid   grid.Grid
	tiles  *terrain.Tilemap
	finder pathfinding.Pathfinder

	tick atomic.Uint64

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	logger *log.Logger

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	searchLogger SearchLogger

	metrics atomic.Pointer[WorldMetrics]
	debug   atomic.Pointer[DebugState]

	searchesTotal uint64
	foundTotal    uint64
}

type clientState struct {
	Out chan []byte
}

func New(cfg WorldConfig, tiles *terrain.Tilemap, finder pathfinding.Pathfinder) (*World, error) {
	if tiles == nil {
		return nil, fmt.Errorf("world %s: nil terrain", cfg.ID)
	}
	if finder == nil {
		return nil, fmt.Errorf("world %s: nil pathfinder", cfg.ID)
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world %s: tick rate must be positive", cfg.ID)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = 1
	}
	if cfg.DefaultLocomotion.Methods() == 0 {
		cfg.DefaultLocomotion = pathfinding.NewLocomotion(pathfinding.GroundWalk)
	}
	w := &World{
		cfg:     cfg,
		grid:    tiles.Grid(),
		tiles:   tiles,
		finder:  finder,
		agents:  map[string]*Agent{},
		clients: map[string]*clientState{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		stop:    make(chan struct{}),
	}
	w.metrics.Store(&WorldMetrics{})
	w.debug.Store(&DebugState{WorldID: cfg.ID})
	return w, nil
}

func (w *World) SetLogger(l *log.Logger)        { w.logger = l }
func (w *World) SetTickLogger(l TickLogger)     { w.tickLogger = l }
func (w *World) SetSearchLogger(l SearchLogger) { w.searchLogger = l }
func (w *World) Inbox() chan<- ActionEnvelope   { return w.inbox }
func (w *World) Join() chan<- JoinRequest       { return w.join }
func (w *World) Leave() chan<- string           { return w.leave }
func (w *World) CurrentTick() uint64            { return w.tick.Load() }
func (w *World) Grid() grid.Grid                { return w.grid }
func (w *World) TickRateHz() int                { return w.cfg.TickRateHz }
func (w *World) ID() string                     { return w.cfg.ID }
func (w *World) Metrics() WorldMetrics          { return *w.metrics.Load() }
func (w *World) Debug() DebugState              { return *w.debug.Load() }

// Terrain returns a copy of the world's tiles, safe to hand to another
// goroutine.
func (w *World) Terrain() *terrain.Tilemap { return w.tiles.Clone() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is primarily intended for replays and tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	started := time.Now()
	nowTick := w.tick.Load()

	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		if rj, ok := w.handleJoin(req, nowTick); ok {
			recordedJoins = append(recordedJoins, rj)
		}
	}

	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if w.handleLeave(id) {
			recordedLeaves = append(recordedLeaves, id)
		}
	}

	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		switch {
		case env.Goto != nil:
			w.applyGoto(a, *env.Goto, nowTick)
			goal := *env.Goto
			recorded = append(recorded, RecordedAction{AgentID: a.ID, Type: protocol.TypeGoto, Ref: goal.ID, Goal: &goal.Goal})
		case env.Cancel != nil:
			w.applyCancel(a, *env.Cancel, nowTick)
			recorded = append(recorded, RecordedAction{AgentID: a.ID, Type: protocol.TypeCancel, Ref: env.Cancel.ID})
		}
	}

	searches := w.systemPathfinding(nowTick)
	moves := w.systemMovement(nowTick)

	w.flushEvents(nowTick)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Joins:    recordedJoins,
			Leaves:   recordedLeaves,
			Actions:  recorded,
			Searches: len(searches),
			Moves:    moves,
			Digest:   digest,
		}); err != nil {
			w.logf("tick log: %v", err)
		}
	}

	w.publish(nowTick, len(searches), moves, time.Since(started))
	w.tick.Add(1)
}

func (w *World) handleJoin(req JoinRequest, nowTick uint64) (RecordedJoin, bool) {
	respond := func(resp JoinResponse) {
		if req.Resp != nil {
			req.Resp <- resp
		}
	}
	if len(w.agents) >= w.cfg.MaxAgents && w.cfg.MaxAgents > 0 {
		respond(JoinResponse{Code: protocol.ErrWorldBusy, Message: "world is full"})
		return RecordedJoin{}, false
	}

	id := req.AgentID
	if id == "" {
		id = uuid.NewString()
	}
	if _, dup := w.agents[id]; dup {
		respond(JoinResponse{Code: protocol.ErrConflict, Message: "agent already joined"})
		return RecordedJoin{}, false
	}

	loco := w.cfg.DefaultLocomotion
	if len(req.Locomotion) > 0 {
		parsed, err := pathfinding.ParseLocomotion(req.Locomotion)
		if err != nil {
			respond(JoinResponse{Code: protocol.ErrBadRequest, Message: err.Error()})
			return RecordedJoin{}, false
		}
		loco = parsed
	}

	name := req.Name
	if name == "" {
		name = "agent"
	}
	a := &Agent{
		ID:         id,
		Name:       name,
		Pos:        w.spawnPos(req.Spawn),
		Locomotion: loco,
		Pather:     pathfinding.NewPather(),
	}
	w.agents[id] = a
	if req.Out != nil {
		w.clients[id] = &clientState{Out: req.Out}
	}
	w.logf("join tick=%d agent=%s name=%q pos=%s locomotion=%s", nowTick, id, name, a.Pos, loco)

	respond(JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         id,
		WorldID:         w.cfg.ID,
		Spawn:           a.Pos.Array(),
		Locomotion:      loco.Names(),
		WorldParams: protocol.WorldParams{
			TickRateHz:    w.cfg.TickRateHz,
			Grid:          gridArray(w.grid),
			Neighbourhood: w.cfg.Neighbourhood.String(),
			Seed:          w.cfg.Seed,
		},
	}})

	spawn := a.Pos.Array()
	return RecordedJoin{AgentID: id, Name: name, Locomotion: loco.Names(), Spawn: &spawn}, true
}

func (w *World) handleLeave(agentID string) bool {
	if _, ok := w.agents[agentID]; !ok {
		return false
	}
	delete(w.agents, agentID)
	delete(w.clients, agentID)
	w.logf("leave agent=%s", agentID)
	return true
}

// spawnPos honours a requested spawn cell when it is open, and otherwise picks
// the first open cell standing on solid ground in index order.
func (w *World) spawnPos(want *grid.Pos) grid.Pos {
	if want != nil && w.tiles.IsPassable(*want) {
		return *want
	}
	var fallback grid.Pos
	found := false
	for i := 0; i < w.grid.Len(); i++ {
		p := w.grid.PosAt(i)
		if !w.tiles.IsPassable(p) {
			continue
		}
		if t, ok := w.tiles.Tile(p.Below()); ok && t == terrain.Solid {
			return p
		}
		if !found {
			fallback, found = p, true
		}
	}
	return fallback
}

func (w *World) sortedAgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) flushEvents(nowTick uint64) {
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		events := a.TakeEvents()
		if len(events) == 0 {
			continue
		}
		cl := w.clients[id]
		if cl == nil {
			continue
		}
		b, err := json.Marshal(protocol.EventsMsg{
			Type:            protocol.TypeEvents,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			AgentID:         id,
			Pos:             a.Pos.Array(),
			Events:          events,
		})
		if err != nil {
			w.logf("encode events agent=%s: %v", id, err)
			continue
		}
		sendLatest(cl.Out, b)
	}
}

// stateDigest hashes the tick and every agent's position and request state.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(int64(nowTick))
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		h.Write([]byte(id))
		writeInt(int64(a.Pos.X))
		writeInt(int64(a.Pos.Y))
		writeInt(int64(a.Pos.Z))
		writeInt(int64(a.Pather.Request().Kind))
		writeInt(int64(a.Pather.Cursor()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
