package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/pathfinding"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelpath_searches_total",
		Help: "Finished path searches by outcome",
	}, []string{"result"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxelpath_search_duration_seconds",
		Help:    "Wall time of one path search",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~330ms
	})

	searchIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxelpath_search_iterations",
		Help:    "Nodes expanded per path search",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	pendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelpath_pending_requests",
		Help: "Path requests claimed in the latest tick",
	})

	agentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelpath_agents",
		Help: "Agents currently in the world",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxelpath_tick_duration_seconds",
		Help:    "Wall time of one world tick",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)

func observeSearch(r pathfinding.Result) {
	outcome := "not_found"
	if r.Success() {
		outcome = "found"
	}
	searchesTotal.WithLabelValues(outcome).Inc()
	searchDuration.Observe(r.Duration().Seconds())
	searchIterations.Observe(float64(r.Iterations()))
}

// WorldMetrics is a copy of the world's counters, published once per tick.
type WorldMetrics struct {
	Tick           uint64 `json:"tick"`
	Agents         int    `json:"agents"`
	Searches       int    `json:"searches"`
	Moves          int    `json:"moves"`
	SearchesTotal  uint64 `json:"searches_total"`
	FoundTotal     uint64 `json:"found_total"`
	TickDurationUS int64  `json:"tick_duration_us"`
}

type DebugAgent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Pos        [3]int `json:"pos"`
	Locomotion string `json:"locomotion"`
	Request    string `json:"request"`
	Ref        string `json:"ref,omitempty"`
	Cursor     int    `json:"cursor"`
	PathLen    int    `json:"path_len"`
}

type DebugState struct {
	WorldID string       `json:"world_id"`
	Tick    uint64       `json:"tick"`
	Grid    [3]int       `json:"grid"`
	Agents  []DebugAgent `json:"agents"`
}

func (w *World) publish(nowTick uint64, searches, moves int, took time.Duration) {
	agentsGauge.Set(float64(len(w.agents)))
	tickDuration.Observe(took.Seconds())

	w.metrics.Store(&WorldMetrics{
		Tick:           nowTick,
		Agents:         len(w.agents),
		Searches:       searches,
		Moves:          moves,
		SearchesTotal:  w.searchesTotal,
		FoundTotal:     w.foundTotal,
		TickDurationUS: took.Microseconds(),
	})

	ds := &DebugState{WorldID: w.cfg.ID, Tick: nowTick, Grid: gridArray(w.grid)}
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		req := a.Pather.Request()
		ds.Agents = append(ds.Agents, DebugAgent{
			ID:         a.ID,
			Name:       a.Name,
			Pos:        a.Pos.Array(),
			Locomotion: a.Locomotion.String(),
			Request:    req.Kind.String(),
			Ref:        a.PathRef,
			Cursor:     a.Pather.Cursor(),
			PathLen:    req.Result.Len(),
		})
	}
	w.debug.Store(ds)
}

func gridArray(g grid.Grid) [3]int {
	wd, ht, dp := g.Size()
	return [3]int{wd, ht, dp}
}
