package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Grid        GridSize    `yaml:"grid"`
	Pathfinding Pathfinding `yaml:"pathfinding"`
	Terrain     Terrain     `yaml:"terrain"`
	Agents      Agents      `yaml:"agents"`
}

type GridSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`
}

type Pathfinding struct {
	Neighbourhood  string `yaml:"neighbourhood"`
	Heuristic      string `yaml:"heuristic"`
	HeuristicScale int    `yaml:"heuristic_scale"`
	StraightCost   int    `yaml:"straight_cost"`
	DiagonalCost   int    `yaml:"diagonal_cost"`
	MaxIterations  int    `yaml:"max_iterations"`
	Relax          string `yaml:"relax"`

	// Workers bounds the fan-out of one pathfinding step.
	Workers int `yaml:"workers"`
	// ParallelThreshold is the pending-request count at which the step stops
	// running sequentially.
	ParallelThreshold int `yaml:"parallel_threshold"`
}

type Terrain struct {
	Seed           int64 `yaml:"seed"`
	Floor          bool  `yaml:"floor"`
	WallPermille   int   `yaml:"wall_permille"`
	LadderPermille int   `yaml:"ladder_permille"`
	StairsPermille int   `yaml:"stairs_permille"`
}

type Agents struct {
	DefaultLocomotion []string `yaml:"default_locomotion"`
	MaxAgents         int      `yaml:"max_agents"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 5,
		Grid:       GridSize{Width: 64, Height: 64, Depth: 8},
		Pathfinding: Pathfinding{
			Neighbourhood:     "3d",
			Heuristic:         "euclidean",
			HeuristicScale:    10,
			StraightCost:      10,
			DiagonalCost:      14,
			MaxIterations:     0,
			Relax:             "once",
			Workers:           4,
			ParallelThreshold: 16,
		},
		Terrain: Terrain{
			Seed:           1337,
			Floor:          true,
			WallPermille:   40,
			LadderPermille: 4,
			StairsPermille: 4,
		},
		Agents: Agents{
			DefaultLocomotion: []string{"GROUND_WALK", "CLIMB_STAIRS", "CLIMB_LADDERS"},
			MaxAgents:         256,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse validates raw YAML against the embedded schema, then decodes it over
// Defaults().
func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	p := &t.Pathfinding
	p.Neighbourhood = strings.ToLower(strings.TrimSpace(p.Neighbourhood))
	p.Heuristic = strings.ToLower(strings.TrimSpace(p.Heuristic))
	p.Relax = strings.ToLower(strings.TrimSpace(p.Relax))
	if p.Neighbourhood == "" {
		p.Neighbourhood = d.Pathfinding.Neighbourhood
	}
	if p.Heuristic == "" {
		p.Heuristic = d.Pathfinding.Heuristic
	}
	if p.Relax == "" {
		p.Relax = d.Pathfinding.Relax
	}
	if p.HeuristicScale <= 0 {
		p.HeuristicScale = d.Pathfinding.HeuristicScale
	}
	if p.StraightCost <= 0 {
		p.StraightCost = d.Pathfinding.StraightCost
	}
	if p.DiagonalCost <= 0 {
		p.DiagonalCost = d.Pathfinding.DiagonalCost
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.ParallelThreshold <= 0 {
		p.ParallelThreshold = d.Pathfinding.ParallelThreshold
	}
	if t.Agents.MaxAgents <= 0 {
		t.Agents.MaxAgents = d.Agents.MaxAgents
	}
}

func (t Tuning) Validate() error {
	if t.Grid.Width <= 0 || t.Grid.Height <= 0 || t.Grid.Depth <= 0 {
		return fmt.Errorf("grid dimensions must be positive: %dx%dx%d", t.Grid.Width, t.Grid.Height, t.Grid.Depth)
	}
	switch t.Pathfinding.Neighbourhood {
	case "2d", "3d":
	default:
		return fmt.Errorf("unknown neighbourhood %q", t.Pathfinding.Neighbourhood)
	}
	switch t.Pathfinding.Heuristic {
	case "euclidean", "manhattan":
	default:
		return fmt.Errorf("unknown heuristic %q", t.Pathfinding.Heuristic)
	}
	switch t.Pathfinding.Relax {
	case "once", "strict":
	default:
		return fmt.Errorf("unknown relax mode %q", t.Pathfinding.Relax)
	}
	if t.Pathfinding.DiagonalCost < t.Pathfinding.StraightCost {
		return fmt.Errorf("diagonal_cost %d below straight_cost %d", t.Pathfinding.DiagonalCost, t.Pathfinding.StraightCost)
	}
	if sum := t.Terrain.WallPermille + t.Terrain.LadderPermille + t.Terrain.StairsPermille; sum > 1000 {
		return fmt.Errorf("terrain permille sum %d exceeds 1000", sum)
	}
	return nil
}

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.CompileString("tuning.schema.json", schemaJSON)
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees plain JSON values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}
