package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Locomotion      []string          `json:"locomotion,omitempty"`
	Spawn           *[3]int           `json:"spawn,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	WorldID         string      `json:"world_id,omitempty"`
	Spawn           [3]int      `json:"spawn"`
	Locomotion      []string    `json:"locomotion"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int    `json:"tick_rate_hz"`
	Grid          [3]int `json:"grid"`
	Neighbourhood string `json:"neighbourhood"`
	Seed          int64  `json:"seed"`
}

// GOTO (client -> server): ask the world to plan a path from the agent's
// current cell to Goal.
type GotoMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Goal            [3]int `json:"goal"`
}

// CANCEL (client -> server): drop the agent's active or pending path.
type CancelMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
}

// EVENTS (server -> client): everything that happened to one agent in a tick.
type EventsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	AgentID         string  `json:"agent_id"`
	Pos             [3]int  `json:"pos"`
	Events          []Event `json:"events"`
}
