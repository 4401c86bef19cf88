package world

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type SearchLogger interface {
	WriteSearch(rec SearchRecord) error
}

type RecordedJoin struct {
	AgentID    string   `json:"agent_id"`
	Name       string   `json:"name"`
	Locomotion []string `json:"locomotion,omitempty"`
	Spawn      *[3]int  `json:"spawn,omitempty"`
}

type RecordedAction struct {
	AgentID string  `json:"agent_id"`
	Type    string  `json:"type"`
	Ref     string  `json:"ref"`
	Goal    *[3]int `json:"goal,omitempty"`
}

type TickLogEntry struct {
	Tick     uint64           `json:"tick"`
	Joins    []RecordedJoin   `json:"joins,omitempty"`
	Leaves   []string         `json:"leaves,omitempty"`
	Actions  []RecordedAction `json:"actions,omitempty"`
	Searches int              `json:"searches"`
	Moves    int              `json:"moves"`
	Digest   string           `json:"digest"`
}

// SearchRecord is one finished search, as written to the search log and the
// index.
type SearchRecord struct {
	Tick       uint64 `json:"tick"`
	AgentID    string `json:"agent_id"`
	Ref        string `json:"ref,omitempty"`
	Start      [3]int `json:"start"`
	Goal       [3]int `json:"goal"`
	Found      bool   `json:"found"`
	PathLen    int    `json:"path_len"`
	Cost       int    `json:"cost"`
	Iterations int    `json:"iterations"`
	DurationUS int64  `json:"duration_us"`
}
