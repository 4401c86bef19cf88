package pathfinding

import (
	"sync"

	"voxelpath.ai/internal/sim/grid"
)

type RequestKind int

const (
	RequestNone RequestKind = iota
	RequestPending
	RequestReady
	RequestFailed
)

func (k RequestKind) String() string {
	switch k {
	case RequestPending:
		return "PENDING"
	case RequestReady:
		return "READY"
	case RequestFailed:
		return "FAILED"
	}
	return "NONE"
}

// PathRequest is exactly one of: nothing, a pending (start, goal) pair, a
// ready result, or a failure.
type PathRequest struct {
	Kind   RequestKind
	Start  grid.Pos
	Goal   grid.Pos
	Result Result
}

func Pending(start, goal grid.Pos) PathRequest {
	return PathRequest{Kind: RequestPending, Start: start, Goal: goal}
}

func Ready(r Result) PathRequest { return PathRequest{Kind: RequestReady, Result: r} }

func Failed() PathRequest { return PathRequest{Kind: RequestFailed} }

// Pather is the per-agent record of a path request and the cursor into its
// result. The pathfinding step claims and fulfils requests; movement reads
// and advances the cursor.
type Pather struct {
	mu      sync.Mutex
	cursor  int
	request PathRequest
}

func NewPather() *Pather { return &Pather{} }

func NewPatherWithRequest(start, goal grid.Pos) *Pather {
	return &Pather{request: Pending(start, goal)}
}

func (p *Pather) NeedsPath() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request.Kind == RequestPending
}

func (p *Pather) HasPath() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request.Kind == RequestReady
}

func (p *Pather) IsFailed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request.Kind == RequestFailed
}

func (p *Pather) Request() PathRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request
}

// TakeRequest swaps the current request out for RequestNone and returns it.
// Of two concurrent callers, only one sees a pending request.
func (p *Pather) TakeRequest() PathRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	req := p.request
	p.request = PathRequest{}
	return req
}

// SetRequest replaces the request and rewinds the cursor.
func (p *Pather) SetRequest(req PathRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.request = req
	p.cursor = 0
}

// Fulfil stores a search outcome: Ready on success, Failed otherwise.
func (p *Pather) Fulfil(r Result) {
	if r.Success() {
		p.SetRequest(Ready(r))
		return
	}
	p.SetRequest(Failed())
}

// Current returns the node under the cursor. It reports false when there is
// no ready path or the cursor has run past its end.
func (p *Pather) Current() (Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.request.Kind != RequestReady {
		return Node{}, false
	}
	return p.request.Result.At(p.cursor)
}

// Next returns the node under the cursor and advances past it.
func (p *Pather) Next() (Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.request.Kind != RequestReady {
		return Node{}, false
	}
	n, ok := p.request.Result.At(p.cursor)
	if ok {
		p.cursor++
	}
	return n, ok
}

func (p *Pather) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Pather) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
	p.request = PathRequest{}
}
