package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "agent name")
		loco  = flag.String("locomotion", "", "comma separated locomotion methods (default: server default)")
		seed  = flag.Int64("seed", 0, "goal rng seed (0 = time based)")
		goals = flag.Int("goals", 0, "exit after this many finished paths (0 = run forever)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 32},
	}
	if s := strings.TrimSpace(*loco); s != "" {
		for _, m := range strings.Split(s, ",") {
			hello.Locomotion = append(hello.Locomotion, strings.ToUpper(strings.TrimSpace(m)))
		}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	b := &bot{conn: conn, logger: logger, rng: rand.New(rand.NewSource(*seed))}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME agent_id=%s grid=%v spawn=%v locomotion=%v", w.AgentID, w.WorldParams.Grid, w.Spawn, w.Locomotion)
			b.grid = w.WorldParams.Grid
			b.pos = w.Spawn
			b.sendGoto()

		case protocol.TypeEvents:
			var ev protocol.EventsMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			b.pos = ev.Pos
			for _, e := range ev.Events {
				if b.handleEvent(e) && *goals > 0 && b.finished >= *goals {
					logger.Printf("done: finished=%d failed=%d", b.finished, b.failed)
					return
				}
			}
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	rng    *rand.Rand

	grid [3]int
	pos  [3]int
	seq  int

	finished int
	failed   int
}

func (b *bot) sendGoto() {
	b.seq++
	goal := [3]int{b.rng.Intn(b.grid[0]), b.rng.Intn(b.grid[1]), b.pos[2]}
	msg := protocol.GotoMsg{
		Type:            protocol.TypeGoto,
		ProtocolVersion: protocol.Version,
		ID:              fmt.Sprintf("G%d", b.seq),
		Goal:            goal,
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		b.logger.Printf("send GOTO: %v", err)
	}
}

// handleEvent reacts to one event and reports whether a path finished.
func (b *bot) handleEvent(e protocol.Event) bool {
	switch e["type"] {
	case protocol.EventActionResult:
		if ok, _ := e["ok"].(bool); !ok {
			b.logger.Printf("rejected ref=%v code=%v message=%v", e["ref"], e["code"], e["message"])
			b.sendGoto()
		}
	case protocol.EventPathResult:
		b.logger.Printf("PATH_RESULT ref=%v ok=%v iterations=%v duration_us=%v cost=%v", e["ref"], e["ok"], e["iterations"], e["duration_us"], e["cost"])
	case protocol.EventPathDone:
		b.finished++
		b.sendGoto()
		return true
	case protocol.EventPathFailed:
		b.failed++
		b.sendGoto()
	}
	return false
}
