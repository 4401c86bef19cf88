package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(conn)
		if agentID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if env, ok := s.decodeAction(agentID, msg, out); ok {
				s.world.Inbox() <- env
			}
		}

		// Cleanup.
		s.world.Leave() <- agentID
	}
}

// decodeAction validates one client message. Malformed messages are
// answered with an E_PROTO_BAD_REQUEST action result and never reach the
// world.
func (s *Server) decodeAction(agentID string, msg []byte, out chan []byte) (world.ActionEnvelope, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reject(agentID, "", "invalid json", out)
		return world.ActionEnvelope{}, false
	}
	if base.ProtocolVersion != protocol.Version {
		s.reject(agentID, "", "bad protocol_version", out)
		return world.ActionEnvelope{}, false
	}
	switch base.Type {
	case protocol.TypeGoto:
		var m protocol.GotoMsg
		if err := protocol.Validate(base.Type, msg); err != nil {
			s.reject(agentID, refOf(msg), err.Error(), out)
			return world.ActionEnvelope{}, false
		}
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(agentID, refOf(msg), err.Error(), out)
			return world.ActionEnvelope{}, false
		}
		return world.ActionEnvelope{AgentID: agentID, Goto: &m}, true
	case protocol.TypeCancel:
		var m protocol.CancelMsg
		if err := protocol.Validate(base.Type, msg); err != nil {
			s.reject(agentID, refOf(msg), err.Error(), out)
			return world.ActionEnvelope{}, false
		}
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(agentID, refOf(msg), err.Error(), out)
			return world.ActionEnvelope{}, false
		}
		return world.ActionEnvelope{AgentID: agentID, Cancel: &m}, true
	}
	s.reject(agentID, "", "unknown message type "+base.Type, out)
	return world.ActionEnvelope{}, false
}

func (s *Server) reject(agentID, ref, message string, out chan []byte) {
	tick := s.world.CurrentTick()
	b, err := json.Marshal(protocol.EventsMsg{
		Type:            protocol.TypeEvents,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		AgentID:         agentID,
		Events:          []protocol.Event{protocol.ActionResult(tick, ref, false, protocol.ErrProtoBadRequest, message)},
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		if s.log != nil {
			s.log.Printf("drop reject agent=%s: queue full", agentID)
		}
	}
}

func refOf(msg []byte) string {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(msg, &v)
	return v.ID
}

func (s *Server) handshake(conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		closeWith(conn, "invalid HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	var spawn *grid.Pos
	if hello.Spawn != nil {
		p := grid.FromArray(*hello.Spawn)
		spawn = &p
	}

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name:       hello.AgentName,
		Locomotion: hello.Locomotion,
		Spawn:      spawn,
		Out:        out,
		Resp:       respCh,
	}
	resp := <-respCh
	if resp.Code != "" {
		if s.log != nil {
			s.log.Printf("join rejected name=%q code=%s: %s", hello.AgentName, resp.Code, resp.Message)
		}
		closeWith(conn, resp.Code+": "+resp.Message)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.AgentID, out
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
