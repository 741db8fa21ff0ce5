// Package ws accepts edit intents over a websocket or a plain HTTP POST and
// answers each with an ACTION_RESULT.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/game"
)

const maxIntentBytes = 64 * 1024

type Server struct {
	game   *game.Game
	log    *log.Logger
	schema *jsonschema.Schema

	// ReplyTimeout bounds how long a request waits for the game loop.
	ReplyTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(g *game.Game, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	schema, err := protocol.Schema("intent.schema.json")
	if err != nil {
		return nil, err
	}
	return &Server{
		game:         g,
		log:          logger,
		schema:       schema,
		ReplyTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxIntentBytes,
			WriteBufferSize: maxIntentBytes,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

// Handler serves the websocket form: every text message is one INTENT.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxIntentBytes)
		s.log.Printf("intent client connected from %s", r.RemoteAddr)
		defer s.log.Printf("intent client %s disconnected", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.handle(ctx, msg)
			if err := writeJSON(conn, res); err != nil {
				break
			}
		}
	}
}

// IntentHandler serves POST /v1/intent with a single INTENT body.
func (s *Server) IntentHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxIntentBytes+1))
		if err != nil {
			http.Error(rw, "read body", http.StatusBadRequest)
			return
		}
		status := http.StatusRequestEntityTooLarge
		res := protocol.Rejected("", s.game.CurrentTick(), protocol.ErrTooLarge, "intent body too large")
		if len(body) <= maxIntentBytes {
			res = s.handle(r.Context(), body)
			status = statusFor(res)
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		_ = json.NewEncoder(rw).Encode(res)
	}
}

func (s *Server) handle(ctx context.Context, msg []byte) protocol.ActionResultMsg {
	tick := s.game.CurrentTick()
	in, err := s.decode(msg)
	if err != nil {
		return protocol.Rejected(in.ReqID, tick, protocol.ErrProtoBadRequest, err.Error())
	}

	reply := make(chan protocol.ActionResultMsg, 1)
	if err := s.game.Submit(game.IntentEnvelope{Intent: in, Reply: reply}); err != nil {
		return protocol.Rejected(in.ReqID, tick, protocol.ErrBusy, err.Error())
	}

	timer := time.NewTimer(s.ReplyTimeout)
	defer timer.Stop()
	select {
	case res := <-reply:
		return res
	case <-timer.C:
		return protocol.Rejected(in.ReqID, tick, protocol.ErrBusy, "timed out waiting for the game loop")
	case <-ctx.Done():
		return protocol.Rejected(in.ReqID, tick, protocol.ErrBusy, ctx.Err().Error())
	}
}

func (s *Server) decode(msg []byte) (protocol.IntentMsg, error) {
	var in protocol.IntentMsg
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return in, fmt.Errorf("bad json: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return in, fmt.Errorf("invalid intent: %w", err)
	}
	if err := json.Unmarshal(msg, &in); err != nil {
		return in, fmt.Errorf("bad json: %w", err)
	}
	if in.ProtocolVersion != protocol.Version {
		return in, fmt.Errorf("unsupported protocol_version %q", in.ProtocolVersion)
	}
	return in, nil
}

func statusFor(res protocol.ActionResultMsg) int {
	switch res.Code {
	case "":
		return http.StatusOK
	case protocol.ErrBusy:
		return http.StatusServiceUnavailable
	case protocol.ErrProtoBadRequest:
		return http.StatusBadRequest
	case protocol.ErrInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
