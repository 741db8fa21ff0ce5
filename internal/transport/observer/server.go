package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/sim/encoding"
	"voxeltrace.ai/internal/sim/game"
	"voxeltrace.ai/internal/sim/svo"
)

type Options struct {
	// AllowRemote accepts non-loopback clients.
	AllowRemote bool
	MaxSessions int
	// FrameQueue is the per-session frame buffer. A full queue makes the game
	// fall back to a RESYNC for that session.
	FrameQueue int
	ZstdLevel  zstd.EncoderLevel
	Seed       int64
}

func (o *Options) applyDefaults() {
	if o.MaxSessions <= 0 {
		o.MaxSessions = 16
	}
	if o.FrameQueue <= 0 {
		o.FrameQueue = 64
	}
	if o.ZstdLevel == 0 {
		o.ZstdLevel = zstd.SpeedFastest
	}
}

type Server struct {
	game *game.Game
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
	enc      *zstd.Encoder
	sessions atomic.Int64
}

func NewServer(g *game.Game, logger *log.Logger, opts Options) (*Server, error) {
	opts.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	// EncodeAll is safe for concurrent use, so one encoder serves all sessions.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(opts.ZstdLevel))
	if err != nil {
		return nil, err
	}
	return &Server{
		game: g,
		log:  logger,
		opts: opts,
		enc:  enc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

func (s *Server) Close() error { return s.enc.Close() }

// Sessions is the number of connected observers.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

func (s *Server) worldParams() observerproto.WorldParams {
	p := s.game.Params()
	return observerproto.WorldParams{
		TickRateHz: p.TickRateHz,
		MaxDepth:   p.MaxDepth,
		Size:       p.Size,
		MaxNodes:   p.MaxNodes,
		Seed:       s.opts.Seed,
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		snap, err := s.game.RequestSnapshot(ctx)
		if err != nil {
			http.Error(rw, "snapshot unavailable", http.StatusServiceUnavailable)
			return
		}

		params := s.worldParams()
		params.Min = [3]int{snap.Min.X, snap.Min.Y, snap.Min.Z}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            snap.Tick,
			WorldParams:     params,
			Palette:         svo.Palette(),
			LastUsed:        snap.LastUsed,
			Encoding:        observerproto.EncodingRLE,
			Nodes:           snap.Nodes,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		if n := s.sessions.Add(1); n > int64(s.opts.MaxSessions) {
			s.sessions.Add(-1)
			closeWith(conn, websocket.CloseTryAgainLater, "too many observers")
			return
		}
		defer s.sessions.Add(-1)

		sid := uuid.NewString()
		out := make(chan []byte, s.opts.FrameQueue)
		select {
		case s.game.ObserverJoin() <- game.ObserverJoinRequest{SessionID: sid, Out: out}:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		s.log.Printf("observer %s connected from %s compress=%v", sid, r.RemoteAddr, sub.Compress)
		defer func() {
			s.log.Printf("observer %s disconnected", sid)
			select {
			case s.game.ObserverLeave() <- sid:
			default:
				// Game loop is stopping; nothing else to do.
			}
		}()

		var compress atomic.Bool
		compress.Store(sub.Compress)
		hello := observerproto.HelloMsg{
			Type:            observerproto.TypeHello,
			ProtocolVersion: observerproto.Version,
			SessionID:       sid,
			Compress:        sub.Compress,
			WorldParams:     s.worldParams(),
			Palette:         svo.Palette(),
		}
		if err := writeJSON(conn, hello); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					if compress.Load() {
						b = s.enc.EncodeAll(b, make([]byte, 0, len(b)/4))
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				compress.Store(sub.Compress)
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// DecodeFrame undoes the optional compression of a binary frame message.
func DecodeFrame(dec *zstd.Decoder, msg []byte, compressed bool) (observerproto.Frame, error) {
	var f observerproto.Frame
	if compressed {
		raw, err := dec.DecodeAll(msg, nil)
		if err != nil {
			return f, err
		}
		msg = raw
	}
	err := f.UnmarshalBinary(msg)
	return f, err
}

// DecodeBootstrapNodes expands the RLE node payload of a bootstrap response. The
// payload covers [0, last_used], which may run past the advisory max_nodes.
func DecodeBootstrapNodes(resp observerproto.BootstrapResponse) ([]uint32, error) {
	return encoding.DecodeNodesRLE(resp.Nodes, int(resp.LastUsed)+1)
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (s *Server) allowed(r *http.Request) bool {
	return s.opts.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
