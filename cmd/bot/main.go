package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/transport/observer"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		intentURL = flag.String("intent_url", "ws://localhost:8080/v1/intent/ws", "intent ws url (used when -walk > 0)")
		compress  = flag.Bool("compress", true, "request zstd-compressed frames")
		walk      = flag.Float64("walk", 0, "blocks to walk along +x per move (0 disables walking)")
		every     = flag.Int("every", 30, "frames between moves")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Compress:        *compress,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	var hello observerproto.HelloMsg
	if _, msg, err := conn.ReadMessage(); err != nil {
		logger.Fatalf("read HELLO: %v", err)
	} else if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != observerproto.TypeHello {
		logger.Fatalf("expected HELLO, got %q", msg)
	}
	wp := hello.WorldParams
	logger.Printf("HELLO session=%s size=%d max_depth=%d max_nodes=%d seed=%d compress=%v",
		hello.SessionID, wp.Size, wp.MaxDepth, wp.MaxNodes, wp.Seed, hello.Compress)

	dec, err := zstd.NewReader(nil)
	if err != nil {
		logger.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var w *walker
	if *walk > 0 {
		w, err = newWalker(*intentURL, wp, *walk, logger)
		if err != nil {
			logger.Fatalf("intent dial: %v", err)
		}
		defer w.close()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	sink := nodesync.NewBufferSink(wp.MaxNodes)
	frames := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		typ, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		f, err := observer.DecodeFrame(dec, msg, hello.Compress)
		if err != nil {
			logger.Printf("bad frame: %v", err)
			continue
		}
		if f.Kind == observerproto.FrameResync {
			sink = nodesync.NewBufferSink(wp.MaxNodes)
			logger.Printf("RESYNC tick=%d nodes=%d min=%v", f.Tick, f.Count(), f.Min)
		}
		if err := sink.WriteNodes(f.Offset, f.Nodes); err != nil {
			logger.Printf("mirror tick=%d: %v", f.Tick, err)
		}

		frames++
		if w != nil && frames%*every == 0 {
			w.step(frames)
		}
	}
}

// walker drives the observer along +x through the intent endpoint.
type walker struct {
	conn   *websocket.Conn
	log    *log.Logger
	pos    [3]float64
	stride float64
}

func newWalker(url string, wp observerproto.WorldParams, stride float64, logger *log.Logger) (*walker, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	half := float64(wp.Size) / 2
	w := &walker{
		conn:   conn,
		log:    logger,
		pos:    [3]float64{float64(wp.Min[0]) + half, float64(wp.Min[1]) + half, float64(wp.Min[2]) + half},
		stride: stride,
	}
	go w.readResults()
	return w, nil
}

func (w *walker) step(n int) {
	w.pos[0] += w.stride
	in := protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("K_move_%d", n),
		Kind:            protocol.IntentMove,
		Observer:        w.pos,
	}
	if err := w.conn.WriteJSON(in); err != nil {
		w.log.Printf("send MOVE: %v", err)
	}
}

func (w *walker) readResults() {
	for {
		var res protocol.ActionResultMsg
		if err := w.conn.ReadJSON(&res); err != nil {
			return
		}
		if !res.Accepted {
			w.log.Printf("%s rejected: %s %s", res.ReqID, res.Code, res.Message)
		}
	}
}

func (w *walker) close() { _ = w.conn.Close() }
