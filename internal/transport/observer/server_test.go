package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/game"
	"voxeltrace.ai/internal/sim/svo"
)

var flat = svo.GeneratorFunc(func(lo, hi svo.Vec3i, w *svo.World) {
	w.FillVoxels(lo, svo.V3(hi.X-1, lo.Y+3, hi.Z-1), svo.Stone)
})

var checker = svo.GeneratorFunc(func(lo, hi svo.Vec3i, w *svo.World) {
	for x := lo.X; x < hi.X; x++ {
		for z := lo.Z; z < hi.Z; z++ {
			if (x+z)%2 == 0 {
				_, _ = w.SetVoxel(svo.V3(x, lo.Y, z), svo.Stone)
			}
		}
	}
})

func startGame(t *testing.T) *game.Game {
	t.Helper()
	return startGameWith(t, svo.Config{MaxDepth: 5, BufferBytes: 1 << 20}, flat)
}

func startGameWith(t *testing.T, cfg svo.Config, gen svo.Generator) *game.Game {
	t.Helper()
	w := svo.New(cfg)
	g := game.New(game.Config{TickRateHz: 100}, w, gen, nil)
	g.Generate()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return g
}

func newTestServer(t *testing.T, g *game.Game, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(g, nil, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.Handle("/v1/observer/ws", s.WSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, compress bool) observerproto.HelloMsg {
	t.Helper()
	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Compress: compress}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello observerproto.HelloMsg
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	return hello
}

func readFrame(t *testing.T, conn *websocket.Conn, dec *zstd.Decoder, compressed bool) observerproto.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if typ != websocket.BinaryMessage {
		t.Fatalf("frame message type %d", typ)
	}
	f, err := DecodeFrame(dec, msg, compressed)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return f
}

func TestWS_ResyncThenDelta(t *testing.T) {
	g := startGame(t)
	s, ts := newTestServer(t, g, Options{Seed: 99})
	conn := dial(t, ts)

	hello := subscribe(t, conn, true)
	if hello.Type != observerproto.TypeHello || hello.SessionID == "" || !hello.Compress {
		t.Fatalf("hello=%+v", hello)
	}
	if hello.WorldParams.Size != 32 || hello.WorldParams.Seed != 99 || len(hello.Palette) != len(svo.Palette()) {
		t.Fatalf("params=%+v", hello.WorldParams)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	f := readFrame(t, conn, dec, true)
	if f.Kind != observerproto.FrameResync || f.Count() != f.LastUsed+1 {
		t.Fatalf("first frame kind=%s count=%d last_used=%d", f.Kind, f.Count(), f.LastUsed)
	}
	if s.Sessions() != 1 {
		t.Fatalf("sessions=%d", s.Sessions())
	}

	in := protocol.IntentMsg{Type: protocol.TypeIntent, ProtocolVersion: protocol.Version, Kind: protocol.IntentBreak, Pos: [3]int{3, 2, 3}}
	if err := g.Submit(game.IntentEnvelope{Intent: in}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f = readFrame(t, conn, dec, true)
	if f.Kind != observerproto.FrameDelta || f.Count() == 0 {
		t.Fatalf("second frame kind=%s count=%d", f.Kind, f.Count())
	}
}

func TestWS_RejectsBadSubscribe(t *testing.T) {
	g := startGame(t)
	_, ts := newTestServer(t, g, Options{})
	conn := dial(t, ts)

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWS_SessionLimit(t *testing.T) {
	g := startGame(t)
	_, ts := newTestServer(t, g, Options{MaxSessions: 1})
	first := dial(t, ts)
	subscribe(t, first, false)

	second := dial(t, ts)
	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	if err := second.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("expected try-again close, got %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	g := startGame(t)
	_, ts := newTestServer(t, g, Options{})
	boot := getBootstrap(t, ts)
	if boot.Encoding != observerproto.EncodingRLE || boot.WorldParams.Size != 32 {
		t.Fatalf("boot=%+v", boot)
	}
	words, err := DecodeBootstrapNodes(boot)
	if err != nil {
		t.Fatalf("DecodeBootstrapNodes: %v", err)
	}
	if len(words) != int(boot.LastUsed)+1 || words[0] != 0xC0000000 {
		t.Fatalf("words=%d last_used=%d root=%#x", len(words), boot.LastUsed, words[0])
	}
}

func TestBootstrap_ArenaPastMaxNodes(t *testing.T) {
	g := startGameWith(t, svo.Config{MaxDepth: 4, BufferBytes: 64 * svo.NodeSize}, checker)
	_, ts := newTestServer(t, g, Options{})
	boot := getBootstrap(t, ts)
	if boot.LastUsed < boot.WorldParams.MaxNodes {
		t.Fatalf("last_used=%d did not grow past max_nodes=%d", boot.LastUsed, boot.WorldParams.MaxNodes)
	}
	words, err := DecodeBootstrapNodes(boot)
	if err != nil {
		t.Fatalf("DecodeBootstrapNodes: %v", err)
	}
	if len(words) != int(boot.LastUsed)+1 {
		t.Fatalf("words=%d last_used=%d", len(words), boot.LastUsed)
	}
}

func getBootstrap(t *testing.T, ts *httptest.Server) observerproto.BootstrapResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return boot
}

func TestHandlers_LoopbackOnly(t *testing.T) {
	g := startGame(t)
	s, err := NewServer(g, nil, Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer s.Close()

	for _, h := range []http.HandlerFunc{s.BootstrapHandler(), s.WSHandler()} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status=%d", rec.Code)
		}
	}

	post := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, post)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", rec.Code)
	}

	if !isLoopbackRemote("[::1]:80") || isLoopbackRemote("192.168.0.1:80") {
		t.Fatalf("isLoopbackRemote")
	}
}
