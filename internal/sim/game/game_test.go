package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/encoding"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
)

const groundY = 8

// flat fills everything below groundY with stone.
var flat = svo.GeneratorFunc(func(lo, hi svo.Vec3i, w *svo.World) {
	top := min(hi.Y, lo.Y+groundY) - 1
	if top < lo.Y {
		return
	}
	w.FillVoxels(lo, svo.V3(hi.X-1, top, hi.Z-1), svo.Stone)
})

func newTestGame(t *testing.T, cfg Config) *Game {
	t.Helper()
	w := svo.New(svo.Config{MaxDepth: 6, BufferBytes: 1 << 20})
	g := New(cfg, w, flat, nil)
	g.Generate()
	g.StepOnce()
	return g
}

func intent(kind string) protocol.IntentMsg {
	return protocol.IntentMsg{Type: protocol.TypeIntent, ProtocolVersion: protocol.Version, Kind: kind}
}

func breakAt(x, y, z int) protocol.IntentMsg {
	in := intent(protocol.IntentBreak)
	in.Pos = [3]int{x, y, z}
	return in
}

func voxelAt(t *testing.T, g *Game, x, y, z int) svo.Voxel {
	t.Helper()
	v, err := g.World().GetVoxel(svo.V3(x, y, z))
	if err != nil {
		t.Fatalf("GetVoxel: %v", err)
	}
	return v
}

func TestNew_ObserverOnSurface(t *testing.T) {
	g := newTestGame(t, Config{})
	o := g.Observer()
	if o.X != 32.5 || o.Y != groundY || o.Z != 32.5 {
		t.Fatalf("observer=%+v", o)
	}
}

func TestStep_ResyncOnceThenQuiet(t *testing.T) {
	w := svo.New(svo.Config{MaxDepth: 6, BufferBytes: 1 << 20})
	g := New(Config{}, w, flat, nil)
	g.Generate()

	r := g.StepOnce()
	if !r.Batch.Resync || r.Tick != 0 {
		t.Fatalf("first step should resync: %+v", r.Batch)
	}
	r = g.StepOnce()
	if !r.Batch.Empty() || r.Tick != 1 || g.CurrentTick() != 2 {
		t.Fatalf("second step should be empty: %+v tick=%d", r.Batch, r.Tick)
	}
}

func TestStep_BreakAndPlace(t *testing.T) {
	g := newTestGame(t, Config{})

	r := g.StepOnce(breakAt(10, 7, 10))
	if len(r.Results) != 1 || !r.Results[0].Accepted || r.Results[0].Nodes == 0 {
		t.Fatalf("break: %+v", r.Results)
	}
	if r.Batch.Resync || len(r.Batch.Seqs) == 0 {
		t.Fatalf("break should produce deltas: %+v", r.Batch)
	}
	if v := voxelAt(t, g, 10, 7, 10); v != svo.Air {
		t.Fatalf("after break: %s", v)
	}

	place := intent(protocol.IntentPlace)
	place.Pos = [3]int{10, 6, 10}
	place.Face = [3]int{0, 1, 0}
	r = g.StepOnce(place)
	if !r.Results[0].Accepted || r.Results[0].Voxel != svo.Stone.String() {
		t.Fatalf("place: %+v", r.Results[0])
	}
	if v := voxelAt(t, g, 10, 7, 10); v != svo.Stone {
		t.Fatalf("after place: %s", v)
	}

	// The same face is now occupied.
	r = g.StepOnce(place)
	if r.Results[0].Accepted || r.Results[0].Code != protocol.ErrInvalidTarget {
		t.Fatalf("place on occupied: %+v", r.Results[0])
	}

	place.Face = [3]int{1, 1, 0}
	r = g.StepOnce(place)
	if r.Results[0].Code != protocol.ErrBadRequest {
		t.Fatalf("diagonal face: %+v", r.Results[0])
	}
}

func TestStep_OutOfBounds(t *testing.T) {
	g := newTestGame(t, Config{})
	before := g.World().LastUsedNode()

	fill := intent(protocol.IntentFill)
	fill.Pos = [3]int{0, 0, 0}
	fill.To = [3]int{64, 0, 0}
	sphere := intent(protocol.IntentSphere)
	sphere.Pos = [3]int{0, -1, 0}
	sphere.Radius = 2

	r := g.StepOnce(breakAt(-1, 0, 0), fill, sphere)
	for i, res := range r.Results {
		if res.Accepted || res.Code != protocol.ErrOutOfBounds {
			t.Fatalf("result %d: %+v", i, res)
		}
	}
	if !r.Batch.Empty() || g.World().LastUsedNode() != before {
		t.Fatalf("rejected intents must not mutate: %+v", r.Batch)
	}
}

func TestStep_FillAndSphere(t *testing.T) {
	g := newTestGame(t, Config{MaxFillVolume: 200, MaxSphereRadius: 4})

	fill := intent(protocol.IntentFill)
	fill.Pos = [3]int{4, 20, 4}
	fill.To = [3]int{0, 16, 0}
	fill.Voxel = "GOLD"
	r := g.StepOnce(fill)
	if !r.Results[0].Accepted {
		t.Fatalf("fill: %+v", r.Results[0])
	}
	if voxelAt(t, g, 0, 16, 0) != svo.Gold || voxelAt(t, g, 4, 20, 4) != svo.Gold {
		t.Fatalf("fill corners not gold")
	}

	fill.To = [3]int{10, 30, 10}
	if r := g.StepOnce(fill); r.Results[0].Code != protocol.ErrTooLarge {
		t.Fatalf("large fill: %+v", r.Results[0])
	}
	fill.To = [3]int{0, 16, 0}
	fill.Voxel = "Obsidian"
	if r := g.StepOnce(fill); r.Results[0].Code != protocol.ErrBadRequest {
		t.Fatalf("unknown voxel: %+v", r.Results[0])
	}

	sphere := intent(protocol.IntentSphere)
	sphere.Pos = [3]int{30, 30, 30}
	sphere.Radius = 3
	sphere.Voxel = "Water"
	if r := g.StepOnce(sphere); !r.Results[0].Accepted {
		t.Fatalf("sphere: %+v", r.Results[0])
	}
	if voxelAt(t, g, 30, 30, 30) != svo.Water || voxelAt(t, g, 30, 33, 30) != svo.Air {
		t.Fatalf("sphere extent wrong")
	}
	sphere.Radius = 5
	if r := g.StepOnce(sphere); r.Results[0].Code != protocol.ErrTooLarge {
		t.Fatalf("big sphere: %+v", r.Results[0])
	}
}

func TestStep_SelectWraps(t *testing.T) {
	g := newTestGame(t, Config{})
	sel := intent(protocol.IntentSelect)
	sel.Slot = -1
	r := g.StepOnce(sel)
	if r.Results[0].Voxel != svo.Bright.String() || g.Selected() != svo.Bright {
		t.Fatalf("select -1: %+v", r.Results[0])
	}
	sel.Slot = 2
	g.StepOnce(sel)
	if g.Selected() != svo.Dirt {
		t.Fatalf("selected=%s", g.Selected())
	}
}

func TestStep_MoveShiftsOnNextStep(t *testing.T) {
	g := newTestGame(t, Config{})
	move := intent(protocol.IntentMove)
	move.Observer = [3]float64{60.5, groundY, 32.5}

	r := g.StepOnce(move)
	if len(r.Shifts) != 0 || !r.Results[0].Accepted {
		t.Fatalf("move step: shifts=%v results=%+v", r.Shifts, r.Results)
	}
	r = g.StepOnce()
	if len(r.Shifts) != 1 || r.Shifts[0] != (svo.Shift{Axis: svo.AxisX, Dir: 1}) {
		t.Fatalf("shifts=%v", r.Shifts)
	}
	if !r.Batch.Resync || g.World().Min().X != 32 {
		t.Fatalf("resync=%v min=%v", r.Batch.Resync, g.World().Min())
	}
	// The exposed half was generated.
	if voxelAt(t, g, 90, groundY-1, 32) != svo.Stone || voxelAt(t, g, 90, groundY, 32) != svo.Air {
		t.Fatalf("exposed half not populated")
	}

	move.Observer = [3]float64{0, 0, 0}
	move.Observer[0] = 1.0 / zero()
	if r := g.StepOnce(move); r.Results[0].Code != protocol.ErrBadRequest {
		t.Fatalf("non-finite move: %+v", r.Results[0])
	}
}

func zero() float64 { return 0 }

func TestStep_UnknownKind(t *testing.T) {
	g := newTestGame(t, Config{})
	r := g.StepOnce(intent("JUMP"))
	if r.Results[0].Code != protocol.ErrBadRequest {
		t.Fatalf("unknown kind: %+v", r.Results[0])
	}
	bad := breakAt(1, 1, 1)
	bad.Type = "OBS"
	if r := g.StepOnce(bad); r.Results[0].Code != protocol.ErrProtoBadRequest {
		t.Fatalf("wrong type: %+v", r.Results[0])
	}
}

// mirror replays frames into a client-side copy of the node buffer.
type mirror struct {
	words []uint32
	min   [3]int32
}

func (m *mirror) apply(t *testing.T, b []byte) observerproto.Frame {
	t.Helper()
	var f observerproto.Frame
	if err := f.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	nodes, err := nodesync.UnpackNodes(f.Nodes)
	if err != nil {
		t.Fatalf("UnpackNodes: %v", err)
	}
	words := nodesync.PackWords(nodes)
	if f.Kind == observerproto.FrameResync {
		m.words = words
	} else {
		end := int(f.Offset) + len(words)
		for len(m.words) < end {
			m.words = append(m.words, 0)
		}
		copy(m.words[f.Offset:], words)
	}
	m.min = f.Min
	return f
}

func (m *mirror) check(t *testing.T, g *Game) {
	t.Helper()
	want := nodesync.PackWords(g.World().Nodes())
	if len(m.words) < len(want) {
		t.Fatalf("mirror has %d words, world %d", len(m.words), len(want))
	}
	for i := range want {
		if m.words[i] != want[i] {
			t.Fatalf("word %d: %#x want %#x", i, m.words[i], want[i])
		}
	}
	wm := g.World().Min()
	if m.min != [3]int32{int32(wm.X), int32(wm.Y), int32(wm.Z)} {
		t.Fatalf("mirror min %v, world %v", m.min, wm)
	}
}

func drain(ch chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-ch:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestObserver_FramesKeepMirrorInSync(t *testing.T) {
	g := newTestGame(t, Config{MaxFrameNodes: 8})
	out := make(chan []byte, 64)
	g.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out})

	var m mirror
	g.StepOnce()
	frames := drain(out)
	if len(frames) != 1 {
		t.Fatalf("join should send one resync, got %d frames", len(frames))
	}
	if f := m.apply(t, frames[0]); f.Kind != observerproto.FrameResync || f.Count() != f.LastUsed+1 {
		t.Fatalf("frame kind=%s count=%d last_used=%d", f.Kind, f.Count(), f.LastUsed)
	}
	m.check(t, g)

	r := g.StepOnce(breakAt(5, 7, 5), breakAt(40, 3, 40))
	frames = drain(out)
	if len(frames) != r.Frames || len(frames) < 2 {
		t.Fatalf("frames=%d reported=%d", len(frames), r.Frames)
	}
	for _, b := range frames {
		if f := m.apply(t, b); f.Kind != observerproto.FrameDelta || f.Count() > 8 {
			t.Fatalf("delta frame kind=%s count=%d", f.Kind, f.Count())
		}
	}
	m.check(t, g)

	move := intent(protocol.IntentMove)
	move.Observer = [3]float64{32.5, groundY, 2.5}
	g.StepOnce(move)
	g.StepOnce()
	for _, b := range drain(out) {
		m.apply(t, b)
	}
	m.check(t, g)
}

func TestObserver_DropForcesResync(t *testing.T) {
	g := newTestGame(t, Config{MaxFrameNodes: 1})
	out := make(chan []byte, 1)
	g.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out})
	g.StepOnce()

	// The queue still holds the resync, so every delta is dropped.
	g.StepOnce(breakAt(5, 7, 5))
	if !g.observers["O1"].needResync {
		t.Fatalf("dropped delta should force a resync")
	}
	<-out
	g.StepOnce()
	var m mirror
	for _, b := range drain(out) {
		if f := m.apply(t, b); f.Kind != observerproto.FrameResync {
			t.Fatalf("expected resync, got %s", f.Kind)
		}
	}
	m.check(t, g)

	g.handleObserverLeave("O1")
	if _, ok := <-out; ok {
		t.Fatalf("leave should close the channel")
	}
}

type recordingLogger struct {
	steps  []StepLogEntry
	audits []AuditEntry
}

func (l *recordingLogger) WriteStep(e StepLogEntry) error {
	l.steps = append(l.steps, e)
	return nil
}

func (l *recordingLogger) WriteAudit(e AuditEntry) error {
	l.audits = append(l.audits, e)
	return errors.New("disk full")
}

func TestStep_Logging(t *testing.T) {
	g := newTestGame(t, Config{})
	rec := &recordingLogger{}
	g.SetStepLogger(rec)
	g.SetAuditLogger(rec)

	g.StepOnce(breakAt(3, 7, 3), breakAt(-5, 0, 0))
	if len(rec.steps) != 1 {
		t.Fatalf("steps=%d", len(rec.steps))
	}
	e := rec.steps[0]
	if e.Intents != 2 || e.Rejected != 1 || e.Resync || e.Ranges == 0 || e.Nodes == 0 {
		t.Fatalf("entry=%+v", e)
	}
	if len(rec.audits) != 1 || rec.audits[0].Kind != protocol.IntentBreak || rec.audits[0].Pos != [3]int{3, 7, 3} {
		t.Fatalf("audits=%+v", rec.audits)
	}

	move := intent(protocol.IntentMove)
	move.Observer = [3]float64{2.5, groundY, 32.5}
	g.StepOnce(move)
	g.StepOnce()
	last := rec.steps[len(rec.steps)-1]
	if !last.Resync || len(last.Shifts) != 1 || last.Shifts[0] != "-x" || last.Min[0] != -32 {
		t.Fatalf("shift entry=%+v", last)
	}
}

func TestStep_SinkMirrorsWorld(t *testing.T) {
	w := svo.New(svo.Config{MaxDepth: 6, BufferBytes: 1 << 20})
	g := New(Config{}, w, flat, nil)
	sink := nodesync.NewBufferSink(w.MaxNodes())
	g.SetSink(sink)
	g.Generate()
	g.StepOnce()
	g.StepOnce(breakAt(1, 7, 1))

	got, err := sink.Nodes()
	if err != nil {
		t.Fatalf("sink nodes: %v", err)
	}
	want := w.Nodes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("node %d: %s want %s", i, got[i], want[i])
		}
	}
}

func TestSubmit_Busy(t *testing.T) {
	g := newTestGame(t, Config{InboxSize: 1})
	if err := g.Submit(IntentEnvelope{Intent: breakAt(1, 1, 1)}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := g.Submit(IntentEnvelope{Intent: breakAt(1, 1, 1)}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit: %v", err)
	}
}

func TestRun_PendingIsBounded(t *testing.T) {
	g := newTestGame(t, Config{TickRateHz: 1, InboxSize: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Two intents are held by the loop and two more sit in the inbox.
	accepted := 0
	deadline := time.Now().Add(500 * time.Millisecond)
	for accepted < 4 && time.Now().Before(deadline) {
		if err := g.Submit(IntentEnvelope{Intent: breakAt(1, 1, 1)}); err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		accepted++
	}
	if accepted != 4 {
		t.Fatalf("accepted=%d want 4", accepted)
	}
	time.Sleep(20 * time.Millisecond)
	if err := g.Submit(IntentEnvelope{Intent: breakAt(1, 1, 1)}); !errors.Is(err, ErrBusy) {
		t.Fatalf("submit past the pending cap: %v", err)
	}
}

func TestRun_RepliesAndSnapshots(t *testing.T) {
	g := newTestGame(t, Config{TickRateHz: 200})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	reply := make(chan protocol.ActionResultMsg, 1)
	in := breakAt(7, 7, 7)
	in.ReqID = "r1"
	if err := g.Submit(IntentEnvelope{Intent: in, Reply: reply}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case r := <-reply:
		if !r.Accepted || r.ReqID != "r1" {
			t.Fatalf("reply=%+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply")
	}

	sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
	defer scancel()
	snap, err := g.RequestSnapshot(sctx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	words, err := encoding.DecodeNodesRLE(snap.Nodes, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(words) != int(snap.LastUsed)+1 || snap.Tick == 0 {
		t.Fatalf("snapshot words=%d last_used=%d tick=%d", len(words), snap.LastUsed, snap.Tick)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
