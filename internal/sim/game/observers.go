package game

import (
	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
)

// ObserverJoinRequest registers a session that receives binary frames on Out.
// The loop closes Out when the session leaves or the loop stops.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type observerClient struct {
	id  string
	out chan []byte

	// needResync is set on join and whenever a frame was dropped; the next
	// publish sends a full RESYNC instead of deltas.
	needResync bool
}

func (g *Game) ObserverJoin() chan<- ObserverJoinRequest { return g.observerJoin }
func (g *Game) ObserverLeave() chan<- string              { return g.observerLeave }

func (g *Game) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	// Replace existing session id if any.
	if old := g.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	g.observers[req.SessionID] = &observerClient{
		id:         req.SessionID,
		out:        req.Out,
		needResync: true,
	}
	observerSessions.Set(float64(len(g.observers)))
}

func (g *Game) handleObserverLeave(id string) {
	c := g.observers[id]
	if c == nil {
		return
	}
	close(c.out)
	delete(g.observers, id)
	observerSessions.Set(float64(len(g.observers)))
}

func (g *Game) closeObservers() {
	for id, c := range g.observers {
		close(c.out)
		delete(g.observers, id)
	}
	observerSessions.Set(0)
}

// publish fans the batch out to every observer and returns the number of frames
// encoded.
func (g *Game) publish(tick uint64, b nodesync.Batch) int {
	if len(g.observers) == 0 {
		return 0
	}

	encoded := 0
	var resync []byte
	resyncFrame := func() []byte {
		if resync == nil {
			resync = g.resyncFrame(tick)
			encoded++
			framesTotal.WithLabelValues(observerproto.FrameResync.String()).Inc()
		}
		return resync
	}

	var deltas [][]byte
	if !b.Resync && len(b.Seqs) > 0 {
		deltas = g.deltaFrames(tick, b)
		encoded += len(deltas)
		framesTotal.WithLabelValues(observerproto.FrameDelta.String()).Add(float64(len(deltas)))
	}

	for _, c := range g.observers {
		if c.needResync || b.Resync {
			c.needResync = !trySend(c.out, resyncFrame())
			continue
		}
		for _, f := range deltas {
			if !trySend(c.out, f) {
				c.needResync = true
				framesDroppedTotal.Inc()
				break
			}
		}
	}
	return encoded
}

func (g *Game) resyncFrame(tick uint64) []byte {
	nodes := g.world.Nodes()
	f := observerproto.Frame{
		Kind:     observerproto.FrameResync,
		Tick:     tick,
		LastUsed: g.world.LastUsedNode(),
		Min:      min32(g.world.Min()),
		Nodes:    nodesync.AppendNodes(make([]byte, 0, len(nodes)*nodesync.NodeBytes), nodes),
	}
	return f.AppendBinary(nil)
}

// deltaFrames emits one DELTA frame per range, splitting ranges longer than
// MaxFrameNodes.
func (g *Game) deltaFrames(tick uint64, b nodesync.Batch) [][]byte {
	nodes := g.world.Nodes()
	base := observerproto.Frame{
		Kind:     observerproto.FrameDelta,
		Tick:     tick,
		LastUsed: b.LastUsed,
		Min:      min32(g.world.Min()),
	}
	var out [][]byte
	for _, s := range b.Seqs {
		end := min(int(s.End()), len(nodes))
		for start := int(s.Start); start < end; start += g.cfg.MaxFrameNodes {
			stop := min(start+g.cfg.MaxFrameNodes, end)
			f := base
			f.Offset = uint32(start)
			f.Nodes = nodesync.AppendNodes(nil, nodes[start:stop])
			out = append(out, f.AppendBinary(nil))
		}
	}
	return out
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

func min32(v svo.Vec3i) [3]int32 {
	return [3]int32{int32(v.X), int32(v.Y), int32(v.Z)}
}
