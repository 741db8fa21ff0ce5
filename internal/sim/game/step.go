package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/logic/mathx"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
)

// StepResult is what one step did, mainly for tests and offline tools.
type StepResult struct {
	Tick    uint64
	Shifts  []svo.Shift
	Batch   nodesync.Batch
	Results []protocol.ActionResultMsg
	Frames  int
}

// StepOnce advances the game by a single step with the same ordering as Run.
// It must not be called while Run is active.
func (g *Game) StepOnce(intents ...protocol.IntentMsg) StepResult {
	envs := make([]IntentEnvelope, len(intents))
	for i, in := range intents {
		envs[i] = IntentEnvelope{Intent: in}
	}
	return g.step(envs)
}

func (g *Game) step(envs []IntentEnvelope) StepResult {
	start := time.Now()
	tick := g.tick.Load()
	res := StepResult{Tick: tick}

	// Streaming runs first so intents address the cube the observer sees.
	stream := g.streamer.Update(g.observer)
	if stream.Resync() {
		g.tracker.MarkResync()
		res.Shifts = stream.Shifts
		resyncTotal.Inc()
	}

	rejected := 0
	for _, env := range envs {
		r := g.apply(tick, env.Intent)
		if !r.Accepted {
			rejected++
		}
		intentsTotal.WithLabelValues(kindLabel(env.Intent.Kind), resultLabel(r)).Inc()
		res.Results = append(res.Results, r)
		if env.Reply != nil {
			select {
			case env.Reply <- r:
			default:
			}
		}
	}

	res.Batch = g.tracker.Flush(g.world.LastUsedNode())
	g.upload(res.Batch)
	res.Frames = g.publish(tick, res.Batch)

	if g.stepLogger != nil {
		entry := StepLogEntry{
			Tick:     tick,
			Resync:   res.Batch.Resync,
			Ranges:   len(res.Batch.Seqs),
			Nodes:    res.Batch.Nodes(),
			LastUsed: res.Batch.LastUsed,
			Intents:  len(envs),
			Rejected: rejected,
			Min:      vecArray(g.world.Min()),
			Observer: [3]float64{g.observer.X, g.observer.Y, g.observer.Z},
		}
		for _, s := range res.Shifts {
			entry.Shifts = append(entry.Shifts, shiftLabel(s))
		}
		if err := g.stepLogger.WriteStep(entry); err != nil {
			g.log.Printf("step log: %v", err)
		}
	}

	arenaLastUsed.Set(float64(g.world.LastUsedNode()))
	arenaLen.Set(float64(g.world.Arena().Len()))
	stepDuration.Observe(time.Since(start).Seconds())
	g.tick.Add(1)
	return res
}

func (g *Game) upload(b nodesync.Batch) {
	if g.sink == nil || b.Empty() {
		return
	}
	_, err := nodesync.Upload(g.sink, g.world, b)
	switch {
	case err == nil:
		g.sinkFull = false
	case errors.Is(err, nodesync.ErrBufferFull):
		if !g.sinkFull {
			g.log.Printf("node buffer full at last_used=%d; renderer view is truncated", b.LastUsed)
		}
		g.sinkFull = true
	default:
		g.log.Printf("node upload: %v", err)
	}
}

func (g *Game) apply(tick uint64, in protocol.IntentMsg) protocol.ActionResultMsg {
	reject := func(code, msg string) protocol.ActionResultMsg {
		return protocol.Rejected(in.ReqID, tick, code, msg)
	}
	if in.Type != "" && in.Type != protocol.TypeIntent {
		return reject(protocol.ErrProtoBadRequest, "expected INTENT")
	}

	switch in.Kind {
	case protocol.IntentBreak:
		pos := vec(in.Pos)
		seqs, err := g.world.SetVoxel(pos, svo.Air)
		if err != nil {
			return reject(codeFor(err), err.Error())
		}
		return g.accept(tick, in, pos, svo.Air, seqs)

	case protocol.IntentPlace:
		face := vec(in.Face)
		if mathx.AbsInt(face.X)+mathx.AbsInt(face.Y)+mathx.AbsInt(face.Z) != 1 {
			return reject(protocol.ErrBadRequest, "face must be a unit axis vector")
		}
		pos := vec(in.Pos).Add(face)
		cur, err := g.world.GetVoxel(pos)
		if err != nil {
			return reject(codeFor(err), err.Error())
		}
		if !cur.IsEmpty() {
			return reject(protocol.ErrInvalidTarget, fmt.Sprintf("%v is occupied by %s", pos, cur))
		}
		v := g.Selected()
		seqs, err := g.world.SetVoxel(pos, v)
		if err != nil {
			return reject(codeFor(err), err.Error())
		}
		return g.accept(tick, in, pos, v, seqs)

	case protocol.IntentFill:
		a, b := vec(in.Pos), vec(in.To)
		if err := g.world.CheckBounds(a); err != nil {
			return reject(codeFor(err), err.Error())
		}
		if err := g.world.CheckBounds(b); err != nil {
			return reject(codeFor(err), err.Error())
		}
		lo, hi := a.Min(b), a.Max(b)
		d := hi.Sub(lo).Add(svo.Splat(1))
		if d.X*d.Y*d.Z > g.cfg.MaxFillVolume {
			return reject(protocol.ErrTooLarge, fmt.Sprintf("fill of %d voxels exceeds %d", d.X*d.Y*d.Z, g.cfg.MaxFillVolume))
		}
		v, ok := g.voxelFor(in)
		if !ok {
			return reject(protocol.ErrBadRequest, fmt.Sprintf("unknown voxel %q", in.Voxel))
		}
		return g.accept(tick, in, lo, v, g.world.FillVoxels(lo, hi, v))

	case protocol.IntentSphere:
		c := vec(in.Pos)
		if err := g.world.CheckBounds(c); err != nil {
			return reject(codeFor(err), err.Error())
		}
		if in.Radius < 0 || in.Radius > g.cfg.MaxSphereRadius {
			return reject(protocol.ErrTooLarge, fmt.Sprintf("radius %d outside [0,%d]", in.Radius, g.cfg.MaxSphereRadius))
		}
		v, ok := g.voxelFor(in)
		if !ok {
			return reject(protocol.ErrBadRequest, fmt.Sprintf("unknown voxel %q", in.Voxel))
		}
		return g.accept(tick, in, c, v, g.world.Sphere(c, in.Radius, v, 0, nil))

	case protocol.IntentMove:
		p := svo.Vec3f{X: in.Observer[0], Y: in.Observer[1], Z: in.Observer[2]}
		if !finite(p) {
			return reject(protocol.ErrBadRequest, "observer position must be finite")
		}
		g.observer = p
		return protocol.Accepted(in.ReqID, tick, 0)

	case protocol.IntentSelect:
		g.slot = mathx.Mod(g.slot+in.Slot, len(svo.Placeable))
		r := protocol.Accepted(in.ReqID, tick, 0)
		r.Voxel = g.Selected().String()
		return r

	default:
		return reject(protocol.ErrBadRequest, fmt.Sprintf("unknown intent kind %q", in.Kind))
	}
}

func (g *Game) accept(tick uint64, in protocol.IntentMsg, pos svo.Vec3i, v svo.Voxel, seqs []svo.NodeSeq) protocol.ActionResultMsg {
	g.tracker.Add(seqs...)
	nodes := svo.TotalNodes(seqs)
	if g.auditLogger != nil {
		err := g.auditLogger.WriteAudit(AuditEntry{
			Tick:  tick,
			ReqID: in.ReqID,
			Kind:  in.Kind,
			Pos:   vecArray(pos),
			Voxel: v.String(),
			Nodes: nodes,
		})
		if err != nil {
			g.log.Printf("audit log: %v", err)
		}
	}
	r := protocol.Accepted(in.ReqID, tick, nodes)
	r.Voxel = v.String()
	return r
}

// voxelFor picks the intent's named voxel, falling back to the selected slot.
func (g *Game) voxelFor(in protocol.IntentMsg) (svo.Voxel, bool) {
	if in.Voxel == "" {
		return g.Selected(), true
	}
	return svo.ParseVoxel(in.Voxel)
}

func codeFor(err error) string {
	if errors.Is(err, svo.ErrOutOfBounds) {
		return protocol.ErrOutOfBounds
	}
	return protocol.ErrInternal
}

func kindLabel(kind string) string {
	switch kind {
	case protocol.IntentBreak, protocol.IntentPlace, protocol.IntentFill,
		protocol.IntentSphere, protocol.IntentMove, protocol.IntentSelect:
		return kind
	default:
		return "UNKNOWN"
	}
}

func resultLabel(r protocol.ActionResultMsg) string {
	if r.Accepted {
		return "ok"
	}
	return r.Code
}

func shiftLabel(s svo.Shift) string {
	if s.Dir < 0 {
		return "-" + s.Axis.String()
	}
	return "+" + s.Axis.String()
}

func vec(a [3]int) svo.Vec3i      { return svo.V3(a[0], a[1], a[2]) }
func vecArray(v svo.Vec3i) [3]int { return [3]int{v.X, v.Y, v.Z} }

func finite(p svo.Vec3f) bool {
	for _, f := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
