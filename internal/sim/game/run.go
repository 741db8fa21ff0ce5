package game

import (
	"context"
	"time"

	"voxeltrace.ai/internal/sim/encoding"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
)

// Snapshot is a consistent copy of the node buffer taken between steps.
type Snapshot struct {
	Tick     uint64
	Min      svo.Vec3i
	LastUsed uint32
	// Nodes is the RLE encoding of the packed node words.
	Nodes string
}

type snapshotReq struct {
	resp chan Snapshot
}

// Params are fixed once the game is built and safe to read from any goroutine.
type Params struct {
	TickRateHz int
	MaxDepth   int
	Size       int
	MaxNodes   uint32
}

func (g *Game) Params() Params {
	return Params{
		TickRateHz: g.cfg.TickRateHz,
		MaxDepth:   int(g.world.MaxDepth()),
		Size:       g.world.Size(),
		MaxNodes:   g.world.MaxNodes(),
	}
}

func (g *Game) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(g.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer g.closeObservers()

	// Once a step's worth of intents is pending the inbox is left to fill, so
	// Submit reports ErrBusy instead of the queue growing between ticks.
	pending := make([]IntentEnvelope, 0, g.cfg.InboxSize)
	for {
		inbox := g.inbox
		if len(pending) >= g.cfg.InboxSize {
			inbox = nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.observerJoin:
			g.handleObserverJoin(req)
		case id := <-g.observerLeave:
			g.handleObserverLeave(id)
		case req := <-g.snapshotReq:
			req.resp <- g.snapshot()
		case env := <-inbox:
			pending = append(pending, env)
		case <-ticker.C:
			g.step(pending)
			pending = pending[:0]
		}
	}
}

// RequestSnapshot asks the loop for a snapshot and waits for it.
func (g *Game) RequestSnapshot(ctx context.Context) (Snapshot, error) {
	req := snapshotReq{resp: make(chan Snapshot, 1)}
	select {
	case g.snapshotReq <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-req.resp:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (g *Game) snapshot() Snapshot {
	return Snapshot{
		Tick:     g.tick.Load(),
		Min:      g.world.Min(),
		LastUsed: g.world.LastUsedNode(),
		Nodes:    encoding.EncodeNodesRLE(nodesync.PackWords(g.world.Nodes())),
	}
}
