// Package game drives one world: it streams the region around the observer,
// applies edit intents and publishes node changes to observers. All state is
// owned by the Run goroutine.
package game

import (
	"errors"
	"io"
	"log"
	"sync/atomic"

	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
)

var ErrBusy = errors.New("game: inbox full")

type Config struct {
	TickRateHz int
	EdgeMargin int
	InboxSize  int

	// MaxFillVolume bounds FILL intents, in voxels.
	MaxFillVolume int
	// MaxSphereRadius bounds SPHERE intents.
	MaxSphereRadius int
	// MaxFrameNodes splits DELTA frames; RESYNC frames are never split.
	MaxFrameNodes int
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.MaxFillVolume <= 0 {
		c.MaxFillVolume = 64 * 64 * 64
	}
	if c.MaxSphereRadius <= 0 {
		c.MaxSphereRadius = 32
	}
	if c.MaxFrameNodes <= 0 {
		c.MaxFrameNodes = 1 << 16
	}
}

// IntentEnvelope carries one intent into the loop. Reply, when set, receives
// the result without blocking the loop, so it should be buffered.
type IntentEnvelope struct {
	Intent protocol.IntentMsg
	Reply  chan protocol.ActionResultMsg
}

// StepLogEntry summarises one step for the operational log.
type StepLogEntry struct {
	Tick     uint64     `json:"tick"`
	Shifts   []string   `json:"shifts,omitempty"`
	Resync   bool       `json:"resync"`
	Ranges   int        `json:"ranges"`
	Nodes    int        `json:"nodes"`
	LastUsed uint32     `json:"last_used"`
	Intents  int        `json:"intents"`
	Rejected int        `json:"rejected"`
	Min      [3]int     `json:"min"`
	Observer [3]float64 `json:"observer"`
}

// AuditEntry records one applied edit.
type AuditEntry struct {
	Tick  uint64 `json:"tick"`
	ReqID string `json:"req_id,omitempty"`
	Kind  string `json:"kind"`
	Pos   [3]int `json:"pos"`
	Voxel string `json:"voxel,omitempty"`
	Nodes int    `json:"nodes"`
}

type StepLogger interface {
	WriteStep(StepLogEntry) error
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

type Game struct {
	cfg Config
	log *log.Logger

	world    *svo.World
	gen      svo.Generator
	streamer *svo.Streamer
	tracker  *nodesync.Tracker
	sink     nodesync.Sink

	observer svo.Vec3f
	slot     int
	tick     atomic.Uint64

	inbox         chan IntentEnvelope
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	snapshotReq   chan snapshotReq
	stop          chan struct{}

	observers map[string]*observerClient

	stepLogger  StepLogger
	auditLogger AuditLogger
	sinkFull    bool
}

// New wraps w. The observer starts at the horizontal center of the world, on
// the terrain surface when the world already has one.
func New(cfg Config, w *svo.World, gen svo.Generator, logger *log.Logger) *Game {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := &Game{
		cfg:           cfg,
		log:           logger,
		world:         w,
		gen:           gen,
		streamer:      svo.NewStreamer(w, gen, cfg.EdgeMargin),
		tracker:       nodesync.NewTracker(),
		inbox:         make(chan IntentEnvelope, cfg.InboxSize),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		snapshotReq:   make(chan snapshotReq, 8),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	c := w.Min().Add(svo.Splat(w.Size() / 2))
	g.observer = svo.Vec3f{X: float64(c.X) + 0.5, Y: float64(c.Y), Z: float64(c.Z) + 0.5}
	g.tracker.MarkResync()
	return g
}

// Generate populates the whole world cube and schedules a resync.
func (g *Game) Generate() {
	g.gen.Populate(g.world.Min(), g.world.Max(), g.world)
	g.tracker.MarkResync()
	if y, err := g.world.SurfaceAt(floor(g.observer.X), floor(g.observer.Z)); err == nil {
		g.observer.Y = float64(y)
	}
}

func (g *Game) SetStepLogger(l StepLogger)   { g.stepLogger = l }
func (g *Game) SetAuditLogger(l AuditLogger) { g.auditLogger = l }

// SetSink mirrors every flushed batch into s, the stand-in for a renderer's
// node buffer.
func (g *Game) SetSink(s nodesync.Sink) { g.sink = s }

// World is owned by the Run goroutine once Run starts.
func (g *Game) World() *svo.World { return g.world }

func (g *Game) Observer() svo.Vec3f { return g.observer }
func (g *Game) CurrentTick() uint64 { return g.tick.Load() }
func (g *Game) TickRateHz() int     { return g.cfg.TickRateHz }
func (g *Game) Selected() svo.Voxel { return svo.Placeable[g.slot] }
func (g *Game) Stop()               { close(g.stop) }

// Submit queues an intent for the next step. It never blocks.
func (g *Game) Submit(env IntentEnvelope) error {
	select {
	case g.inbox <- env:
		return nil
	default:
		return ErrBusy
	}
}

func floor(f float64) int {
	return svo.Vec3f{X: f}.Floor().X
}
