package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_step_duration_seconds",
		Help:    "Wall time of one simulation step.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_intents_total",
		Help: "Intents applied, by kind and result code.",
	}, []string{"kind", "result"})

	resyncTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_resync_total",
		Help: "Steps whose changes required a full node resync.",
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_frames_total",
		Help: "Observer frames encoded, by kind.",
	}, []string{"kind"})

	framesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_frames_dropped_total",
		Help: "Delta frames dropped because an observer queue was full.",
	})

	observerSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_observer_sessions",
		Help: "Connected observer sessions.",
	})

	arenaLastUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svo_arena_last_used",
		Help: "High-water mark of used arena slots.",
	})

	arenaLen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svo_arena_len",
		Help: "Arena length in nodes.",
	})
)
