package svo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	octetsAllocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svo_octets_allocated_total",
		Help: "Blocks of 8 sibling nodes handed out by the arena allocator.",
	})

	octetsFreedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svo_octets_freed_total",
		Help: "Blocks of 8 sibling nodes released, including recursively owned blocks.",
	})

	arenaGrowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svo_arena_grow_total",
		Help: "Times the arena appended storage.",
	})

	regionShiftTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svo_region_shift_total",
		Help: "Region streamer shifts by axis and direction.",
	}, []string{"axis", "dir"})
)
