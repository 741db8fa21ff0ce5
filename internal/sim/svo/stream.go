package svo

// Generator fills the box [min, max) (max exclusive on every axis) of w with terrain.
// It must only write through w.
type Generator interface {
	Populate(min, max Vec3i, w *World)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(min, max Vec3i, w *World)

func (f GeneratorFunc) Populate(min, max Vec3i, w *World) { f(min, max, w) }

// DefaultEdgeMargin is how close, in voxels, the observer may get to a face before
// the world is shifted.
const DefaultEdgeMargin = 30

// Shift records one recentring step: the world moved by half its size along Axis,
// towards the min face when Dir is -1 and towards the max face when Dir is +1.
type Shift struct {
	Axis Axis `json:"axis"`
	Dir  int  `json:"dir"`
}

type StreamResult struct {
	Shifts []Shift
}

// Resync reports whether node identities moved, in which case any consumer must
// re-upload the whole node buffer instead of replaying ranges.
func (r StreamResult) Resync() bool { return len(r.Shifts) > 0 }

// Streamer keeps the world cube around a moving observer by swapping root
// subtrees instead of rebuilding the tree.
type Streamer struct {
	world  *World
	gen    Generator
	margin int
	axes   []Axis
}

// NewStreamer streams along the horizontal axes. margin <= 0 selects
// DefaultEdgeMargin; it is capped below a quarter of the world size so a shift
// never immediately triggers the opposite one.
func NewStreamer(w *World, gen Generator, margin int) *Streamer {
	if margin <= 0 {
		margin = DefaultEdgeMargin
	}
	if limit := w.Size()/4 - 1; margin > limit {
		margin = max(limit, 0)
	}
	return &Streamer{
		world:  w,
		gen:    gen,
		margin: margin,
		axes:   []Axis{AxisX, AxisZ},
	}
}

func (s *Streamer) Margin() int { return s.margin }

// Update shifts the world along every axis whose min or max face the observer
// has come within the margin of. Axes are handled independently.
func (s *Streamer) Update(observer Vec3f) StreamResult {
	var res StreamResult
	pos := observer.Floor()
	for _, ax := range s.axes {
		p := pos.Axis(ax)
		if p < s.world.Min().Axis(ax)+s.margin {
			s.Shift(ax, -1)
			res.Shifts = append(res.Shifts, Shift{Axis: ax, Dir: -1})
		}
		if p > s.world.Max().Axis(ax)-s.margin {
			s.Shift(ax, 1)
			res.Shifts = append(res.Shifts, Shift{Axis: ax, Dir: 1})
		}
	}
	return res
}

// Shift moves the world by half its size along ax. The half of the root's children
// that stays in range is swapped across the axis, the other half is freed and the
// newly exposed region is handed to the generator.
func (s *Streamer) Shift(ax Axis, dir int) {
	w := s.world
	if root := w.arena.Node(0); !root.IsSplit() {
		first := w.arena.AllocateOctet(root.Voxel())
		w.arena.ptr(0).Split(first)
	}
	root := w.arena.Node(0)

	// keep is the side of the axis whose data survives; it ends up on the other side.
	keep := 0
	if dir > 0 {
		keep = 1
	}
	for octant := uint32(0); octant < 8; octant++ {
		off := OctantOffset(octant)
		if off.Axis(ax) != keep {
			continue
		}
		other := off.WithAxis(ax, 1-keep)
		a := root.Child(octant)
		b := root.Child(Octant(other.X, other.Y, other.Z))
		w.arena.Swap(a, b)
		w.arena.ClearNode(a)
	}

	half := w.size / 2
	w.min = w.min.WithAxis(ax, w.min.Axis(ax)+dir*half)

	lo, hi := w.Min(), w.Max()
	if dir < 0 {
		hi = hi.WithAxis(ax, hi.Axis(ax)-half)
	} else {
		lo = lo.WithAxis(ax, lo.Axis(ax)+half)
	}

	label := "+"
	if dir < 0 {
		label = "-"
	}
	regionShiftTotal.WithLabelValues(ax.String(), label).Inc()

	if s.gen != nil {
		s.gen.Populate(lo, hi, w)
	}
}
