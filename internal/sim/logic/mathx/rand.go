package mathx

// Rand is a small deterministic stream seeded from world coordinates so that
// generating the same region twice places the same features.
type Rand struct {
	state uint64
}

func NewRand(seed uint64) *Rand {
	return &Rand{state: seed}
}

func (r *Rand) Uint64() uint64 {
	r.state += 0x9e3779b97f4a7c15
	return mix64(r.state)
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return Unit(r.Uint64())
}

// Intn returns a value in [lo, hi). It returns lo when the range is empty.
func (r *Rand) Intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(r.Uint64()%uint64(hi-lo))
}

// Range returns a float in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
