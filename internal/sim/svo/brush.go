package svo

// Sphere fills the voxels whose centers lie strictly within r of pos's center.
// When rnd is non-nil each voxel is skipped with probability decay.
func (w *World) Sphere(pos Vec3i, r int, v Voxel, decay float64, rnd func() float64) []NodeSeq {
	lo := pos.Sub(Splat(r))
	hi := pos.Add(Splat(r))
	return w.SphereWithin(pos, r, v, lo, hi, decay, rnd)
}

// BoundedSphere is Sphere clipped to the inclusive box [lo, hi], without decay.
func (w *World) BoundedSphere(pos Vec3i, r int, v Voxel, lo, hi Vec3i) []NodeSeq {
	return w.SphereWithin(pos, r, v, lo, hi, 0, nil)
}

// SphereWithin is the general form of Sphere: only voxels inside the inclusive
// box [lo, hi] are considered.
func (w *World) SphereWithin(pos Vec3i, r int, v Voxel, lo, hi Vec3i, decay float64, rnd func() float64) []NodeSeq {
	c := pos.Float().Add(Vec3f{0.5, 0.5, 0.5})
	rSq := float64(r) * float64(r)

	var changed []NodeSeq
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				p := Vec3i{x, y, z}
				d := p.Float().Add(Vec3f{0.5, 0.5, 0.5}).Sub(c)
				if d.LengthSquared() >= rSq {
					continue
				}
				if rnd != nil && rnd() <= decay {
					continue
				}
				seqs, err := w.SetVoxel(p, v)
				if err != nil {
					continue
				}
				changed = append(changed, seqs...)
			}
		}
	}
	return changed
}

// WalkLine returns the integer cells on a 3-D Bresenham line from a to b, both
// endpoints included.
func WalkLine(a, b Vec3i) []Vec3i {
	d := b.Sub(a)
	ax, ay, az := abs(d.X), abs(d.Y), abs(d.Z)
	sx, sy, sz := sign(d.X), sign(d.Y), sign(d.Z)

	steps := max(ax, ay, az)
	out := make([]Vec3i, 0, steps+1)
	p := a
	out = append(out, p)

	switch {
	case ax >= ay && ax >= az:
		e1, e2 := 2*ay-ax, 2*az-ax
		for i := 0; i < ax; i++ {
			if e1 > 0 {
				p.Y += sy
				e1 -= 2 * ax
			}
			if e2 > 0 {
				p.Z += sz
				e2 -= 2 * ax
			}
			e1 += 2 * ay
			e2 += 2 * az
			p.X += sx
			out = append(out, p)
		}
	case ay >= ax && ay >= az:
		e1, e2 := 2*ax-ay, 2*az-ay
		for i := 0; i < ay; i++ {
			if e1 > 0 {
				p.X += sx
				e1 -= 2 * ay
			}
			if e2 > 0 {
				p.Z += sz
				e2 -= 2 * ay
			}
			e1 += 2 * ax
			e2 += 2 * az
			p.Y += sy
			out = append(out, p)
		}
	default:
		e1, e2 := 2*ay-az, 2*ax-az
		for i := 0; i < az; i++ {
			if e1 > 0 {
				p.Y += sy
				e1 -= 2 * az
			}
			if e2 > 0 {
				p.X += sx
				e2 -= 2 * az
			}
			e1 += 2 * ay
			e2 += 2 * ax
			p.Z += sz
			out = append(out, p)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
