package svo

// SurfaceAt returns the lowest y in the column (x, z) whose voxel is empty.
func (w *World) SurfaceAt(x, z int) (int, error) {
	for y := w.min.Y; y < w.min.Y+w.size; y++ {
		v, err := w.GetVoxel(Vec3i{x, y, z})
		if err != nil {
			return 0, err
		}
		if v.IsEmpty() {
			return y, nil
		}
	}
	return 0, ErrOutOfBounds
}

// Collisions returns a unit box for every non-empty voxel in the integer cells
// covered by box. Cells outside the world count as AIR.
func (w *World) Collisions(box Aabb) []Aabb {
	from := box.From.Floor()
	to := box.To.Ceil()

	var out []Aabb
	for x := from.X; x < to.X; x++ {
		for y := from.Y; y < to.Y; y++ {
			for z := from.Z; z < to.Z; z++ {
				p := Vec3i{x, y, z}
				v, err := w.GetVoxel(p)
				if err != nil || v.IsEmpty() {
					continue
				}
				lo := p.Float()
				out = append(out, NewAabb(lo, lo.Add(Vec3f{1, 1, 1})))
			}
		}
	}
	return out
}
