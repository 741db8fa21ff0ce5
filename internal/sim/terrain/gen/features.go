package gen

import (
	"math"

	"voxeltrace.ai/internal/sim/logic/mathx"
	"voxeltrace.ai/internal/sim/svo"
)

type treeGen struct {
	minHeight, maxHeight int // [min, max)
	bark, leaves         svo.Voxel
	leavesDecay          float64
	minBranches          int
	maxBranches          int
	branchHeight         [2]float64 // fraction of trunk height
	branchLen            [2]float64
}

var oakTree = treeGen{
	minHeight: 6, maxHeight: 19,
	bark: svo.OakWood, leaves: svo.OakLeaves,
	leavesDecay: 0.1,
	minBranches: 1, maxBranches: 4,
	branchHeight: [2]float64{0.5, 0.8},
	branchLen:    [2]float64{3, 8},
}

var birchTree = treeGen{
	minHeight: 9, maxHeight: 26,
	bark: svo.BirchWood, leaves: svo.BirchLeaves,
	leavesDecay: 0.1,
	minBranches: 1, maxBranches: 4,
	branchHeight: [2]float64{0.5, 0.8},
	branchLen:    [2]float64{3, 8},
}

// Trees shorter than this grow no branches.
const minBranchingHeight = 11

func spawnTree(r region, rng *mathx.Rand, surface svo.Vec3i, t treeGen) {
	height := rng.Intn(t.minHeight, t.maxHeight)
	branches := 0
	if height >= minBranchingHeight {
		branches = rng.Intn(t.minBranches, t.maxBranches)
	}

	crown := surface.Add(svo.V3(0, height, 0))
	r.sphere(crown, 5, t.leaves, crown.Sub(svo.Splat(5)), crown.Add(svo.Splat(5)), t.leavesDecay, rng)

	for i := 0; i < branches; i++ {
		h := int(rng.Range(t.branchHeight[0], t.branchHeight[1]) * float64(height))
		length := rng.Range(t.branchLen[0], t.branchLen[1])
		dir := hemisphereDir(rng)

		start := svo.V3(surface.X, surface.Y+h, surface.Z)
		end := svo.Vec3f{
			X: float64(start.X) + dir.X*length,
			Y: float64(start.Y) + dir.Y*length,
			Z: float64(start.Z) + dir.Z*length,
		}
		endCell := svo.V3(int(end.X), int(end.Y), int(end.Z))

		r.sphere(endCell, 3, t.leaves, endCell.Sub(svo.Splat(3)), endCell.Add(svo.Splat(3)), t.leavesDecay, rng)
		for _, p := range svo.WalkLine(start, endCell) {
			r.set(p, t.bark)
		}
	}

	for i := 0; i < height; i++ {
		r.set(surface.Add(svo.V3(0, i, 0)), t.bark)
	}
}

var cardinals = [4]svo.Vec3i{
	{X: -1}, {X: 1}, {Z: -1}, {Z: 1},
}

func spawnCactus(r region, rng *mathx.Rand, surface svo.Vec3i) {
	base := surface.Add(svo.V3(0, 1, 0))
	height := rng.Intn(2, 7)
	splits := 0
	if height > 3 {
		splits = rng.Intn(0, 4)
	}

	r.fill(base, base.Add(svo.V3(0, height, 0)), svo.Cactus)
	for i := 0; i < splits; i++ {
		h := rng.Intn(1, height)
		length := rng.Intn(1, 4)
		dir := cardinals[rng.Intn(0, len(cardinals))]

		joint := base.Add(svo.V3(0, h, 0))
		r.set(joint.Add(dir), svo.Cactus)
		r.fill(joint.Add(dir.Mul(2)), joint.Add(svo.V3(0, length, 0)).Add(dir.Mul(2)), svo.Cactus)
	}
}

// spawnSpruce stacks flat leaf discs that widen toward the ground, then the trunk.
func spawnSpruce(r region, rng *mathx.Rand, surface svo.Vec3i) {
	offset := rng.Intn(4, 8)
	height := offset + rng.Intn(10, 18)

	radius := 1
	for y := height; y > offset; y -= 2 {
		c := surface.Add(svo.V3(0, y, 0))
		lo := c.Sub(svo.V3(radius, 0, radius))
		hi := c.Add(svo.V3(radius, 0, radius))
		r.sphere(c, radius, svo.SpruceLeaves, lo, hi, 0, nil)
		radius++
	}
	r.fill(surface, surface.Add(svo.V3(0, height-1, 0)), svo.SpruceWood)
}

// hemisphereDir is a uniformly random unit vector with a non-negative y.
func hemisphereDir(rng *mathx.Rand) svo.Vec3f {
	d := svo.Vec3f{X: gaussian(rng), Y: gaussian(rng), Z: gaussian(rng)}
	l := math.Sqrt(d.LengthSquared())
	if l == 0 {
		return svo.Vec3f{Y: 1}
	}
	d = d.Scale(1 / l)
	if d.Y < 0 {
		d = d.Scale(-1)
	}
	return d
}

// gaussian draws a standard normal sample with the Box-Muller transform.
func gaussian(rng *mathx.Rand) float64 {
	theta := 2 * math.Pi * rng.Float64()
	rho := math.Sqrt(-2 * math.Log(1-rng.Float64()))
	return rho * math.Cos(theta)
}
