package gen

import (
	"voxeltrace.ai/internal/sim/logic/mathx"
	"voxeltrace.ai/internal/sim/svo"
)

type Params struct {
	Seed int64

	WaterLevel  int
	BaseHeight  int
	HeightScale float64

	// Feature probabilities per column, scaled by the vegetation map.
	TreePermille   int
	CactusPermille int
	SprucePermille int

	// Gold veins are hash-placed discs buried under the dirt layer.
	GoldClusterPermille int
	GoldClusterGrid     int
	GoldClusterRadius   int

	// No features are placed within SpawnClearRadius of (SpawnX, SpawnZ).
	SpawnX, SpawnZ   int
	SpawnClearRadius int
}

func (p *Params) applyDefaults() {
	if p.WaterLevel == 0 {
		p.WaterLevel = 26
	}
	if p.HeightScale == 0 {
		p.HeightScale = 1
	}
	if p.TreePermille == 0 {
		p.TreePermille = 5
	}
	if p.CactusPermille == 0 {
		p.CactusPermille = 10
	}
	if p.SprucePermille == 0 {
		p.SprucePermille = 3
	}
	if p.GoldClusterPermille == 0 {
		p.GoldClusterPermille = 150
	}
	if p.GoldClusterGrid <= 0 {
		p.GoldClusterGrid = 48
	}
	if p.GoldClusterRadius <= 0 {
		p.GoldClusterRadius = 3
	}
}

type noiseMaps struct {
	height     mathx.NoiseMap
	freq       mathx.NoiseMap
	scale      mathx.NoiseMap
	bumps      mathx.NoiseMap
	mountains  mathx.NoiseMap
	temp       mathx.NoiseMap
	moisture   mathx.NoiseMap
	vegetation mathx.NoiseMap
}

func newNoiseMaps(seed int64) noiseMaps {
	return noiseMaps{
		height:     mathx.NewNoiseMap(seed*4326742, 0.003, 2.5),
		freq:       mathx.NewNoiseMap(seed*927144, 0.0001, 7.0),
		scale:      mathx.NewNoiseMap(seed*43265, 0.003, 40.0),
		bumps:      mathx.NewNoiseMap(seed*76324, 0.15, 4.0),
		mountains:  mathx.NewNoiseMap(seed*72316423, 0.001, 40.0),
		temp:       mathx.NewNoiseMap(seed*83226, 0.0004, 1.0),
		moisture:   mathx.NewNoiseMap(seed*2345632, 0.0004, 1.0),
		vegetation: mathx.NewNoiseMap(seed*53252, 0.001, 1.0),
	}
}

const (
	featureSalt = 0x5f3759df
	goldSalt    = 0x2545f491
)

// Generator produces deterministic terrain for any region of a world. The same
// seed always yields the same voxels for the same coordinates.
type Generator struct {
	p    Params
	maps noiseMaps

	oak   treeGen
	birch treeGen
}

func New(p Params) *Generator {
	p.applyDefaults()
	return &Generator{
		p:     p,
		maps:  newNoiseMaps(p.Seed),
		oak:   oakTree,
		birch: birchTree,
	}
}

func (g *Generator) Params() Params { return g.p }

// TerrainHeight is the y of the surface voxel of column (x, z).
func (g *Generator) TerrainHeight(x, z int) int {
	fx, fz := float64(x), float64(z)
	freq := g.maps.freq.Get(fx, fz)
	scale := g.maps.scale.Get(fx, fz)
	h := g.maps.height.Get(fx*freq, fz*freq)*scale +
		g.maps.bumps.Get(fx, fz) +
		g.maps.mountains.Get(fx, fz)
	return g.p.BaseHeight + int(h*g.p.HeightScale)
}

func (g *Generator) BiomeAt(x, z int) Biome {
	fx, fz := float64(x), float64(z)
	return BiomeFrom(g.maps.moisture.Get(fx, fz), g.maps.temp.Get(fx, fz))
}

func surfaceFor(b Biome) svo.Voxel {
	switch b {
	case BiomeDesert:
		return svo.Sand
	case BiomeTundra:
		return svo.DeadGrass
	case BiomeSnow:
		return svo.Snow
	case BiomeSwamp:
		return svo.MoistGrass
	default:
		return svo.Grass
	}
}

// Populate fills the columns of [lo, hi) with terrain. Writes are clipped to the
// box so features near its faces never touch voxels outside it.
func (g *Generator) Populate(lo, hi svo.Vec3i, w *svo.World) {
	r := region{w: w, lo: lo, hi: hi.Sub(svo.Splat(1))}
	for x := lo.X; x < hi.X; x++ {
		for z := lo.Z; z < hi.Z; z++ {
			g.populateColumn(r, x, z)
		}
	}
}

func (g *Generator) populateColumn(r region, x, z int) {
	y := g.TerrainHeight(x, z)
	surface := svo.V3(x, y, z)

	r.fill(svo.V3(x, r.lo.Y, z), svo.V3(x, y-4, z), svo.Stone)
	r.fill(svo.V3(x, y-3, z), svo.V3(x, y-1, z), svo.Dirt)
	if InCluster(g.p.Seed^goldSalt, x, z, g.p.GoldClusterGrid, g.p.GoldClusterRadius, uint64(ClampPermille(g.p.GoldClusterPermille))) {
		r.fill(svo.V3(x, y-12, z), svo.V3(x, y-10, z), svo.Gold)
	}

	water := g.p.WaterLevel
	if y < water {
		r.set(surface, svo.Sand)
		r.fill(surface.Add(svo.V3(0, 1, 0)), svo.V3(x, water, z), svo.Water)
		return
	}

	top := surfaceFor(g.BiomeAt(x, z))
	r.set(surface, top)

	if WithinSpawnClear(x, z, g.p.SpawnX, g.p.SpawnZ, g.p.SpawnClearRadius) {
		return
	}

	rng := mathx.NewRand(mathx.Hash2(g.p.Seed^featureSalt, x, z))
	veg := g.maps.vegetation.Get(float64(x), float64(z))
	roll := rng.Float64()
	switch top {
	case svo.Grass:
		if roll < permille(g.p.TreePermille)*veg {
			if rng.Intn(0, 2) == 0 {
				spawnTree(r, rng, surface, g.oak)
			} else {
				spawnTree(r, rng, surface, g.birch)
			}
		}
	case svo.Sand:
		if roll < permille(g.p.CactusPermille)*veg {
			spawnCactus(r, rng, surface)
		}
	case svo.Snow:
		if roll < permille(g.p.SprucePermille)*veg {
			spawnSpruce(r, rng, surface)
		}
	}
}

func permille(v int) float64 {
	return float64(ClampPermille(v)) / 1000
}

// region writes into w only inside the inclusive box [lo, hi].
type region struct {
	w      *svo.World
	lo, hi svo.Vec3i
}

func (r region) contains(p svo.Vec3i) bool {
	return p.X >= r.lo.X && p.Y >= r.lo.Y && p.Z >= r.lo.Z &&
		p.X <= r.hi.X && p.Y <= r.hi.Y && p.Z <= r.hi.Z
}

func (r region) set(p svo.Vec3i, v svo.Voxel) {
	if !r.contains(p) {
		return
	}
	r.w.SetVoxel(p, v)
}

// fill sets the inclusive box [a, b]; an inverted box is empty.
func (r region) fill(a, b svo.Vec3i, v svo.Voxel) {
	a = a.Max(r.lo)
	b = b.Min(r.hi)
	if a.X > b.X || a.Y > b.Y || a.Z > b.Z {
		return
	}
	r.w.FillVoxels(a, b, v)
}

func (r region) sphere(c svo.Vec3i, radius int, v svo.Voxel, lo, hi svo.Vec3i, decay float64, rng *mathx.Rand) {
	lo = lo.Max(r.lo)
	hi = hi.Min(r.hi)
	if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
		return
	}
	var rnd func() float64
	if rng != nil {
		rnd = rng.Float64
	}
	r.w.SphereWithin(c, radius, v, lo, hi, decay, rnd)
}
