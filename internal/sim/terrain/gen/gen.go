package gen

import "voxeltrace.ai/internal/sim/logic/mathx"

// Biome classifies a column by temperature and moisture, both in [0, 1).
type Biome uint8

const (
	BiomePlains Biome = iota
	BiomeDesert
	BiomeTundra
	BiomeSnow
	BiomeSwamp
)

func (b Biome) String() string {
	switch b {
	case BiomeDesert:
		return "DESERT"
	case BiomeTundra:
		return "TUNDRA"
	case BiomeSnow:
		return "SNOW"
	case BiomeSwamp:
		return "SWAMP"
	default:
		return "PLAINS"
	}
}

func BiomeFrom(moisture, temp float64) Biome {
	switch {
	case moisture < 0.3 && temp > 0.7:
		return BiomeDesert
	case moisture < 0.3 && temp < 0.3:
		return BiomeTundra
	case moisture > 0.3 && temp < 0.3:
		return BiomeSnow
	case moisture > 0.7 && temp > 0.7:
		return BiomeSwamp
	default:
		return BiomePlains
	}
}

func WithinSpawnClear(x, z, cx, cz, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx := int64(x - cx)
	dz := int64(z - cz)
	return dx*dx+dz*dz <= r*r
}

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

// InCluster reports whether (x, z) falls inside one of the hash-placed discs of
// the given radius, at most one per grid cell.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}
