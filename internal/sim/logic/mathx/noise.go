package mathx

import "math"

// ValueNoise2 is smoothly interpolated lattice noise in [0, 1).
func ValueNoise2(seed int64, x, z float64) float64 {
	x0 := math.Floor(x)
	z0 := math.Floor(z)
	tx := smooth(x - x0)
	tz := smooth(z - z0)
	ix, iz := int(x0), int(z0)

	a := Unit(Hash2(seed, ix, iz))
	b := Unit(Hash2(seed, ix+1, iz))
	c := Unit(Hash2(seed, ix, iz+1))
	d := Unit(Hash2(seed, ix+1, iz+1))
	return Lerp(Lerp(a, b, tx), Lerp(c, d, tx), tz)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

// NoiseMap samples fractal value noise at a fixed frequency and amplitude.
type NoiseMap struct {
	Seed      int64
	Frequency float64
	Amplitude float64
	Octaves   int
}

func NewNoiseMap(seed int64, frequency, amplitude float64) NoiseMap {
	return NoiseMap{Seed: seed, Frequency: frequency, Amplitude: amplitude, Octaves: 3}
}

// Get returns a value in [0, Amplitude).
func (m NoiseMap) Get(x, z float64) float64 {
	octaves := m.Octaves
	if octaves <= 0 {
		octaves = 1
	}
	var sum, norm float64
	freq, amp := m.Frequency, 1.0
	for i := 0; i < octaves; i++ {
		sum += ValueNoise2(m.Seed+int64(i)*7919, x*freq, z*freq) * amp
		norm += amp
		freq *= 2
		amp *= 0.5
	}
	return sum / norm * m.Amplitude
}
