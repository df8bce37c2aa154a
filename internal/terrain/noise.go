package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// NoiseField is the single deterministic noise source of an Engine. It is
// immutable once constructed and safe for concurrent readers.
type NoiseField struct {
	seed   int64
	perlin *perlin.Perlin
}

func NewNoiseField(seed int64) *NoiseField {
	return &NoiseField{
		seed:   seed,
		perlin: perlin.NewPerlin(2, 2, 3, seed),
	}
}

func (n *NoiseField) Seed() int64 {
	return n.seed
}

// Perlin2D returns gradient noise, roughly within [-1, 1].
func (n *NoiseField) Perlin2D(x, y float64) float64 {
	return n.perlin.Noise2D(x, y)
}

// Value1D is smooth lattice value noise in [-1, 1]. Its derivative never
// exceeds valueNoiseSlope per lattice unit.
func (n *NoiseField) Value1D(t float64, salt int) float64 {
	t0 := math.Floor(t)
	i0 := int(t0)
	s := smooth(t - t0)
	a := random2D(i0, salt, n.seed)
	b := random2D(i0+1, salt, n.seed)
	return lerp(a, b, s)
}

// valueNoiseSlope bounds |d Value1D / dt|: smoothstep peaks at 1.5 and lattice
// values differ by at most 2.
const valueNoiseSlope = 3.0

// Value2D is bilinear smooth value noise in [-1, 1].
func (n *NoiseField) Value2D(x, y float64, salt int) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	ix := int(x0)
	iy := int(y0)
	sx := smooth(x - x0)
	sy := smooth(y - y0)

	seed := n.seed ^ int64(salt)*0x5bd1e995
	n0 := random2D(ix, iy, seed)
	n1 := random2D(ix+1, iy, seed)
	ix0 := lerp(n0, n1, sx)

	n2 := random2D(ix, iy+1, seed)
	n3 := random2D(ix+1, iy+1, seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sy)
}

// Fractal2D layers octaves of Value2D and normalises the result to [-1, 1].
func (n *NoiseField) Fractal2D(x, y float64, octaves int, persistence, lacunarity float64, salt int) float64 {
	frequency := 1.0
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < octaves; i++ {
		noiseSum += n.Value2D(x*frequency, y*frequency, salt+i) * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

// Hash01 maps an integer cell to a uniform value in [0, 1).
func (n *NoiseField) Hash01(ix, iz, salt int) float64 {
	key := uint64(uint32(ix))<<32 | uint64(uint32(iz))
	h := mix64(key ^ mix64(uint64(n.seed)^uint64(salt)*0x9e3779b97f4a7c15))
	return float64(h>>11) / (1 << 53)
}

// RNG returns a deterministic generator for one integer cell.
func (n *NoiseField) RNG(ix, iz, salt int) *CellRNG {
	return newCellRNG(ix, iz, n.seed^int64(salt)<<17)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

// smoothstep maps x from [edge0, edge1] onto [0, 1] with a cubic ease.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	return smooth(clamp((x-edge0)/(edge1-edge0), 0, 1))
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// mix64 is the splitmix64 finaliser.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// CellRNG is a xorshift generator seeded from a cell coordinate.
type CellRNG struct {
	state uint64
}

func newCellRNG(x, y int, seed int64) *CellRNG {
	key := uint64(uint32(x))<<32 | uint64(uint32(y))
	state := mix64(key ^ mix64(uint64(seed)))
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	return &CellRNG{state: state}
}

func (r *CellRNG) next() uint64 {
	r.state ^= r.state << 7
	r.state ^= r.state >> 9
	r.state ^= r.state << 8
	return r.state
}

// Float returns a value in [0, 1).
func (r *CellRNG) Float() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// Range returns a value in [lo, hi).
func (r *CellRNG) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float()
}

// Normal returns a standard normal sample (Box-Muller).
func (r *CellRNG) Normal() float64 {
	u1 := r.Float()
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	u2 := r.Float()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
