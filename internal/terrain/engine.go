package terrain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/config"
)

// Params are the per-run inputs that, together with the configuration, fully
// determine the generated terrain.
type Params struct {
	Seed       int64
	SlopeAngle float64 // degrees
	Difficulty config.Difficulty
}

// Engine owns the noise field and every sub-generator derived from it. All of
// its methods are pure functions of their arguments, so one Engine may be
// shared by any number of readers.
type Engine struct {
	params      Params
	probe       float64
	spawnZ      float64
	spawnStep   float64
	chunkLength float64

	noise  *NoiseField
	path   *PathGenerator
	mesh   *MeshBuilder
	placer *ObstaclePlacer
}

func NewEngine(cfg *config.Config, params Params) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	difficulty, err := config.ParseDifficulty(string(params.Difficulty))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	params.Difficulty = difficulty
	if math.IsNaN(params.SlopeAngle) || params.SlopeAngle < 0 || params.SlopeAngle >= 80 {
		return nil, fmt.Errorf("engine: slope angle %v outside [0, 80)", params.SlopeAngle)
	}

	mult := cfg.ForDifficulty(difficulty)
	noise := NewNoiseField(params.Seed)
	path := newPathGenerator(cfg, noise, params.SlopeAngle, mult.JumpHeightScale)

	e := &Engine{
		params:      params,
		probe:       cfg.Terrain.NormalProbe,
		spawnZ:      cfg.Terrain.SpawnZ,
		spawnStep:   cfg.Terrain.SpawnStep,
		chunkLength: cfg.Terrain.ChunkLength,
		noise:       noise,
		path:        path,
	}
	e.mesh = newMeshBuilder(cfg.Terrain, path)
	e.placer = newObstaclePlacer(cfg.Obstacles, cfg.Coins, mult.DensityMultiplier, noise, path)
	return e, nil
}

func (e *Engine) Params() Params { return e.params }
func (e *Engine) Noise() *NoiseField { return e.noise }
func (e *Engine) Path() *PathGenerator { return e.path }
func (e *Engine) Mesher() *MeshBuilder { return e.mesh }
func (e *Engine) Placer() *ObstaclePlacer { return e.placer }
func (e *Engine) ChunkLength() float64 { return e.chunkLength }
func (e *Engine) SpawnZ() float64 { return e.spawnZ }
func (e *Engine) DefaultNormalProbe() float64 { return e.probe }

// Height is the terrain height at any (x, z).
func (e *Engine) Height(x, z float64) float64 {
	return e.path.Height(x, z)
}

// Normal approximates the surface normal by central differences at x±d and
// z±d. A non-positive d uses the configured probe.
func (e *Engine) Normal(x, z, d float64) mgl64.Vec3 {
	if !(d > 0) || math.IsInf(d, 1) {
		d = e.probe
	}
	x, z = finite(x), finite(z)
	dx := (e.path.Height(x+d, z) - e.path.Height(x-d, z)) / (2 * d)
	dz := (e.path.Height(x, z+d) - e.path.Height(x, z-d)) / (2 * d)
	return gradientNormal(dx, dz)
}

func gradientNormal(dx, dz float64) mgl64.Vec3 {
	n := mgl64.Vec3{-dx, 1, -dz}
	l := n.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{0, 1, 0}
	}
	return n.Mul(1 / l)
}

// PointAtOffset returns the centreline point steps spawn-steps downhill of
// the spawn origin, resting on the surface.
func (e *Engine) PointAtOffset(steps int) mgl64.Vec3 {
	return e.CenterPoint(e.spawnZ - float64(steps)*e.spawnStep)
}

// CenterPoint is the surface point on the centreline at z.
func (e *Engine) CenterPoint(z float64) mgl64.Vec3 {
	z = finite(z)
	x := e.path.CenterX(z)
	return mgl64.Vec3{x, e.path.Height(x, z), z}
}

// Sample returns the SpineSample for (x, z).
func (e *Engine) Sample(x, z float64) SpineSample {
	return e.path.Sample(x, z)
}

// SampleCenter returns the SpineSample on the centreline at z.
func (e *Engine) SampleCenter(z float64) SpineSample {
	z = finite(z)
	return e.path.Sample(e.path.CenterX(z), z)
}

func (e *Engine) Classify(x, z float64) SurfaceType {
	return e.path.Classify(x, z)
}

// BuildMesh samples the chunk centred at centerZ.
func (e *Engine) BuildMesh(centerZ float64) *Mesh {
	return e.mesh.Build(centerZ, e.chunkLength)
}

// PlaceChunk scatters obstacles and coins over the chunk centred at centerZ.
func (e *Engine) PlaceChunk(centerZ float64) []Placement {
	return e.placer.PlaceChunk(centerZ, e.chunkLength)
}
