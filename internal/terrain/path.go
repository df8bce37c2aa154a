package terrain

import (
	"math"

	"downhill/internal/config"
)

const (
	saltMeander    = 0x4d31
	saltWidth      = 0x5769
	saltUndulation = 0x556e
	saltPlateau    = 0x706c
)

const (
	plateauRoughness     = 0.6
	plateauRoughnessBand = 4.0
	plateauFrequency     = 0.05
	mogulFadeStart       = 0.8 // fraction of the half-width where moguls start to fade
)

// SpineSample describes the path at one along-track coordinate, classified
// at one lateral position. It is derived on demand and never stored.
type SpineSample struct {
	Z         float64
	CenterX   float64
	Width     float64
	BankAngle float64 // radians; positive raises the +x side
	Surface   SurfaceType
}

// spine carries everything about a z row that does not depend on x.
type spine struct {
	z        float64
	centerX  float64
	width    float64
	bank     float64
	tanBank  float64
	base     float64
	jump     Jump
	hasJump  bool
	halfSpan float64
}

// PathGenerator maps absolute (x, z) to terrain shape. Every method is a pure
// function of its arguments and the generator's fixed parameters.
type PathGenerator struct {
	cfg    config.PathConfig
	canyon config.CanyonConfig
	noise  *NoiseField
	jumps  *jumpSchedule

	slopeTan       float64
	undulation     float64
	undulationFreq float64
	meanderScale   float64
	maxSlope       float64
	maxBank        float64
	taps           []float64
	halfSpan       float64
}

func newPathGenerator(cfg *config.Config, noise *NoiseField, slopeAngle, jumpHeightScale float64) *PathGenerator {
	p := &PathGenerator{
		cfg:            cfg.Path,
		canyon:         cfg.Canyon,
		noise:          noise,
		jumps:          newJumpSchedule(cfg.Jumps, noise, jumpHeightScale, cfg.Terrain.SpawnZ),
		slopeTan:       math.Tan(slopeAngle * math.Pi / 180),
		undulation:     cfg.Terrain.Undulation,
		undulationFreq: cfg.Terrain.UndulationFrequency,
		maxSlope:       math.Tan(cfg.Path.MaxHeading * math.Pi / 180),
		maxBank:        cfg.Path.MaxBank * math.Pi / 180,
	}
	p.halfSpan = cfg.Path.WidthMax/2 + cfg.Canyon.FloorOffset + cfg.Canyon.WallWidth + cfg.Terrain.LateralMargin

	// The raw meander's derivative is bounded by the sum of each term's
	// amplitude times frequency; scaling by maxSlope/bound caps the heading.
	bound := math.Abs(cfg.Path.MeanderAmplitude)*(math.Abs(cfg.Path.MeanderFrequency)+
		math.Abs(cfg.Path.MeanderSecondaryRatio*cfg.Path.MeanderSecondaryFrequency)) +
		math.Abs(cfg.Path.MeanderNoiseAmplitude*cfg.Path.MeanderNoiseFrequency)*valueNoiseSlope
	p.meanderScale = 1
	if bound > p.maxSlope {
		p.meanderScale = p.maxSlope / bound
	}

	samples := cfg.Path.SmoothingSamples
	if samples < 1 {
		samples = 1
	}
	p.taps = make([]float64, samples)
	if samples > 1 {
		step := cfg.Path.SmoothingWindow / float64(samples-1)
		for i := range p.taps {
			p.taps[i] = -cfg.Path.SmoothingWindow/2 + float64(i)*step
		}
	}
	return p
}

// MaxLateralSlope is the largest |dCenterX/dz| the centreline can reach.
func (p *PathGenerator) MaxLateralSlope() float64 {
	return p.maxSlope
}

// HalfSpan is the lateral half-extent of generated geometry around the centreline.
func (p *PathGenerator) HalfSpan() float64 {
	return p.halfSpan
}

func (p *PathGenerator) rawMeander(z float64) float64 {
	c := p.cfg
	waves := c.MeanderAmplitude * (math.Sin(c.MeanderFrequency*z) +
		c.MeanderSecondaryRatio*math.Sin(c.MeanderSecondaryFrequency*z+c.MeanderPhase))
	return waves + c.MeanderNoiseAmplitude*p.noise.Value1D(z*c.MeanderNoiseFrequency, saltMeander)
}

// CenterX is the lateral offset of the centreline, smoothed by a moving
// average and scaled so its slope never exceeds MaxLateralSlope.
func (p *PathGenerator) CenterX(z float64) float64 {
	if len(p.taps) == 1 {
		return p.meanderScale * p.rawMeander(z)
	}
	sum := 0.0
	for _, offset := range p.taps {
		sum += p.rawMeander(z + offset)
	}
	return p.meanderScale * sum / float64(len(p.taps))
}

// Width is the rideable width, always within [WidthMin, WidthMax].
func (p *PathGenerator) Width(z float64) float64 {
	w := p.cfg.BaseWidth + p.cfg.WidthNoise*p.noise.Value1D(z*p.cfg.WidthFrequency, saltWidth)
	return clamp(w, p.cfg.WidthMin, p.cfg.WidthMax)
}

// Curvature is the second derivative of the centreline.
func (p *PathGenerator) Curvature(z float64) float64 {
	h := p.cfg.CurvatureProbe
	return (p.CenterX(z+h) - 2*p.CenterX(z) + p.CenterX(z-h)) / (h * h)
}

// BankAngle tilts the track into turns, raising the outside of the curve.
func (p *PathGenerator) BankAngle(z float64) float64 {
	return p.bankFromCurvature(p.Curvature(z))
}

func (p *PathGenerator) bankFromCurvature(k float64) float64 {
	deg := -p.cfg.BankingStrength * p.cfg.BankGain * k
	return clamp(deg*math.Pi/180, -p.maxBank, p.maxBank)
}

// BaseHeight is the slope gradient plus low-frequency undulation.
func (p *PathGenerator) BaseHeight(z float64) float64 {
	h := z * p.slopeTan
	if p.undulation != 0 {
		h += p.undulation * p.noise.Value1D(z*p.undulationFreq, saltUndulation)
	}
	return h
}

// JumpAt reports the jump covering z, if any.
func (p *PathGenerator) JumpAt(z float64) (Jump, bool) {
	return p.jumps.at(z)
}

// JumpsBetween lists jumps centred in [zMin, zMax], downhill order.
func (p *PathGenerator) JumpsBetween(zMin, zMax float64) []Jump {
	return p.jumps.between(zMin, zMax)
}

func (p *PathGenerator) spineAt(z float64) spine {
	h := p.cfg.CurvatureProbe
	c0 := p.CenterX(z)
	k := (p.CenterX(z+h) - 2*c0 + p.CenterX(z-h)) / (h * h)
	bank := p.bankFromCurvature(k)
	s := spine{
		z:        z,
		centerX:  c0,
		width:    p.Width(z),
		bank:     bank,
		tanBank:  math.Tan(bank),
		base:     p.BaseHeight(z),
		halfSpan: p.halfSpan,
	}
	s.jump, s.hasJump = p.jumps.at(z)
	return s
}

// Sample returns the spine values at z with the surface classified at x.
func (p *PathGenerator) Sample(x, z float64) SpineSample {
	x, z = finite(x), finite(z)
	s := p.spineAt(z)
	return SpineSample{
		Z:         z,
		CenterX:   s.centerX,
		Width:     s.width,
		BankAngle: s.bank,
		Surface:   p.classify(x-s.centerX, s.width/2),
	}
}

// Classify buckets (x, z) into a surface type.
func (p *PathGenerator) Classify(x, z float64) SurfaceType {
	x, z = finite(x), finite(z)
	return p.classify(x-p.CenterX(z), p.Width(z)/2)
}

func (p *PathGenerator) classify(lateral, halfWidth float64) SurfaceType {
	a := math.Abs(lateral)
	floorEdge := halfWidth + p.canyon.FloorOffset
	switch {
	case a <= p.cfg.TrackFraction*halfWidth:
		return SurfaceTrack
	case a <= floorEdge:
		return SurfaceBank
	case a <= floorEdge+p.canyon.WallWidth:
		return SurfaceCliff
	default:
		return SurfacePlateau
	}
}

// Height returns the terrain height at any (x, z). Non-finite inputs are
// treated as zero so callers always receive a usable value.
func (p *PathGenerator) Height(x, z float64) float64 {
	x, z = finite(x), finite(z)
	return p.heightOn(p.spineAt(z), x)
}

func (p *PathGenerator) heightOn(s spine, x float64) float64 {
	lateral := x - s.centerX
	a := math.Abs(lateral)
	hw := s.width / 2

	h := s.base
	h += clamp(lateral, -hw, hw) * s.tanBank

	if p.cfg.MogulHeight != 0 {
		fade := 1 - smoothstep(hw*mogulFadeStart, hw, a)
		if fade > 0 {
			h += p.cfg.MogulHeight * fade * p.noise.Perlin2D(x*p.cfg.MogulScale, s.z*p.cfg.MogulScale)
		}
	}

	if s.hasJump {
		h += s.jump.rampHeight(s.z) * s.jump.lateralFactor(lateral, hw)
	}

	wallStart := hw + p.canyon.FloorOffset
	if a > wallStart {
		wallEnd := wallStart + p.canyon.WallWidth
		h += p.canyon.Height * smoothstep(wallStart, wallEnd, a)
		if a > wallEnd {
			rough := smoothstep(wallEnd, wallEnd+plateauRoughnessBand, a)
			h += plateauRoughness * rough * p.noise.Fractal2D(x*plateauFrequency, s.z*plateauFrequency, 3, 0.5, 2, saltPlateau)
		}
	}
	return h
}

func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat32
	}
	if math.IsInf(v, -1) {
		return -math.MaxFloat32
	}
	return v
}
