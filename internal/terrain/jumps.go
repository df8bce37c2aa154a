package terrain

import (
	"math"

	"downhill/internal/config"
)

const saltJump = 0x6a75

// Jump is one kicker placed on the track.
type Jump struct {
	CenterZ       float64
	Length        float64
	Height        float64
	WidthFraction float64 // of the rideable half-width
}

// Top is the uphill edge where the ramp starts.
func (j Jump) Top() float64 { return j.CenterZ + j.Length/2 }

// Bottom is the downhill edge of the landing.
func (j Jump) Bottom() float64 { return j.CenterZ - j.Length/2 }

// jumpSchedule places at most one jump in every MeanGap-long cell of the z
// axis. The centre is jittered by a clamped gaussian whose limit keeps each
// jump inside its own cell, so a lookup only ever consults one cell and gaps
// stay within [LengthMax, MaxGap].
type jumpSchedule struct {
	cfg         config.JumpConfig
	noise       *NoiseField
	heightScale float64
	limit       float64
	spawnZ      float64
}

func newJumpSchedule(cfg config.JumpConfig, noise *NoiseField, heightScale, spawnZ float64) *jumpSchedule {
	s := &jumpSchedule{
		cfg:         cfg,
		noise:       noise,
		heightScale: heightScale,
		spawnZ:      spawnZ,
	}
	if cfg.MeanGap > 0 {
		s.limit = math.Max(0, math.Min((cfg.MeanGap-cfg.LengthMax)/2, (cfg.MaxGap-cfg.MeanGap)/2))
	}
	return s
}

func (s *jumpSchedule) enabled() bool {
	return s.cfg.MeanGap > 0 && s.cfg.HeightMax > 0 && s.heightScale > 0
}

// inCell returns the jump owned by cell k, if any.
func (s *jumpSchedule) inCell(k int) (Jump, bool) {
	if !s.enabled() {
		return Jump{}, false
	}
	rng := s.noise.RNG(k, 0, saltJump)
	offset := clamp(rng.Normal()*s.cfg.GapStdDev, -s.limit, s.limit)
	j := Jump{
		CenterZ:       (float64(k)+0.5)*s.cfg.MeanGap + offset,
		Length:        rng.Range(s.cfg.LengthMin, s.cfg.LengthMax),
		Height:        rng.Range(s.cfg.HeightMin, s.cfg.HeightMax) * s.heightScale,
		WidthFraction: rng.Range(s.cfg.WidthFractionMin, s.cfg.WidthFractionMax),
	}
	if j.Length > s.cfg.LengthMax {
		j.Length = s.cfg.LengthMax
	}
	if j.Top() > s.spawnZ-s.cfg.StartDistance {
		return Jump{}, false
	}
	return j, true
}

// at returns the jump whose window contains z.
func (s *jumpSchedule) at(z float64) (Jump, bool) {
	if !s.enabled() {
		return Jump{}, false
	}
	k := int(math.Floor(z / s.cfg.MeanGap))
	j, ok := s.inCell(k)
	if !ok || z > j.Top() || z < j.Bottom() {
		return Jump{}, false
	}
	return j, true
}

// between lists the jumps whose centre lies in [zMin, zMax], ordered downhill.
func (s *jumpSchedule) between(zMin, zMax float64) []Jump {
	if !s.enabled() || zMax < zMin {
		return nil
	}
	var out []Jump
	hi := int(math.Floor(zMax / s.cfg.MeanGap))
	lo := int(math.Floor(zMin / s.cfg.MeanGap))
	for k := hi; k >= lo; k-- {
		j, ok := s.inCell(k)
		if ok && j.CenterZ >= zMin && j.CenterZ <= zMax {
			out = append(out, j)
		}
	}
	return out
}

// rampHeight is the jump profile: a smooth ramp up over the first 75% of the
// length travelled (downhill), then a smooth drop to the landing.
func (j Jump) rampHeight(z float64) float64 {
	u := (j.Top() - z) / j.Length
	if u < 0 || u > 1 {
		return 0
	}
	const lip = 0.75
	if u <= lip {
		return j.Height * smoothstep(0, lip, u)
	}
	return j.Height * (1 - smoothstep(lip, 1, u))
}

const jumpEdgeBand = 2.0

// lateralFactor fades the jump out beyond its width fraction.
func (j Jump) lateralFactor(lateral, halfWidth float64) float64 {
	inner := j.WidthFraction * halfWidth
	return 1 - smoothstep(inner, inner+jumpEdgeBand, math.Abs(lateral))
}
