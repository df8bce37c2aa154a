package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/config"
)

func TestNewEngineRejectsBadParams(t *testing.T) {
	cfg := config.Default()
	_, err := NewEngine(cfg, Params{Seed: 1, SlopeAngle: 20, Difficulty: "insane"})
	require.Error(t, err)

	_, err = NewEngine(cfg, Params{Seed: 1, SlopeAngle: 85, Difficulty: config.DifficultySport})
	require.Error(t, err)

	_, err = NewEngine(cfg, Params{Seed: 1, SlopeAngle: math.NaN(), Difficulty: config.DifficultySport})
	require.Error(t, err)

	e, err := NewEngine(nil, Params{Seed: 1, SlopeAngle: 20, Difficulty: "easy"})
	require.NoError(t, err)
	assert.Equal(t, config.DifficultyEasy, e.Params().Difficulty)
}

func TestPointAtOffsetFollowsCentreline(t *testing.T) {
	cfg := config.Default()
	cfg.Terrain.SpawnZ = 10
	cfg.Terrain.SpawnStep = 2
	e := newTestEngine(t, cfg, 6, 30, config.DifficultySport)

	p := e.PointAtOffset(50)
	assert.Equal(t, -90.0, p.Z())
	assert.Equal(t, e.Path().CenterX(-90), p.X())
	assert.Equal(t, e.Height(p.X(), p.Z()), p.Y())

	s := e.SampleCenter(p.Z())
	assert.Equal(t, p.X(), s.CenterX)
	assert.Equal(t, SurfaceTrack, s.Surface)
}

func TestCenterPointRestsOnCentreline(t *testing.T) {
	e := newTestEngine(t, nil, 6, 30, config.DifficultySport)
	for _, z := range []float64{-40, -615, -2300} {
		p := e.CenterPoint(z)
		x := e.Path().CenterX(z)
		assert.Equal(t, z, p.Z())
		assert.Equal(t, x, p.X())
		assert.Equal(t, e.Height(x, z), p.Y())
	}
	p := e.CenterPoint(math.NaN())
	assert.False(t, math.IsNaN(p.X()) || math.IsNaN(p.Y()) || math.IsNaN(p.Z()))
}

func TestNormalUsesDefaultProbe(t *testing.T) {
	e := newTestEngine(t, nil, 6, 30, config.DifficultySport)
	// Inside the jump-free start zone so only the slope tilts the normal.
	for _, z := range []float64{-12, -60, -140} {
		x := e.Path().CenterX(z) + 3
		assert.Equal(t, e.Normal(x, z, e.DefaultNormalProbe()), e.Normal(x, z, 0))
		assert.Equal(t, e.Normal(x, z, e.DefaultNormalProbe()), e.Normal(x, z, -1))
		n := e.Normal(x, z, 0.25)
		assert.InDelta(t, 1.0, n.Len(), 1e-9)
		assert.Greater(t, n.Y(), 0.0)
		// Height rises toward +Z, so the slope faces downhill.
		assert.Less(t, n.Z(), -0.3)
	}
}
