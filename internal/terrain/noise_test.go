package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoiseFieldIsDeterministic(t *testing.T) {
	a := NewNoiseField(42)
	b := NewNoiseField(42)
	for i := 0; i < 200; i++ {
		x := float64(i)*1.37 - 90
		y := float64(i)*-0.73 + 11
		require.Equal(t, a.Perlin2D(x, y), b.Perlin2D(x, y))
		require.Equal(t, a.Value1D(x, 3), b.Value1D(x, 3))
		require.Equal(t, a.Fractal2D(x, y, 4, 0.5, 2, 9), b.Fractal2D(x, y, 4, 0.5, 2, 9))
		require.Equal(t, a.Hash01(i, -i, 5), b.Hash01(i, -i, 5))
	}
}

func TestNoiseFieldSeedsDiffer(t *testing.T) {
	a := NewNoiseField(1)
	b := NewNoiseField(2)
	differs := 0
	for i := 0; i < 100; i++ {
		if a.Value1D(float64(i)+0.5, 0) != b.Value1D(float64(i)+0.5, 0) {
			differs++
		}
	}
	assert.Greater(t, differs, 90)
}

func TestValue1DRangeAndSlope(t *testing.T) {
	n := NewNoiseField(7)
	const step = 1e-3
	prev := n.Value1D(-50, 1)
	for x := -50 + step; x < 50; x += step {
		v := n.Value1D(x, 1)
		require.GreaterOrEqual(t, v, -1.0)
		require.LessOrEqual(t, v, 1.0)
		require.LessOrEqual(t, math.Abs(v-prev), valueNoiseSlope*step+1e-9, "slope bound broken at %v", x)
		prev = v
	}
}

func TestHash01IsRoughlyUniform(t *testing.T) {
	n := NewNoiseField(99)
	const samples = 40000
	var buckets [10]int
	for i := 0; i < samples; i++ {
		v := n.Hash01(i%200-100, i/200, 17)
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
		buckets[int(v*10)]++
	}
	for i, count := range buckets {
		assert.InDelta(t, samples/10, count, samples/10*0.1, "bucket %d", i)
	}
}

func TestCellRNGRepeatsPerCell(t *testing.T) {
	n := NewNoiseField(3)
	a := n.RNG(4, -9, 1)
	b := n.RNG(4, -9, 1)
	for i := 0; i < 32; i++ {
		require.Equal(t, a.Float(), b.Float())
	}
	other := n.RNG(5, -9, 1)
	assert.NotEqual(t, n.RNG(4, -9, 1).Float(), other.Float())

	r := n.RNG(0, 0, 0)
	for i := 0; i < 1000; i++ {
		v := r.Range(-2, 3)
		require.GreaterOrEqual(t, v, -2.0)
		require.Less(t, v, 3.0)
		require.False(t, math.IsNaN(r.Normal()))
	}
}

func TestSmoothstepClampsAndEases(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(1, 2, 0))
	assert.Equal(t, 1.0, smoothstep(1, 2, 5))
	assert.InDelta(t, 0.5, smoothstep(1, 2, 1.5), 1e-12)
	assert.Equal(t, 1.0, smoothstep(3, 3, 3))
	assert.Equal(t, 0.0, smoothstep(3, 3, 2))
}
