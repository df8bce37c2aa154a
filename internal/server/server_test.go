package server

import (
	"bytes"
	"context"
	"log"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/config"
	"downhill/internal/physics"
	"downhill/internal/scene"
	"downhill/internal/world"
)

func newTestHost(t *testing.T, mutate func(*config.Config)) (*Server, *world.Manager, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Terrain.SubdivisionsX = 16
	cfg.Terrain.SubdivisionsZ = 20
	cfg.Server.TickRate = config.Duration(time.Millisecond)
	if mutate != nil {
		mutate(cfg)
	}
	logs := &bytes.Buffer{}
	logger := log.New(logs, "", 0)
	m, err := world.NewManager(cfg, physics.NewMemoryWorld(), scene.NewMemoryScene(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	s, err := New(cfg, m, logger)
	require.NoError(t, err)
	return s, m, logs
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.Error(t, err)
	_, err = New(config.Default(), nil, nil)
	require.Error(t, err)
}

func TestAutopilotFollowsCentreline(t *testing.T) {
	s, m, _ := newTestHost(t, nil)
	start := s.Skier()
	assert.InDelta(t, 0, start.Position.Z(), 1e-9)

	for i := 0; i < 100; i++ {
		require.NoError(t, s.tickFrame(100*time.Millisecond))
	}
	skier := s.Skier()
	assert.Equal(t, uint64(100), skier.Frames)
	assert.InDelta(t, 180, skier.Distance, 1e-6) // 18 m/s for 10 s
	assert.InDelta(t, -180, skier.Position.Z(), 1e-6)

	sample := m.Sample(0, skier.Position.Z())
	assert.InDelta(t, sample.CenterX, skier.Position.X(), 1e-9)
	assert.InDelta(t, m.TerrainHeight(sample.CenterX, -180)+standHeight, skier.Position.Y(), 1e-9)
	assert.Equal(t, uint64(100), m.Stats().Updates)
}

func TestAutopilotLogsRecycleProgress(t *testing.T) {
	s, m, logs := newTestHost(t, func(cfg *config.Config) {
		cfg.Autopilot.LogEvery = 2
	})
	for s.Recycles() < 4 {
		require.NoError(t, s.tickFrame(time.Second))
	}
	assert.Equal(t, m.Stats().Recycles, s.Recycles())
	assert.Contains(t, logs.String(), "recycled 2 chunks")
	assert.Contains(t, logs.String(), "recycled 4 chunks")
	assert.NotContains(t, logs.String(), "recycled 3 chunks")
}

func TestRunStopsAtMaxDistance(t *testing.T) {
	s, m, logs := newTestHost(t, func(cfg *config.Config) {
		cfg.Autopilot.Speed = 20000
		cfg.Autopilot.MaxDistance = 900
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	skier := s.Skier()
	assert.Equal(t, 900.0, skier.Distance)
	assert.Greater(t, m.Stats().Recycles, uint64(4))
	assert.Contains(t, logs.String(), "run complete")

	info, ok := m.ChunkAt(skier.Position.Z())
	require.True(t, ok, "skier left the resident window")
	assert.False(t, math.IsNaN(float64(info.MinY)))
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _ := newTestHost(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	require.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestRunSurfacesUpdateErrors(t *testing.T) {
	s, m, _ := newTestHost(t, nil)
	require.NoError(t, m.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.ErrorIs(t, s.Run(ctx), world.ErrClosed)
}
