// Package server hosts a terrain manager without a renderer: a fixed-rate
// frame loop drives an autopilot skier down the centreline and feeds its
// position to Update, the way a game loop would.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/config"
	"downhill/internal/terrain"
	"downhill/internal/world"
)

// standHeight keeps the autopilot's reference point above the snow.
const standHeight = 1.0

var errRunComplete = errors.New("autopilot reached max distance")

// Terrain is what the host loop needs from the manager.
type Terrain interface {
	Update(position mgl64.Vec3) error
	TerrainHeight(x, z float64) float64
	Sample(x, z float64) terrain.SpineSample
	Stats() world.Stats
	OnRecycle(fn func(world.RecycleEvent))
}

// Skier is the autopilot state after the latest frame.
type Skier struct {
	Position mgl64.Vec3
	Distance float64
	Frames   uint64
}

type Server struct {
	cfg     *config.Config
	terrain Terrain
	logger  *log.Logger

	recycles atomic.Uint64

	mu    sync.Mutex
	skier Skier
}

func New(cfg *config.Config, t Terrain, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if t == nil {
		return nil, fmt.Errorf("terrain is nil")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "slope-server ", log.LstdFlags|log.Lmicroseconds)
	}
	s := &Server{
		cfg:     cfg,
		terrain: t,
		logger:  logger,
	}
	s.skier.Position = s.positionAt(0)
	t.OnRecycle(s.onRecycle)
	return s, nil
}

// Run drives frames until ctx is cancelled, the autopilot covers
// Autopilot.MaxDistance, or an update fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := s.terrain.Stats()
	s.logger.Printf("%s starting run %s seed=%d slope=%.1f difficulty=%s speed=%.1fm/s",
		s.cfg.Server.ID, st.RunID, st.Seed, st.SlopeAngle, st.Difficulty, s.cfg.Autopilot.Speed)

	loop := newFrameLoop(s, s.cfg.Server.TickRate.Duration())
	loop.Start(ctx)
	err := loop.Wait()

	skier := s.Skier()
	switch {
	case errors.Is(err, errRunComplete):
		s.logger.Printf("run complete after %.0fm, %d frames, %d recycles", skier.Distance, skier.Frames, s.recycles.Load())
		return nil
	case err != nil:
		return fmt.Errorf("frame %d: %w", skier.Frames, err)
	}
	s.logger.Printf("stopped after %.0fm, %d frames, %d recycles", skier.Distance, skier.Frames, s.recycles.Load())
	return ctx.Err()
}

func (s *Server) tickFrame(delta time.Duration) error {
	s.mu.Lock()
	distance := s.skier.Distance + s.cfg.Autopilot.Speed*delta.Seconds()
	if limit := s.cfg.Autopilot.MaxDistance; limit > 0 && distance > limit {
		distance = limit
	}
	pos := s.positionAt(distance)
	s.skier = Skier{Position: pos, Distance: distance, Frames: s.skier.Frames + 1}
	s.mu.Unlock()

	if err := s.terrain.Update(pos); err != nil {
		return err
	}
	if limit := s.cfg.Autopilot.MaxDistance; limit > 0 && distance >= limit {
		return errRunComplete
	}
	return nil
}

// positionAt follows the centreline distance metres downhill of spawn.
func (s *Server) positionAt(distance float64) mgl64.Vec3 {
	z := s.cfg.Terrain.SpawnZ - distance
	x := s.terrain.Sample(0, z).CenterX
	return mgl64.Vec3{x, s.terrain.TerrainHeight(x, z) + standHeight, z}
}

// onRecycle runs under the manager's lock and must not call back into it.
func (s *Server) onRecycle(ev world.RecycleEvent) {
	n := s.recycles.Add(1)
	every := s.cfg.Autopilot.LogEvery
	if every <= 0 || n%uint64(every) != 0 {
		return
	}
	s.logger.Printf("recycled %d chunks; slot %d now chunk %d at z=%.0f (%d obstacles, %.2fms)",
		n, ev.Slot, ev.Index, ev.ToZ, ev.Obstacles, ev.Duration)
}

func (s *Server) Skier() Skier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skier
}

// Recycles counts recycle events seen since the server was created.
func (s *Server) Recycles() uint64 {
	return s.recycles.Load()
}
