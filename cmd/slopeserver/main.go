package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"downhill/internal/config"
	"downhill/internal/debugapi"
	"downhill/internal/physics"
	"downhill/internal/scene"
	slopeserver "downhill/internal/server"
	"downhill/internal/world"
)

func main() {
	var (
		cfgPath    string
		seed       int64
		slope      float64
		difficulty string
		previewDir string
	)
	flag.StringVar(&cfgPath, "config", "", "path to slope server configuration file")
	flag.Int64Var(&seed, "seed", 0, "override terrain.seed (0 keeps the configured seed)")
	flag.Float64Var(&slope, "slope", -1, "override terrain.slope_angle in degrees")
	flag.StringVar(&difficulty, "difficulty", "", "override terrain.difficulty (EASY, SPORT, EXPERT)")
	flag.StringVar(&previewDir, "preview-dir", "", "write PNG previews of the resident chunks here on exit")
	flag.Parse()

	if _, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("sync config from environment: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if seed != 0 {
		cfg.Terrain.Seed = seed
	}
	if slope >= 0 {
		cfg.Terrain.SlopeAngle = slope
	}
	if difficulty != "" {
		d, err := config.ParseDifficulty(difficulty)
		if err != nil {
			log.Fatalf("parse difficulty: %v", err)
		}
		cfg.Terrain.Difficulty = d
	}

	logger := log.New(log.Writer(), "slope-server ", log.LstdFlags|log.Lmicroseconds)
	physicsWorld := physics.NewMemoryWorld()
	defer physicsWorld.Dispose()

	manager, err := world.NewManager(cfg, physicsWorld, scene.NewMemoryScene(), nil)
	if err != nil {
		log.Fatalf("initialise terrain: %v", err)
	}

	srv, err := slopeserver.New(cfg, manager, logger)
	if err != nil {
		log.Fatalf("initialise slope server: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Debug.Enabled {
		api := debugapi.New(cfg.Debug, manager, nil)
		go func() {
			if err := api.Run(ctx); err != nil {
				logger.Printf("debug API stopped: %v", err)
			}
		}()
	}

	runErr := srv.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		runErr = nil
	}

	if previewDir != "" {
		writePreviews(manager, previewDir, logger)
	}
	if err := manager.Close(); err != nil {
		logger.Printf("release terrain: %v", err)
	}
	if runErr != nil {
		log.Fatalf("server exited with error: %v", runErr)
	}
}

func writePreviews(m *world.Manager, dir string, logger *log.Logger) {
	for _, info := range m.Chunks() {
		mesh, placements, ok := m.ChunkGeometry(info.Slot)
		if !ok {
			continue
		}
		path, err := world.SaveChunkPreview(info.Index, mesh, placements, dir)
		if err != nil {
			logger.Printf("preview chunk %d: %v", info.Index, err)
			continue
		}
		logger.Printf("wrote %s", path)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
