// Command slopeview flies a camera down the generated slope behind an
// autopilot skier. F1 toggles wireframe, R regenerates with a new seed,
// 1/2/3 pick the difficulty.
package main

import (
	"flag"
	"fmt"
	"log"
	"runtime"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/config"
	"downhill/internal/physics"
	"downhill/internal/world"
)

func init() {
	// raylib must be driven from the main OS thread.
	runtime.LockOSThread()
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	physicsWorld := physics.NewMemoryWorld()
	defer physicsWorld.Dispose()
	view := newRayScene()

	manager, err := world.NewManager(cfg, physicsWorld, view, nil)
	if err != nil {
		log.Fatalf("initialise terrain: %v", err)
	}
	defer manager.Close()

	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(1280, 720, "downhill")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	camera := rl.Camera3D{
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       60,
		Projection: rl.CameraPerspective,
	}

	distance := 0.0
	seed := cfg.Terrain.Seed
	difficulty := cfg.Terrain.Difficulty
	for !rl.WindowShouldClose() {
		regenerate := false
		switch {
		case rl.IsKeyPressed(rl.KeyF1):
			manager.ToggleWireframe()
		case rl.IsKeyPressed(rl.KeyR):
			seed++
			regenerate = true
		case rl.IsKeyPressed(rl.KeyOne):
			difficulty, regenerate = config.DifficultyEasy, true
		case rl.IsKeyPressed(rl.KeyTwo):
			difficulty, regenerate = config.DifficultySport, true
		case rl.IsKeyPressed(rl.KeyThree):
			difficulty, regenerate = config.DifficultyExpert, true
		}
		if regenerate {
			if err := manager.RegenerateWithSeed(seed, cfg.Terrain.SlopeAngle, difficulty); err != nil {
				log.Printf("regenerate: %v", err)
			}
			distance = 0
		}

		distance += cfg.Autopilot.Speed * float64(rl.GetFrameTime())
		z := cfg.Terrain.SpawnZ - distance
		skier := manager.CenterPoint(z).Add(mgl64.Vec3{0, 1, 0})
		if err := manager.Update(skier); err != nil {
			log.Printf("update: %v", err)
		}

		// Chase camera behind and above, looking down the fall line.
		camera.Position = vec64(skier.Add(mgl64.Vec3{0, 7, 16}))
		camera.Target = vec64(manager.CenterPoint(z - 25))

		rl.BeginDrawing()
		rl.ClearBackground(skyColor)
		rl.BeginMode3D(camera)
		view.Draw()
		rl.DrawSphere(vec64(skier), 0.5, rl.Red)
		rl.EndMode3D()

		st := manager.Stats()
		rl.DrawFPS(10, 10)
		rl.DrawText(fmt.Sprintf("seed %d  %s  %.0f m  recycles %d  meshes %d  colliders %d",
			st.Seed, st.Difficulty, distance, st.Recycles, st.LiveMeshes, st.LiveColliders), 10, 34, 20, rl.DarkGray)
		rl.EndDrawing()
	}
}
