package main

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/scene"
	"downhill/internal/terrain"
)

var (
	skyColor       = rl.NewColor(168, 196, 226, 255)
	wireColor      = rl.NewColor(30, 60, 110, 255)
	trunkColor     = rl.NewColor(92, 64, 40, 255)
	rockColor      = rl.NewColor(104, 108, 116, 255)
	deadTreeColor  = rl.NewColor(122, 90, 58, 255)
	coinColor      = rl.NewColor(242, 194, 48, 255)
	surfaceColours = map[terrain.SurfaceType]rl.Color{
		terrain.SurfaceTrack:   rl.NewColor(238, 244, 255, 255),
		terrain.SurfaceBank:    rl.NewColor(207, 220, 237, 255),
		terrain.SurfaceCliff:   rl.NewColor(141, 147, 158, 255),
		terrain.SurfacePlateau: rl.NewColor(221, 230, 238, 255),
	}
	treeColours = map[terrain.ObstacleKind]rl.Color{
		terrain.ObstacleTreeSmall:  rl.NewColor(63, 143, 74, 255),
		terrain.ObstacleTreeMedium: rl.NewColor(47, 122, 59, 255),
		terrain.ObstacleTreeLarge:  rl.NewColor(31, 95, 44, 255),
	}
	sunDir = mgl32.Vec3{-0.45, 0.8, 0.4}.Normalize()
)

// rayScene keeps scene objects in a MemoryScene and draws them in immediate
// mode every frame; nothing is uploaded to the GPU.
type rayScene struct {
	*scene.MemoryScene
}

func newRayScene() *rayScene {
	return &rayScene{MemoryScene: scene.NewMemoryScene()}
}

func (s *rayScene) Draw() {
	wire := s.Wireframe()
	s.Each(func(_ scene.Handle, obj scene.Object) bool {
		switch {
		case obj.Mesh != nil:
			drawMesh(obj.Mesh, wire)
		case obj.Prop != nil:
			drawProp(obj.Prop, wire)
		}
		return true
	})
}

func vec(v mgl32.Vec3) rl.Vector3 {
	return rl.NewVector3(v[0], v[1], v[2])
}

func vec64(v mgl64.Vec3) rl.Vector3 {
	return rl.NewVector3(float32(v[0]), float32(v[1]), float32(v[2]))
}

func shade(c rl.Color, n mgl32.Vec3) rl.Color {
	f := 0.4 + 0.6*float32(math.Max(0, float64(n.Dot(sunDir))))
	return rl.NewColor(uint8(float32(c.R)*f), uint8(float32(c.G)*f), uint8(float32(c.B)*f), c.A)
}

func drawMesh(m *terrain.Mesh, wire bool) {
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		a, b, c := vec(m.Positions[ia]), vec(m.Positions[ib]), vec(m.Positions[ic])
		if wire {
			rl.DrawLine3D(a, b, wireColor)
			rl.DrawLine3D(b, c, wireColor)
			rl.DrawLine3D(c, a, wireColor)
			continue
		}
		col := shade(surfaceColours[m.Surfaces[ia]], m.Normals[ia])
		rl.DrawTriangle3D(a, b, c, col)
	}
}

func drawProp(p *terrain.Placement, wire bool) {
	pos := vec64(p.Position)
	r := float32(p.Radius())
	switch {
	case p.Kind == terrain.ObstacleCoin:
		if wire {
			rl.DrawSphereWires(pos, r, 6, 8, coinColor)
			return
		}
		rl.DrawSphere(pos, r, coinColor)
	case p.Kind == terrain.ObstacleRock:
		if wire {
			rl.DrawSphereWires(pos, r, 6, 8, rockColor)
			return
		}
		rl.DrawSphere(pos, r, rockColor)
	case p.Kind == terrain.ObstacleDeadTree:
		h := float32(2 * (p.HalfHeight() + p.Radius()))
		rl.DrawCylinder(pos, r*0.6, r, h, 6, deadTreeColor)
	default:
		h := float32(2 * (p.HalfHeight() + p.Radius()))
		trunk := h * 0.25
		rl.DrawCylinder(pos, r*0.5, r*0.5, trunk, 6, trunkColor)
		crown := rl.NewVector3(pos.X, pos.Y+trunk, pos.Z)
		if wire {
			rl.DrawCylinderWires(crown, 0, r*3, h-trunk, 8, treeColours[p.Kind])
			return
		}
		rl.DrawCylinder(crown, 0, r*3, h-trunk, 8, treeColours[p.Kind])
	}
}
