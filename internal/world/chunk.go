package world

import (
	"downhill/internal/physics"
	"downhill/internal/scene"
	"downhill/internal/terrain"
)

// Obstacle is one placement together with the handles that realise it.
type Obstacle struct {
	terrain.Placement
	Collider physics.ColliderHandle
	Layer    physics.Group
	Node     scene.Handle
}

// Chunk is the content of one pool slot. The slot is stable; everything else
// is replaced wholesale when the slot is recycled, so handles read from a
// chunk are only valid until its Generation changes.
//
// Index and CenterZ always describe the slot's place in the pool. Ready is
// false while the content does not match that place, after a failed or
// skipped rebuild; the next Update rebuilds such slots.
type Chunk struct {
	Slot       int
	Index      int64 // global chunk index; CenterZ follows from it
	CenterZ    float64
	Length     float64
	Generation uint64
	Ready      bool

	Mesh      *terrain.Mesh
	MeshNode  scene.Handle
	Colliders ColliderSet
	Obstacles []Obstacle
	Wireframe bool
}

func (c *Chunk) Top() float64 { return c.CenterZ + c.Length/2 }

func (c *Chunk) Bottom() float64 { return c.CenterZ - c.Length/2 }

// Contains reports whether z falls on this chunk, uphill edge inclusive.
func (c *Chunk) Contains(z float64) bool {
	return z <= c.Top() && z > c.Bottom()
}

func (c *Chunk) placements() []terrain.Placement {
	out := make([]terrain.Placement, len(c.Obstacles))
	for i, o := range c.Obstacles {
		out[i] = o.Placement
	}
	return out
}

// ChunkInfo is a read-only summary of a slot.
type ChunkInfo struct {
	Slot       int                          `json:"slot"`
	Index      int64                        `json:"index"`
	CenterZ    float64                      `json:"centerZ"`
	Top        float64                      `json:"top"`
	Bottom     float64                      `json:"bottom"`
	Generation uint64                       `json:"generation"`
	Ready      bool                         `json:"ready"`
	Triangles  int                          `json:"triangles"`
	Colliders  int                          `json:"colliders"`
	Obstacles  map[terrain.ObstacleKind]int `json:"obstacles"`
	MinY       float32                      `json:"minY"`
	MaxY       float32                      `json:"maxY"`
	Wireframe  bool                         `json:"wireframe"`
}

func (c *Chunk) info() ChunkInfo {
	info := ChunkInfo{
		Slot:       c.Slot,
		Index:      c.Index,
		CenterZ:    c.CenterZ,
		Top:        c.Top(),
		Bottom:     c.Bottom(),
		Generation: c.Generation,
		Ready:      c.Ready,
		Colliders:  c.Colliders.Count(),
		Obstacles:  make(map[terrain.ObstacleKind]int),
		Wireframe:  c.Wireframe,
	}
	if c.Mesh != nil {
		info.Triangles = c.Mesh.TriangleCount()
		info.MinY = c.Mesh.MinY
		info.MaxY = c.Mesh.MaxY
	}
	for _, o := range c.Obstacles {
		info.Obstacles[o.Kind]++
	}
	return info
}
