package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"downhill/internal/config"
)

// Mesh is the triangulated surface of one chunk. Rows run downhill from the
// chunk's uphill edge; columns run from -HalfSpan to +HalfSpan around the
// centreline of each row.
type Mesh struct {
	CenterZ   float64
	Length    float64
	Rows      int
	Cols      int
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Surfaces  []SurfaceType
	Indices   []uint32
	MinY      float32
	MaxY      float32
}

// Index returns the vertex index of row i, column j.
func (m *Mesh) Index(i, j int) int {
	return i*m.Cols + j
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Top is the uphill edge of the chunk.
func (m *Mesh) Top() float64 { return m.CenterZ + m.Length/2 }

// Bottom is the downhill edge of the chunk.
func (m *Mesh) Bottom() float64 { return m.CenterZ - m.Length/2 }

// MeshBuilder samples a PathGenerator on a fixed grid.
type MeshBuilder struct {
	path  *PathGenerator
	subX  int
	subZ  int
	probe float64
}

func newMeshBuilder(cfg config.TerrainConfig, path *PathGenerator) *MeshBuilder {
	return &MeshBuilder{
		path:  path,
		subX:  cfg.SubdivisionsX,
		subZ:  cfg.SubdivisionsZ,
		probe: cfg.NormalProbe,
	}
}

// Build samples heights, surface types and normals for the chunk spanning
// [centerZ-length/2, centerZ+length/2]. It has no side effects.
func (b *MeshBuilder) Build(centerZ, length float64) *Mesh {
	rows := b.subZ + 1
	cols := b.subX + 1
	m := &Mesh{
		CenterZ:   centerZ,
		Length:    length,
		Rows:      rows,
		Cols:      cols,
		Positions: make([]mgl32.Vec3, rows*cols),
		Normals:   make([]mgl32.Vec3, rows*cols),
		Surfaces:  make([]SurfaceType, rows*cols),
		Indices:   make([]uint32, 0, b.subX*b.subZ*6),
		MinY:      math.MaxFloat32,
		MaxY:      -math.MaxFloat32,
	}

	top := centerZ + length/2
	stepZ := length / float64(b.subZ)
	span := b.path.HalfSpan()
	stepX := 2 * span / float64(b.subX)
	d := b.probe

	for i := 0; i < rows; i++ {
		z := top - float64(i)*stepZ
		row := b.path.spineAt(z)
		up := b.path.spineAt(z + d)
		down := b.path.spineAt(z - d)
		hw := row.width / 2

		for j := 0; j < cols; j++ {
			u := -span + float64(j)*stepX
			x := row.centerX + u
			h := b.path.heightOn(row, x)

			dx := (b.path.heightOn(row, x+d) - b.path.heightOn(row, x-d)) / (2 * d)
			dz := (b.path.heightOn(up, x) - b.path.heightOn(down, x)) / (2 * d)
			n := gradientNormal(dx, dz)

			idx := i*cols + j
			m.Positions[idx] = mgl32.Vec3{float32(x), float32(h), float32(z)}
			m.Normals[idx] = mgl32.Vec3{float32(n[0]), float32(n[1]), float32(n[2])}
			m.Surfaces[idx] = b.path.classify(u, hw)

			y := float32(h)
			if y < m.MinY {
				m.MinY = y
			}
			if y > m.MaxY {
				m.MaxY = y
			}
		}
	}

	// a-b on row i, c-d on row i+1 (further downhill). Both triangles wind
	// counter-clockwise when seen from above.
	for i := 0; i < b.subZ; i++ {
		for j := 0; j < b.subX; j++ {
			a := uint32(i*cols + j)
			bb := a + 1
			c := uint32((i+1)*cols + j)
			dd := c + 1
			m.Indices = append(m.Indices, a, bb, c, bb, dd, c)
		}
	}
	return m
}
