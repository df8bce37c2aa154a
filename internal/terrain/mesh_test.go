package terrain

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/config"
)

func smallMeshConfig() *config.Config {
	cfg := config.Default()
	cfg.Terrain.SubdivisionsX = 24
	cfg.Terrain.SubdivisionsZ = 30
	return cfg
}

func TestMeshLayout(t *testing.T) {
	cfg := smallMeshConfig()
	e := newTestEngine(t, cfg, 5, 22, config.DifficultySport)
	m := e.BuildMesh(-60)

	require.Equal(t, cfg.Terrain.SubdivisionsZ+1, m.Rows)
	require.Equal(t, cfg.Terrain.SubdivisionsX+1, m.Cols)
	require.Len(t, m.Positions, m.Rows*m.Cols)
	require.Len(t, m.Normals, m.Rows*m.Cols)
	require.Len(t, m.Surfaces, m.Rows*m.Cols)
	require.Equal(t, cfg.Terrain.SubdivisionsX*cfg.Terrain.SubdivisionsZ*2, m.TriangleCount())
	for _, idx := range m.Indices {
		require.Less(t, int(idx), len(m.Positions))
	}

	assert.Equal(t, float32(m.Top()), m.Positions[m.Index(0, 0)].Z())
	assert.Equal(t, float32(m.Bottom()), m.Positions[m.Index(m.Rows-1, 0)].Z())
	assert.LessOrEqual(t, m.MinY, m.MaxY)

	span := e.Path().HalfSpan()
	row := m.Index(m.Rows/2, 0)
	width := m.Positions[row+m.Cols-1].X() - m.Positions[row].X()
	assert.InDelta(t, 2*span, float64(width), 1e-3)
}

func TestMeshTrianglesFaceUp(t *testing.T) {
	e := newTestEngine(t, smallMeshConfig(), 5, 22, config.DifficultySport)
	m := e.BuildMesh(-180)
	for i := 0; i < len(m.Indices); i += 3 {
		a := m.Positions[m.Indices[i]]
		b := m.Positions[m.Indices[i+1]]
		c := m.Positions[m.Indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		require.Greater(t, n.Y(), float32(0), "triangle %d winds clockwise", i/3)
	}
}

func TestMeshVerticesMatchHeightQueries(t *testing.T) {
	e := newTestEngine(t, smallMeshConfig(), 5, 30, config.DifficultySport)
	m := e.BuildMesh(-300)
	for i := 0; i < len(m.Positions); i += 7 {
		p := m.Positions[i]
		want := e.Height(float64(p.X()), float64(p.Z()))
		assert.InDelta(t, want, float64(p.Y()), 0.05, "vertex %d", i)
		assert.InDelta(t, 1.0, float64(m.Normals[i].Len()), 1e-4)
		assert.Equal(t, e.Classify(float64(p.X()), float64(p.Z())), m.Surfaces[i], "vertex %d", i)
	}
}

func TestMeshBuildIsDeterministic(t *testing.T) {
	cfg := smallMeshConfig()
	a := newTestEngine(t, cfg, 77, 22, config.DifficultyExpert).BuildMesh(-540)
	b := newTestEngine(t, cfg, 77, 22, config.DifficultyExpert).BuildMesh(-540)
	assert.Equal(t, a, b)
}

func TestNeighbouringChunksShareBoundaryRow(t *testing.T) {
	cfg := smallMeshConfig()
	e := newTestEngine(t, cfg, 13, 22, config.DifficultySport)
	l := cfg.Terrain.ChunkLength
	upper := e.BuildMesh(-l / 2)
	lower := e.BuildMesh(-l/2 - l)

	last := upper.Rows - 1
	for j := 0; j < upper.Cols; j++ {
		assert.Equal(t, upper.Positions[upper.Index(last, j)], lower.Positions[lower.Index(0, j)], "column %d", j)
		assert.Equal(t, upper.Normals[upper.Index(last, j)], lower.Normals[lower.Index(0, j)], "column %d", j)
	}
}

func TestFlatMeshNormalsPointUp(t *testing.T) {
	cfg := flatConfig()
	cfg.Terrain.SubdivisionsX = 8
	cfg.Terrain.SubdivisionsZ = 8
	e := newTestEngine(t, cfg, 1, 0, config.DifficultySport)
	m := e.BuildMesh(-60)
	up := mgl32.Vec3{0, 1, 0}
	for i, s := range m.Surfaces {
		if s != SurfaceTrack {
			continue
		}
		assert.True(t, m.Normals[i].ApproxEqual(up), "vertex %d normal %v", i, m.Normals[i])
	}
}
