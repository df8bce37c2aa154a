package world

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/terrain"
)

func TestChunkPreviewDimensionsAndProps(t *testing.T) {
	e := testEngine(t)
	mesh := e.BuildMesh(-60)
	center := e.PointAtOffset(60)
	coin := terrain.Placement{Kind: terrain.ObstacleCoin, Position: center, Scale: 1}

	img, err := RenderChunkPreview(mesh, []terrain.Placement{coin})
	require.NoError(t, err)
	assert.Equal(t, (mesh.Cols-1)*previewCellSize, img.Bounds().Dx())
	assert.Equal(t, (mesh.Rows-1)*previewCellSize, img.Bounds().Dy())

	px, py, ok := previewPixel(mesh, center.X(), center.Z())
	require.True(t, ok)
	gold, _ := parseHexColor(propColors[terrain.ObstacleCoin])
	assert.Equal(t, gold, img.NRGBAAt(px, py))

	// Props off the chunk are skipped.
	_, _, ok = previewPixel(mesh, center.X(), mesh.Top()+10)
	assert.False(t, ok)
}

func TestChunkPreviewShadesEveryCell(t *testing.T) {
	e := testEngine(t)
	mesh := e.BuildMesh(-300)
	img, err := RenderChunkPreview(mesh, nil)
	require.NoError(t, err)

	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	for y := 0; y < img.Bounds().Dy(); y += previewCellSize {
		for x := 0; x < img.Bounds().Dx(); x += previewCellSize {
			require.NotEqual(t, background, img.NRGBAAt(x, y), "cell %d,%d left unpainted", x, y)
		}
	}
}

func TestSaveChunkPreviewWritesPNG(t *testing.T) {
	e := testEngine(t)
	mesh := e.BuildMesh(-180)
	dir := filepath.Join(t.TempDir(), "chunk-preview")

	path, err := SaveChunkPreview(1, mesh, e.PlaceChunk(-180), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chunk_1.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, (mesh.Cols-1)*previewCellSize, img.Bounds().Dx())
}

func TestChunkPreviewRejectsBadInput(t *testing.T) {
	_, err := RenderChunkPreview(nil, nil)
	require.Error(t, err)
	_, err = RenderChunkPreview(&terrain.Mesh{Rows: 1, Cols: 4}, nil)
	require.Error(t, err)
	_, err = SaveChunkPreview(0, &terrain.Mesh{}, nil, "")
	require.Error(t, err)

	var buf bytes.Buffer
	err = EncodeChunkPreview(&buf, nil, []terrain.Placement{{Kind: terrain.ObstacleRock, Position: mgl64.Vec3{}}})
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestParseHexColor(t *testing.T) {
	col, ok := parseHexColor(" #1f5f2c ")
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0x1f, G: 0x5f, B: 0x2c, A: 255}, col)

	for _, bad := range []string{"", "#12345", "#zzzzzz", "1234567"} {
		_, ok := parseHexColor(bad)
		assert.False(t, ok, bad)
	}
}
