package world

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"downhill/internal/terrain"
)

const (
	previewCellSize     = 4
	previewAmbientLight = 0.35
	previewPropRadius   = 3
)

var surfaceColors = map[terrain.SurfaceType]string{
	terrain.SurfaceTrack:   "#eef4ff",
	terrain.SurfaceBank:    "#cfdced",
	terrain.SurfaceCliff:   "#8d939e",
	terrain.SurfacePlateau: "#dde6ee",
}

var propColors = map[terrain.ObstacleKind]string{
	terrain.ObstacleTreeSmall:  "#3f8f4a",
	terrain.ObstacleTreeMedium: "#2f7a3b",
	terrain.ObstacleTreeLarge:  "#1f5f2c",
	terrain.ObstacleRock:       "#5b5f66",
	terrain.ObstacleDeadTree:   "#7a5a3a",
	terrain.ObstacleCoin:       "#f2c230",
}

// lightDir points toward the sun, from uphill and to the left.
var lightDir = [3]float64{-0.45, 0.8, 0.4}

// RenderChunkPreview draws a top-down shaded view of a chunk: one cell per grid
// quad coloured by surface type and lit by the vertex normal, with props on top.
// Uphill is at the top of the image.
func RenderChunkPreview(mesh *terrain.Mesh, placements []terrain.Placement) (*image.NRGBA, error) {
	if mesh == nil {
		return nil, fmt.Errorf("mesh is nil")
	}
	if mesh.Rows < 2 || mesh.Cols < 2 {
		return nil, fmt.Errorf("invalid mesh dimensions: %dx%d", mesh.Rows, mesh.Cols)
	}

	width := (mesh.Cols - 1) * previewCellSize
	height := (mesh.Rows - 1) * previewCellSize
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	l := normalize3(lightDir)
	for i := 0; i < mesh.Rows-1; i++ {
		for j := 0; j < mesh.Cols-1; j++ {
			idx := mesh.Index(i, j)
			n := mesh.Normals[idx]
			diffuse := math.Max(0, float64(n[0])*l[0]+float64(n[1])*l[1]+float64(n[2])*l[2])
			base := resolveSurfaceColor(mesh.Surfaces[idx])
			col := applyLighting(base, previewAmbientLight+(1-previewAmbientLight)*diffuse)
			x0, y0 := j*previewCellSize, i*previewCellSize
			fillPolygon(img, []image.Point{
				{X: x0, Y: y0},
				{X: x0 + previewCellSize, Y: y0},
				{X: x0 + previewCellSize, Y: y0 + previewCellSize},
				{X: x0, Y: y0 + previewCellSize},
			}, col)
		}
	}

	props := make([]terrain.Placement, len(placements))
	copy(props, placements)
	// Coins last so they stay visible over trees.
	sort.SliceStable(props, func(a, b int) bool {
		return props[a].Kind != terrain.ObstacleCoin && props[b].Kind == terrain.ObstacleCoin
	})
	for _, p := range props {
		px, py, ok := previewPixel(mesh, p.Position.X(), p.Position.Z())
		if !ok {
			continue
		}
		col, _ := parseHexColor(propColors[p.Kind])
		fillPolygon(img, octagon(px, py, previewPropRadius), col)
	}
	return img, nil
}

// previewPixel maps world (x, z) onto the image using the row the point falls
// on; the grid follows the centreline so columns are relative per row.
func previewPixel(mesh *terrain.Mesh, x, z float64) (int, int, bool) {
	stepZ := mesh.Length / float64(mesh.Rows-1)
	fi := (mesh.Top() - z) / stepZ
	if fi < 0 || fi > float64(mesh.Rows-1) {
		return 0, 0, false
	}
	row := int(math.Min(math.Round(fi), float64(mesh.Rows-1)))
	left := float64(mesh.Positions[mesh.Index(row, 0)].X())
	right := float64(mesh.Positions[mesh.Index(row, mesh.Cols-1)].X())
	if right <= left {
		return 0, 0, false
	}
	fj := (x - left) / (right - left) * float64(mesh.Cols-1)
	if fj < 0 || fj > float64(mesh.Cols-1) {
		return 0, 0, false
	}
	return int(fj * previewCellSize), int(fi * previewCellSize), true
}

// EncodeChunkPreview writes the preview as PNG.
func EncodeChunkPreview(w io.Writer, mesh *terrain.Mesh, placements []terrain.Placement) error {
	img, err := RenderChunkPreview(mesh, placements)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

// SaveChunkPreview writes chunk_<index>.png into outputDir.
func SaveChunkPreview(index int64, mesh *terrain.Mesh, placements []terrain.Placement, outputDir string) (string, error) {
	if err := ensurePreviewDir(outputDir); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("chunk_%d.png", index))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := EncodeChunkPreview(file, mesh, placements); err != nil {
		return "", err
	}
	return path, nil
}

func resolveSurfaceColor(s terrain.SurfaceType) color.NRGBA {
	if col, ok := parseHexColor(surfaceColors[s]); ok {
		return col
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return color.NRGBA{}, false
	}
	trimmed = strings.TrimPrefix(trimmed, "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	r, ok := parseHexByte(trimmed[0:2])
	if !ok {
		return color.NRGBA{}, false
	}
	g, ok := parseHexByte(trimmed[2:4])
	if !ok {
		return color.NRGBA{}, false
	}
	b, ok := parseHexByte(trimmed[4:6])
	if !ok {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, true
}

func parseHexByte(value string) (uint8, bool) {
	if len(value) != 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(value, 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = clamp(factor, 0, 1)
	r := uint8(math.Round(float64(base.R) * factor))
	g := uint8(math.Round(float64(base.G) * factor))
	b := uint8(math.Round(float64(base.B) * factor))
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func normalize3(v [3]float64) [3]float64 {
	l := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return [3]float64{0, 1, 0}
	}
	return [3]float64{v[0] / l, v[1] / l, v[2] / l}
}

func octagon(cx, cy, r int) []image.Point {
	pts := make([]image.Point, 8)
	for i := range pts {
		a := float64(i) * math.Pi / 4
		pts[i] = image.Point{
			X: cx + int(math.Round(float64(r)*math.Cos(a))),
			Y: cy + int(math.Round(float64(r)*math.Sin(a))),
		}
	}
	return pts
}

func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	minY := pts[0].Y
	maxY := pts[0].Y
	for _, p := range pts[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	bounds := img.Bounds()
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxY > bounds.Max.Y-1 {
		maxY = bounds.Max.Y - 1
	}
	tmp := make([]int, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		tmp = tmp[:0]
		for i := range pts {
			j := (i + 1) % len(pts)
			x1, y1 := pts[i].X, pts[i].Y
			x2, y2 := pts[j].X, pts[j].Y
			if y1 == y2 {
				continue
			}
			if y < min(y1, y2) || y >= max(y1, y2) {
				continue
			}
			x := x1 + (y-y1)*(x2-x1)/(y2-y1)
			tmp = append(tmp, x)
		}
		if len(tmp) < 2 {
			continue
		}
		sort.Ints(tmp)
		for i := 0; i+1 < len(tmp); i += 2 {
			xStart := tmp[i]
			xEnd := tmp[i+1]
			if xEnd < bounds.Min.X || xStart >= bounds.Max.X {
				continue
			}
			if xStart < bounds.Min.X {
				xStart = bounds.Min.X
			}
			// Half-open on the right so neighbouring cells do not overlap.
			if xEnd > bounds.Max.X {
				xEnd = bounds.Max.X
			}
			for x := xStart; x < xEnd; x++ {
				idx := (y-bounds.Min.Y)*img.Stride + (x-bounds.Min.X)*4
				img.Pix[idx] = col.R
				img.Pix[idx+1] = col.G
				img.Pix[idx+2] = col.B
				img.Pix[idx+3] = col.A
			}
		}
	}
}

func ensurePreviewDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
