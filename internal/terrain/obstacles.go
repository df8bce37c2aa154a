package terrain

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/config"
)

const (
	saltPresence = 0x7072
	saltKind     = 0x6b64
	saltJitter   = 0x6a74
	saltCoinArc  = 0x636e
)

// ObstacleKind is the variant placed in a cell.
type ObstacleKind uint8

const (
	ObstacleTreeSmall ObstacleKind = iota
	ObstacleTreeMedium
	ObstacleTreeLarge
	ObstacleRock
	ObstacleDeadTree
	ObstacleCoin
)

var obstacleNames = [...]string{
	ObstacleTreeSmall:  "tree-small",
	ObstacleTreeMedium: "tree-medium",
	ObstacleTreeLarge:  "tree-large",
	ObstacleRock:       "rock",
	ObstacleDeadTree:   "dead-tree",
	ObstacleCoin:       "coin",
}

func (k ObstacleKind) String() string {
	if int(k) < len(obstacleNames) {
		return obstacleNames[k]
	}
	return fmt.Sprintf("obstacle(%d)", k)
}

func (k ObstacleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ObstacleKind) UnmarshalText(text []byte) error {
	for i, name := range obstacleNames {
		if name == string(text) {
			*k = ObstacleKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown obstacle kind %q", text)
}

// IsTree reports whether k is collided as an upright capsule.
func (k ObstacleKind) IsTree() bool {
	return k == ObstacleTreeSmall || k == ObstacleTreeMedium || k == ObstacleTreeLarge || k == ObstacleDeadTree
}

type kindDims struct {
	radius     float64
	halfHeight float64 // capsule half-length of the cylinder part; zero for spheres
}

var obstacleDims = [...]kindDims{
	ObstacleTreeSmall:  {radius: 0.3, halfHeight: 1.8},
	ObstacleTreeMedium: {radius: 0.45, halfHeight: 3.2},
	ObstacleTreeLarge:  {radius: 0.6, halfHeight: 4.8},
	ObstacleRock:       {radius: 1.1},
	ObstacleDeadTree:   {radius: 0.25, halfHeight: 2.4},
	ObstacleCoin:       {radius: 0.5},
}

// CellKey addresses one obstacle grid cell: Z is the global along-track cell,
// X the lateral cell relative to the centreline.
type CellKey struct {
	Z int
	X int
}

// Placement is one obstacle or coin produced for a chunk.
type Placement struct {
	Kind     ObstacleKind
	Position mgl64.Vec3 // base of the obstacle on the surface; centre for coins
	Scale    float64
	Yaw      float64
	Surface  SurfaceType
	Cell     CellKey
}

// Radius is the collision radius after scaling.
func (p Placement) Radius() float64 {
	return obstacleDims[p.Kind].radius * p.Scale
}

// HalfHeight is the capsule half-length after scaling; zero for balls.
func (p Placement) HalfHeight() float64 {
	return obstacleDims[p.Kind].halfHeight * p.Scale
}

// ProbabilityTable is a surface table normalised once: presence probability
// per cell and a cumulative distribution over obstacle kinds.
type ProbabilityTable struct {
	Presence   float64
	Kinds      []ObstacleKind
	Cumulative []float64
}

type kindWeight struct {
	kind   ObstacleKind
	weight float64
}

// NewProbabilityTable normalises the relative weights of t. density scales the
// presence probability and the result is clamped to [0, 1].
func NewProbabilityTable(t config.SurfaceTable, density float64) ProbabilityTable {
	sizes := t.TreeSizes.Small + t.TreeSizes.Medium + t.TreeSizes.Large
	weights := []kindWeight{
		{ObstacleRock, t.RockProportion},
		{ObstacleDeadTree, t.DeadTreeProportion},
	}
	if sizes > 0 {
		weights = append(weights,
			kindWeight{ObstacleTreeSmall, t.TreeProportion * t.TreeSizes.Small / sizes},
			kindWeight{ObstacleTreeMedium, t.TreeProportion * t.TreeSizes.Medium / sizes},
			kindWeight{ObstacleTreeLarge, t.TreeProportion * t.TreeSizes.Large / sizes},
		)
	}

	total := 0.0
	for _, w := range weights {
		if w.weight > 0 {
			total += w.weight
		}
	}
	out := ProbabilityTable{Presence: clamp(t.Rarity*density, 0, 1)}
	if total <= 0 {
		out.Presence = 0
		return out
	}
	acc := 0.0
	for _, w := range weights {
		if w.weight <= 0 {
			continue
		}
		acc += w.weight / total
		out.Kinds = append(out.Kinds, w.kind)
		out.Cumulative = append(out.Cumulative, acc)
	}
	out.Cumulative[len(out.Cumulative)-1] = 1
	return out
}

// Pick maps u in [0, 1) onto a kind by binary search.
func (t ProbabilityTable) Pick(u float64) (ObstacleKind, bool) {
	if len(t.Kinds) == 0 {
		return 0, false
	}
	i := sort.Search(len(t.Cumulative), func(i int) bool { return t.Cumulative[i] > u })
	if i >= len(t.Kinds) {
		i = len(t.Kinds) - 1
	}
	return t.Kinds[i], true
}

// Decision is the deterministic outcome for one grid cell.
type Decision struct {
	Cell     CellKey
	Surface  SurfaceType
	Present  bool
	Kind     ObstacleKind
	Position mgl64.Vec3
	Scale    float64
	Yaw      float64
}

// ObstaclePlacer scatters obstacles over a jittered grid that follows the
// centreline, and coin arcs along the track.
type ObstaclePlacer struct {
	noise    *NoiseField
	path     *PathGenerator
	cellSize float64
	jitter   float64
	lanes    int
	tables   [4]ProbabilityTable
	coins    config.CoinConfig
}

func newObstaclePlacer(cfg config.ObstacleConfig, coins config.CoinConfig, density float64, noise *NoiseField, path *PathGenerator) *ObstaclePlacer {
	p := &ObstaclePlacer{
		noise:    noise,
		path:     path,
		cellSize: cfg.CellSize,
		jitter:   cfg.Jitter,
		coins:    coins,
	}
	p.lanes = int(math.Floor(path.HalfSpan() / cfg.CellSize))
	p.tables[SurfaceTrack] = NewProbabilityTable(cfg.Track, density)
	p.tables[SurfaceBank] = NewProbabilityTable(cfg.Bank, density)
	p.tables[SurfaceCliff] = NewProbabilityTable(cfg.Cliff, density)
	p.tables[SurfacePlateau] = NewProbabilityTable(cfg.Plateau, density)
	return p
}

// Table returns the normalised table used for surface s.
func (p *ObstaclePlacer) Table(s SurfaceType) ProbabilityTable {
	if int(s) >= len(p.tables) {
		return ProbabilityTable{}
	}
	return p.tables[s]
}

// Lanes is the number of lateral cells on each side of the centreline.
func (p *ObstaclePlacer) Lanes() int {
	return p.lanes
}

// Decide evaluates one cell. The result depends only on the seed and the cell.
func (p *ObstaclePlacer) Decide(cell CellKey) Decision {
	rng := p.noise.RNG(cell.X, cell.Z, saltJitter)
	half := p.jitter * p.cellSize / 2
	z := (float64(cell.Z)+0.5)*p.cellSize + rng.Range(-half, half)
	u := (float64(cell.X)+0.5)*p.cellSize + rng.Range(-half, half)
	scale := rng.Range(0.85, 1.2)
	yaw := rng.Range(0, 2*math.Pi)

	sp := p.path.spineAt(z)
	x := sp.centerX + u
	d := Decision{
		Cell:    cell,
		Surface: p.path.classify(u, sp.width/2),
		Scale:   scale,
		Yaw:     yaw,
	}
	table := p.tables[d.Surface]
	if p.noise.Hash01(cell.X, cell.Z, saltPresence) >= table.Presence {
		return d
	}
	kind, ok := table.Pick(p.noise.Hash01(cell.X, cell.Z, saltKind))
	if !ok {
		return d
	}
	d.Present = true
	d.Kind = kind
	d.Position = mgl64.Vec3{x, p.path.heightOn(sp, x), z}
	return d
}

// CellRange returns the along-track cells owned by the chunk spanning
// [bottom, top): those whose lower edge lies inside it.
func (p *ObstaclePlacer) CellRange(bottom, top float64) (lo, hi int) {
	lo = int(math.Ceil(bottom / p.cellSize))
	hi = int(math.Ceil(top/p.cellSize)) - 1
	return lo, hi
}

// PlaceChunk returns every obstacle and coin owned by the chunk centred at
// centerZ, ordered downhill.
func (p *ObstaclePlacer) PlaceChunk(centerZ, length float64) []Placement {
	bottom := centerZ - length/2
	top := centerZ + length/2
	lo, hi := p.CellRange(bottom, top)

	var out []Placement
	for iz := hi; iz >= lo; iz-- {
		for ix := -p.lanes; ix < p.lanes; ix++ {
			d := p.Decide(CellKey{Z: iz, X: ix})
			if !d.Present {
				continue
			}
			out = append(out, Placement{
				Kind:     d.Kind,
				Position: d.Position,
				Scale:    d.Scale,
				Yaw:      d.Yaw,
				Surface:  d.Surface,
				Cell:     d.Cell,
			})
		}
	}
	return append(out, p.coinArcs(bottom, top)...)
}

func (p *ObstaclePlacer) arcLength() float64 {
	return float64(p.coins.CoinsPerArc) * p.coins.Spacing
}

// coinArcs lays out arcs of coins along the track. Each arc owns one
// along-track cell of arcLength and belongs to the chunk holding its lower edge.
func (p *ObstaclePlacer) coinArcs(bottom, top float64) []Placement {
	if !p.coins.Enabled || p.coins.CoinsPerArc <= 0 || p.coins.Spacing <= 0 {
		return nil
	}
	arc := p.arcLength()
	lo := int(math.Ceil(bottom / arc))
	hi := int(math.Ceil(top/arc)) - 1

	var out []Placement
	for ia := hi; ia >= lo; ia-- {
		if p.noise.Hash01(ia, 0, saltCoinArc) >= p.coins.ArcChance {
			continue
		}
		side := 1.0
		if p.noise.Hash01(ia, 1, saltCoinArc) < 0.5 {
			side = -1
		}
		start := float64(ia+1) * arc
		n := p.coins.CoinsPerArc
		for k := 0; k < n; k++ {
			z := start - (float64(k)+0.5)*p.coins.Spacing
			sp := p.path.spineAt(z)
			limit := p.path.cfg.TrackFraction * sp.width / 2
			u := clamp(side*p.coins.ArcAmplitude*math.Sin(math.Pi*(float64(k)+0.5)/float64(n)), -limit, limit)
			x := sp.centerX + u
			out = append(out, Placement{
				Kind:     ObstacleCoin,
				Position: mgl64.Vec3{x, p.path.heightOn(sp, x) + p.coins.Hover, z},
				Scale:    1,
				Surface:  SurfaceTrack,
				Cell:     CellKey{Z: ia, X: k},
			})
		}
	}
	return out
}
