package world

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"downhill/internal/config"
	"downhill/internal/physics"
	"downhill/internal/scene"
	"downhill/internal/terrain"
)

// ErrClosed is returned by Update and Regenerate after Close.
var ErrClosed = errors.New("terrain manager closed")

// RecycleEvent describes one slot moving from the trailing to the leading end
// of the pool.
type RecycleEvent struct {
	RunID      string    `json:"runId"`
	Slot       int       `json:"slot"`
	Index      int64     `json:"index"`
	FromZ      float64   `json:"fromZ"`
	ToZ        float64   `json:"toZ"`
	Generation uint64    `json:"generation"`
	Obstacles  int       `json:"obstacles"`
	Collapsed  int       `json:"collapsed"` // recycles skipped in the same update
	Duration   float64   `json:"durationMs"`
	At         time.Time `json:"at"`
}

// Stats counts pool activity and the handles currently registered with the
// scene and the physics world.
type Stats struct {
	RunID         string            `json:"runId"`
	Seed          int64             `json:"seed"`
	SlopeAngle    float64           `json:"slopeAngle"`
	Difficulty    config.Difficulty `json:"difficulty"`
	Updates       uint64            `json:"updates"`
	Recycles      uint64            `json:"recycles"`
	Collapsed     uint64            `json:"collapsed"`
	Rebuilds      uint64            `json:"rebuilds"`
	Regenerations uint64            `json:"regenerations"`
	Repairs       uint64            `json:"repairs"`
	Pending       int               `json:"pending"`
	LiveMeshes    int               `json:"liveMeshes"`
	LiveProps     int               `json:"liveProps"`
	LiveBodies    int               `json:"liveBodies"`
	LiveColliders int               `json:"liveColliders"`
}

// Manager owns a fixed ring of chunk slots that stream terrain around the
// player, and answers height and normal queries anywhere on the slope.
//
// Listeners registered with OnRecycle run on the updating goroutine while the
// pool is locked; they must not call back into the Manager.
type Manager struct {
	cfg       *config.Config
	scene     scene.Scene
	colliders *ColliderBuilder
	logger    *log.Logger

	mu        sync.RWMutex
	engine    *terrain.Engine
	slots     []*Chunk
	order     []int // slot indices from trailing (uphill) to leading (downhill)
	origin    float64
	length    float64
	wireframe bool
	runID     uuid.UUID
	stats     Stats
	listeners []func(RecycleEvent)
	closed    bool
}

// NewManager builds the pool at the spawn point using the configured seed,
// slope and difficulty.
func NewManager(cfg *config.Config, world physics.World, sc scene.Scene, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("terrain config: %w", err)
	}
	if world == nil {
		return nil, errors.New("terrain manager requires a physics world")
	}
	if sc == nil {
		return nil, errors.New("terrain manager requires a scene")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "terrain ", log.LstdFlags|log.Lmicroseconds)
	}

	n := cfg.Terrain.PoolSize
	m := &Manager{
		cfg:       cfg,
		scene:     sc,
		colliders: NewColliderBuilder(world),
		logger:    logger,
		slots:     make([]*Chunk, n),
		order:     make([]int, n),
		length:    cfg.Terrain.ChunkLength,
		origin:    cfg.Terrain.SpawnZ - cfg.Terrain.ChunkLength/2,
	}
	for i := range m.slots {
		m.slots[i] = &Chunk{Slot: i, Length: cfg.Terrain.ChunkLength}
		m.order[i] = i
	}
	params := terrain.Params{
		Seed:       cfg.Terrain.Seed,
		SlopeAngle: cfg.Terrain.SlopeAngle,
		Difficulty: cfg.Terrain.Difficulty,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.regenerateLocked(params); err != nil {
		return nil, err
	}
	return m, nil
}

// Regenerate rebuilds the whole pool from the spawn point with a new slope and
// difficulty, keeping the current seed.
func (m *Manager) Regenerate(slopeAngle float64, difficulty config.Difficulty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regenerateLocked(terrain.Params{
		Seed:       m.stats.Seed,
		SlopeAngle: slopeAngle,
		Difficulty: difficulty,
	})
}

// RegenerateWithSeed is Regenerate with a new seed.
func (m *Manager) RegenerateWithSeed(seed int64, slopeAngle float64, difficulty config.Difficulty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regenerateLocked(terrain.Params{Seed: seed, SlopeAngle: slopeAngle, Difficulty: difficulty})
}

func (m *Manager) regenerateLocked(params terrain.Params) error {
	if m.closed {
		return ErrClosed
	}
	engine, err := terrain.NewEngine(m.cfg, params)
	if err != nil {
		return fmt.Errorf("regenerate: %w", err)
	}
	start := time.Now()
	m.engine = engine
	m.runID = uuid.New()
	params = engine.Params()
	m.stats.RunID = m.runID.String()
	m.stats.Seed = params.Seed
	m.stats.SlopeAngle = params.SlopeAngle
	m.stats.Difficulty = params.Difficulty
	m.stats.Regenerations++

	for i := range m.order {
		m.order[i] = i
		m.placeLocked(m.slots[i], int64(i))
	}
	for pos, slot := range m.order {
		if err := m.rebuildLocked(m.slots[slot], int64(pos)); err != nil {
			m.logger.Printf("regenerate run %s: %v", m.runID, err)
			return fmt.Errorf("regenerate: %w", err)
		}
	}
	m.logger.Printf("regenerated run %s seed=%d slope=%.1f difficulty=%s chunks=%d in %s",
		m.runID, params.Seed, params.SlopeAngle, params.Difficulty, len(m.slots), time.Since(start).Round(time.Microsecond))
	return nil
}

func (m *Manager) centerOf(index int64) float64 {
	return m.origin - float64(index)*m.length
}

// placeLocked moves a slot to index without touching its content.
func (m *Manager) placeLocked(ch *Chunk, index int64) {
	ch.Index = index
	ch.CenterZ = m.centerOf(index)
	ch.Ready = false
}

// rebuildLocked regenerates a slot for a new chunk index: scene nodes first,
// then the collider set is swapped in one Replace call. The slot takes its
// new place even when the rebuild fails, so the pool stays contiguous.
func (m *Manager) rebuildLocked(ch *Chunk, index int64) error {
	m.placeLocked(ch, index)
	center := ch.CenterZ
	mesh := m.engine.BuildMesh(center)
	placements := m.engine.PlaceChunk(center)
	label := fmt.Sprintf("chunk-%d", index)

	if err := m.removeNodesLocked(ch); err != nil {
		return err
	}

	set, err := m.colliders.Replace(ch.Colliders, label, mesh, placements)
	ch.Colliders = set
	if err != nil {
		return fmt.Errorf("slot %d: %w", ch.Slot, err)
	}

	ch.Mesh = mesh
	ch.Wireframe = m.wireframe
	ch.Obstacles = make([]Obstacle, len(placements))
	for i, p := range placements {
		ch.Obstacles[i] = Obstacle{
			Placement: p,
			Collider:  set.Obstacles[i],
			Layer:     LayerFor(p.Kind),
		}
	}

	node, err := m.scene.Add(scene.Object{Label: label, Mesh: mesh})
	if err != nil {
		return fmt.Errorf("slot %d: add mesh: %w", ch.Slot, err)
	}
	ch.MeshNode = node
	for i := range ch.Obstacles {
		o := &ch.Obstacles[i]
		node, err := m.scene.Add(scene.Object{Label: fmt.Sprintf("%s/%s/%d", label, o.Kind, i), Prop: &o.Placement})
		if err != nil {
			return fmt.Errorf("slot %d: add prop: %w", ch.Slot, err)
		}
		o.Node = node
	}
	ch.Generation++
	ch.Ready = true
	m.stats.Rebuilds++
	return nil
}

// repairLocked rebuilds slots left stale by an earlier failed update, in
// place, before the pool moves on.
func (m *Manager) repairLocked() error {
	for _, slot := range m.order {
		ch := m.slots[slot]
		if ch.Ready {
			continue
		}
		if err := m.rebuildLocked(ch, ch.Index); err != nil {
			return fmt.Errorf("repair slot %d at chunk %d: %w", slot, ch.Index, err)
		}
		m.stats.Repairs++
		m.logger.Printf("repaired slot %d at chunk %d in run %s", slot, ch.Index, m.runID)
	}
	return nil
}

func (m *Manager) removeNodesLocked(ch *Chunk) error {
	for i := range ch.Obstacles {
		o := &ch.Obstacles[i]
		if o.Node == 0 {
			continue
		}
		if err := m.scene.Remove(o.Node); err != nil {
			return fmt.Errorf("slot %d: remove prop: %w", ch.Slot, err)
		}
		o.Node = 0
	}
	if ch.MeshNode != 0 {
		if err := m.scene.Remove(ch.MeshNode); err != nil {
			return fmt.Errorf("slot %d: remove mesh: %w", ch.Slot, err)
		}
		ch.MeshNode = 0
	}
	return nil
}

// Update recycles trailing chunks until the player is no further than one
// chunk length past the trailing chunk's centre. A jump of k chunks performs
// k recycles; when k exceeds the pool size the first k-N are only counted,
// since their geometry would be replaced again within the same call.
//
// A failed rebuild still advances the pool; the slot stays pending and is
// rebuilt at the start of the next Update.
func (m *Manager) Update(position mgl64.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.stats.Updates++
	z := position.Z()
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return nil
	}
	if err := m.repairLocked(); err != nil {
		m.logger.Printf("repair failed in run %s: %v", m.runID, err)
		return err
	}

	k := m.recyclesNeededLocked(z)
	if k == 0 {
		return nil
	}
	n := int64(len(m.slots))
	collapsed := int64(0)
	if k > n {
		collapsed = k - n
		trailing := m.slots[m.order[0]].Index
		rotate(m.order, int(collapsed%n))
		for pos, slot := range m.order {
			m.placeLocked(m.slots[slot], trailing+collapsed+int64(pos))
		}
		m.stats.Recycles += uint64(collapsed)
		m.stats.Collapsed += uint64(collapsed)
	}
	for i := int64(0); i < k-collapsed; i++ {
		if err := m.recycleLocked(int(collapsed)); err != nil {
			m.logger.Printf("recycle failed in run %s: %v", m.runID, err)
			return err
		}
	}
	return nil
}

// maxRecycleSpan bounds the recycle count computed for absurd positions.
const maxRecycleSpan = 1e12

func (m *Manager) recyclesNeededLocked(z float64) int64 {
	trailing := m.slots[m.order[0]].Index
	past := func(i int64) bool {
		return z < m.centerOf(trailing+i)-m.length
	}
	f := math.Ceil((m.origin-z)/m.length) - float64(trailing) - 1
	if f <= 0 {
		f = 0
	}
	if f > maxRecycleSpan {
		f = maxRecycleSpan
	}
	k := int64(f)
	// Correct for rounding in the estimate.
	for i := 0; i < 4 && k > 0 && !past(k-1); i++ {
		k--
	}
	for i := 0; i < 4 && past(k); i++ {
		k++
	}
	return k
}

func (m *Manager) recycleLocked(collapsed int) error {
	slot := m.order[0]
	ch := m.slots[slot]
	from := ch.CenterZ
	next := m.leadingLocked().Index + 1
	start := time.Now()
	err := m.rebuildLocked(ch, next)
	rotate(m.order, 1)
	if err != nil {
		return fmt.Errorf("recycle slot %d to chunk %d: %w", slot, next, err)
	}
	m.stats.Recycles++

	event := RecycleEvent{
		RunID:      m.stats.RunID,
		Slot:       slot,
		Index:      ch.Index,
		FromZ:      from,
		ToZ:        ch.CenterZ,
		Generation: ch.Generation,
		Obstacles:  len(ch.Obstacles),
		Collapsed:  collapsed,
		Duration:   float64(time.Since(start).Microseconds()) / 1000,
		At:         time.Now().UTC(),
	}
	for _, fn := range m.listeners {
		fn(event)
	}
	return nil
}

// rotate shifts s left by k in place.
func rotate(s []int, k int) {
	if len(s) == 0 {
		return
	}
	k %= len(s)
	if k == 0 {
		return
	}
	head := append([]int(nil), s[:k]...)
	copy(s, s[k:])
	copy(s[len(s)-k:], head)
}

func (m *Manager) leadingLocked() *Chunk {
	return m.slots[m.order[len(m.order)-1]]
}

// OnRecycle registers fn to be called after every recycle.
func (m *Manager) OnRecycle(fn func(RecycleEvent)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// TerrainHeight is valid for any (x, z), resident or not.
func (m *Manager) TerrainHeight(x, z float64) float64 {
	return m.Engine().Height(x, z)
}

// CenterPoint is the surface point on the centreline at z.
func (m *Manager) CenterPoint(z float64) mgl64.Vec3 {
	return m.Engine().CenterPoint(z)
}

// SurfaceNormal approximates the unit normal from heights at x±d and z±d.
// A non-positive d uses the configured probe distance.
func (m *Manager) SurfaceNormal(x, z, d float64) mgl64.Vec3 {
	return m.Engine().Normal(x, z, d)
}

// PointAtOffset returns the centreline point steps spawn-steps downhill of
// the spawn origin.
func (m *Manager) PointAtOffset(steps int) mgl64.Vec3 {
	return m.Engine().PointAtOffset(steps)
}

func (m *Manager) Classify(x, z float64) terrain.SurfaceType {
	return m.Engine().Classify(x, z)
}

func (m *Manager) Sample(x, z float64) terrain.SpineSample {
	return m.Engine().Sample(x, z)
}

// Engine returns the generator of the current run. It is immutable and stays
// valid after a later Regenerate, describing the old run.
func (m *Manager) Engine() *terrain.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine
}

func (m *Manager) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.RunID
}

// SetWireframe is a debug toggle; it only affects rendering.
func (m *Manager) SetWireframe(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setWireframeLocked(enabled)
}

// ToggleWireframe flips the debug wireframe and returns the new state.
func (m *Manager) ToggleWireframe() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setWireframeLocked(!m.wireframe)
	return m.wireframe
}

func (m *Manager) setWireframeLocked(enabled bool) {
	m.wireframe = enabled
	for _, ch := range m.slots {
		ch.Wireframe = enabled
	}
	m.scene.SetWireframe(enabled)
}

func (m *Manager) Wireframe() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wireframe
}

// Chunks summarises the pool from trailing to leading.
func (m *Manager) Chunks() []ChunkInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChunkInfo, 0, len(m.order))
	for _, slot := range m.order {
		out = append(out, m.slots[slot].info())
	}
	return out
}

// ChunkGeometry returns the mesh and placements currently held by a slot.
// The mesh is never mutated after it is built.
func (m *Manager) ChunkGeometry(slot int) (*terrain.Mesh, []terrain.Placement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot < 0 || slot >= len(m.slots) || m.slots[slot].Mesh == nil {
		return nil, nil, false
	}
	ch := m.slots[slot]
	return ch.Mesh, ch.placements(), true
}

// ChunkAt returns the summary of the resident chunk containing z.
func (m *Manager) ChunkAt(z float64) (ChunkInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, slot := range m.order {
		if ch := m.slots[slot]; ch.Contains(z) {
			return ch.info(), true
		}
	}
	return ChunkInfo{}, false
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.stats
	for _, ch := range m.slots {
		if !ch.Ready {
			st.Pending++
		}
		if ch.MeshNode != 0 {
			st.LiveMeshes++
		}
		for _, o := range ch.Obstacles {
			if o.Node != 0 {
				st.LiveProps++
			}
		}
		if ch.Colliders.Live() {
			st.LiveBodies++
		}
		st.LiveColliders += ch.Colliders.Count()
	}
	return st
}

// Close removes every scene node and collider the pool holds.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, ch := range m.slots {
		if err := m.removeNodesLocked(ch); err != nil {
			errs = append(errs, err)
		}
		if err := m.colliders.Remove(ch.Colliders); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", ch.Slot, err))
		} else {
			ch.Colliders = ColliderSet{}
		}
		ch.Obstacles = nil
		ch.Mesh = nil
	}
	err := errors.Join(errs...)
	if err != nil {
		m.logger.Printf("close run %s: %v", m.runID, err)
	}
	return err
}
