package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

const hashCellSize = 4.0

type cellKey struct {
	x, z int
}

type triangle struct {
	a, b, c mgl64.Vec3
}

type memoryBody struct {
	desc      BodyDesc
	colliders map[ColliderHandle]struct{}
}

type memoryCollider struct {
	desc      ColliderDesc
	body      BodyHandle
	origin    mgl64.Vec3
	triangles []triangle
	cells     []cellKey
}

// Counts reports the live objects held by a MemoryWorld.
type Counts struct {
	Bodies    int
	Colliders int
	Triangles int
}

// MemoryWorld is an in-process World that only stores geometry and answers
// static queries. It backs tests and the headless host.
type MemoryWorld struct {
	mu        sync.RWMutex
	disposed  bool
	next      uint64
	bodies    map[BodyHandle]*memoryBody
	colliders map[ColliderHandle]*memoryCollider
	grid      map[cellKey][]ColliderHandle
	triangles int
}

func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{
		bodies:    make(map[BodyHandle]*memoryBody),
		colliders: make(map[ColliderHandle]*memoryCollider),
		grid:      make(map[cellKey][]ColliderHandle),
	}
}

func (w *MemoryWorld) CreateBody(desc BodyDesc) (BodyHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return 0, ErrDisposed
	}
	w.next++
	h := BodyHandle(w.next)
	w.bodies[h] = &memoryBody{desc: desc, colliders: make(map[ColliderHandle]struct{})}
	return h, nil
}

func (w *MemoryWorld) CreateCollider(desc ColliderDesc, parent BodyHandle) (ColliderHandle, error) {
	if desc.Shape == nil {
		return 0, fmt.Errorf("%w: nil shape", ErrInvalidShape)
	}
	if err := desc.Shape.validate(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return 0, ErrDisposed
	}
	body, ok := w.bodies[parent]
	if !ok {
		return 0, fmt.Errorf("%w: body %d", ErrUnknownHandle, parent)
	}
	w.next++
	h := ColliderHandle(w.next)
	c := &memoryCollider{
		desc:   desc,
		body:   parent,
		origin: body.desc.Translation.Add(desc.Translation),
	}
	if mesh, ok := desc.Shape.(TriMesh); ok {
		c.triangles = make([]triangle, len(mesh.Indices))
		seen := make(map[cellKey]struct{})
		for i, idx := range mesh.Indices {
			tri := triangle{
				a: mesh.Vertices[idx[0]].Add(c.origin),
				b: mesh.Vertices[idx[1]].Add(c.origin),
				c: mesh.Vertices[idx[2]].Add(c.origin),
			}
			c.triangles[i] = tri
			lo, hi := tri.cellBounds()
			for x := lo.x; x <= hi.x; x++ {
				for z := lo.z; z <= hi.z; z++ {
					seen[cellKey{x, z}] = struct{}{}
				}
			}
		}
		for key := range seen {
			c.cells = append(c.cells, key)
			w.grid[key] = append(w.grid[key], h)
		}
		w.triangles += len(c.triangles)
	}
	w.colliders[h] = c
	body.colliders[h] = struct{}{}
	return h, nil
}

func (w *MemoryWorld) RemoveCollider(h ColliderHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return ErrDisposed
	}
	return w.removeColliderLocked(h)
}

func (w *MemoryWorld) removeColliderLocked(h ColliderHandle) error {
	c, ok := w.colliders[h]
	if !ok {
		return fmt.Errorf("%w: collider %d", ErrUnknownHandle, h)
	}
	for _, key := range c.cells {
		list := w.grid[key]
		for i, other := range list {
			if other == h {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(w.grid, key)
		} else {
			w.grid[key] = list
		}
	}
	w.triangles -= len(c.triangles)
	if body, ok := w.bodies[c.body]; ok {
		delete(body.colliders, h)
	}
	delete(w.colliders, h)
	return nil
}

func (w *MemoryWorld) RemoveBody(h BodyHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return ErrDisposed
	}
	body, ok := w.bodies[h]
	if !ok {
		return fmt.Errorf("%w: body %d", ErrUnknownHandle, h)
	}
	for ch := range body.colliders {
		if err := w.removeColliderLocked(ch); err != nil {
			return err
		}
	}
	delete(w.bodies, h)
	return nil
}

// Dispose tears the world down. Every later call fails with ErrDisposed.
func (w *MemoryWorld) Dispose() {
	w.mu.Lock()
	w.disposed = true
	w.bodies = make(map[BodyHandle]*memoryBody)
	w.colliders = make(map[ColliderHandle]*memoryCollider)
	w.grid = make(map[cellKey][]ColliderHandle)
	w.triangles = 0
	w.mu.Unlock()
}

func (w *MemoryWorld) Counts() Counts {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Counts{Bodies: len(w.bodies), Colliders: len(w.colliders), Triangles: w.triangles}
}

// Label returns the label of a live collider.
func (w *MemoryWorld) Label(h ColliderHandle) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.colliders[h]
	if !ok {
		return "", false
	}
	return c.desc.Label, true
}

// GroundHeight casts a vertical ray at (x, z) against every triangle mesh whose
// groups interact with probe and returns the highest hit.
func (w *MemoryWorld) GroundHeight(x, z float64, probe InteractionGroups) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.groundHeightLocked(x, z, probe)
}

func (w *MemoryWorld) groundHeightLocked(x, z float64, probe InteractionGroups) (float64, bool) {
	best := math.Inf(-1)
	found := false
	for _, h := range w.grid[cellOf(x, z)] {
		c := w.colliders[h]
		if c.desc.Sensor || !c.desc.Groups.Interacts(probe) {
			continue
		}
		for _, tri := range c.triangles {
			if y, ok := tri.heightAt(x, z); ok && y > best {
				best = y
				found = true
			}
		}
	}
	return best, found
}

// CapsulePenetration returns the deepest overlap between an upright capsule
// centred at center and any non-sensor collider it interacts with. Zero means
// the capsule is free.
func (w *MemoryWorld) CapsulePenetration(center mgl64.Vec3, halfHeight, radius float64, probe InteractionGroups) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	bottom := center.Sub(mgl64.Vec3{0, halfHeight, 0})
	top := center.Add(mgl64.Vec3{0, halfHeight, 0})
	deepest := 0.0

	// Below the ground counts as buried, however far from any triangle.
	if ground, ok := w.groundHeightLocked(center.X(), center.Z(), probe); ok {
		if d := ground - (bottom.Y() - radius); d > deepest {
			deepest = d
		}
	}

	reach := radius + hashCellSize
	lo := cellOf(center.X()-reach, center.Z()-reach)
	hi := cellOf(center.X()+reach, center.Z()+reach)
	checked := make(map[ColliderHandle]struct{})
	for x := lo.x; x <= hi.x; x++ {
		for z := lo.z; z <= hi.z; z++ {
			for _, h := range w.grid[cellKey{x, z}] {
				if _, done := checked[h]; done {
					continue
				}
				checked[h] = struct{}{}
				c := w.colliders[h]
				if c.desc.Sensor || !c.desc.Groups.Interacts(probe) {
					continue
				}
				for _, tri := range c.triangles {
					if d := radius - tri.distanceToSegment(bottom, top); d > deepest {
						deepest = d
					}
				}
			}
		}
	}

	for _, c := range w.colliders {
		if c.desc.Sensor || !c.desc.Groups.Interacts(probe) {
			continue
		}
		var d float64
		switch s := c.desc.Shape.(type) {
		case Ball:
			d = radius + s.Radius - pointSegmentDistance(c.origin, bottom, top)
		case Capsule:
			ob := c.origin.Sub(mgl64.Vec3{0, s.HalfHeight, 0})
			ot := c.origin.Add(mgl64.Vec3{0, s.HalfHeight, 0})
			d = radius + s.Radius - verticalSegmentDistance(bottom, top, ob, ot)
		default:
			continue
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest
}

func cellOf(x, z float64) cellKey {
	return cellKey{int(math.Floor(x / hashCellSize)), int(math.Floor(z / hashCellSize))}
}

func (t triangle) cellBounds() (cellKey, cellKey) {
	minX := math.Min(t.a.X(), math.Min(t.b.X(), t.c.X()))
	maxX := math.Max(t.a.X(), math.Max(t.b.X(), t.c.X()))
	minZ := math.Min(t.a.Z(), math.Min(t.b.Z(), t.c.Z()))
	maxZ := math.Max(t.a.Z(), math.Max(t.b.Z(), t.c.Z()))
	return cellOf(minX, minZ), cellOf(maxX, maxZ)
}

// heightAt intersects the vertical line through (x, z) with the triangle.
func (t triangle) heightAt(x, z float64) (float64, bool) {
	d := (t.b.Z()-t.c.Z())*(t.a.X()-t.c.X()) + (t.c.X()-t.b.X())*(t.a.Z()-t.c.Z())
	if d == 0 {
		return 0, false
	}
	l1 := ((t.b.Z()-t.c.Z())*(x-t.c.X()) + (t.c.X()-t.b.X())*(z-t.c.Z())) / d
	l2 := ((t.c.Z()-t.a.Z())*(x-t.c.X()) + (t.a.X()-t.c.X())*(z-t.c.Z())) / d
	l3 := 1 - l1 - l2
	const eps = -1e-9
	if l1 < eps || l2 < eps || l3 < eps {
		return 0, false
	}
	return l1*t.a.Y() + l2*t.b.Y() + l3*t.c.Y(), true
}

// closestPoint returns the point of the triangle nearest p (Ericson, Real-Time
// Collision Detection, 5.1.5).
func (t triangle) closestPoint(p mgl64.Vec3) mgl64.Vec3 {
	a, b, c := t.a, t.b, t.c
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

const segmentSamples = 16

// distanceToSegment samples the segment; exact enough for contact checks at
// terrain scale.
func (t triangle) distanceToSegment(p0, p1 mgl64.Vec3) float64 {
	best := math.Inf(1)
	for i := 0; i <= segmentSamples; i++ {
		p := p0.Add(p1.Sub(p0).Mul(float64(i) / segmentSamples))
		if d := p.Sub(t.closestPoint(p)).Len(); d < best {
			best = d
		}
	}
	return best
}

func pointSegmentDistance(p, a, b mgl64.Vec3) float64 {
	ab := b.Sub(a)
	l := ab.Dot(ab)
	if l == 0 {
		return p.Sub(a).Len()
	}
	s := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l))
	return p.Sub(a.Add(ab.Mul(s))).Len()
}

// verticalSegmentDistance is the distance between two segments parallel to Y.
func verticalSegmentDistance(a0, a1, b0, b1 mgl64.Vec3) float64 {
	dx := a0.X() - b0.X()
	dz := a0.Z() - b0.Z()
	gap := 0.0
	if a1.Y() < b0.Y() {
		gap = b0.Y() - a1.Y()
	} else if b1.Y() < a0.Y() {
		gap = a0.Y() - b1.Y()
	}
	return math.Sqrt(dx*dx + dz*dz + gap*gap)
}
