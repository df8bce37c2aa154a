package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"downhill/internal/physics"
	"downhill/internal/terrain"
)

var (
	GroundGroups      = physics.InteractionGroups{Membership: physics.LayerWorld, Filter: physics.LayerPlayer | physics.LayerObstacle}
	ObstacleGroups    = physics.InteractionGroups{Membership: physics.LayerObstacle, Filter: physics.LayerPlayer}
	CollectibleGroups = physics.InteractionGroups{Membership: physics.LayerCollectible, Filter: physics.LayerPlayer}
	PlayerGroups      = physics.InteractionGroups{Membership: physics.LayerPlayer, Filter: physics.LayerWorld | physics.LayerObstacle | physics.LayerCollectible}
)

// rockSink is the fraction of a rock's radius buried below the surface.
const rockSink = 0.4

// ColliderSet is every physics handle owned by one chunk slot.
type ColliderSet struct {
	Body      physics.BodyHandle
	Ground    physics.ColliderHandle
	Obstacles []physics.ColliderHandle // parallel to the chunk's placements
}

// Live reports whether the set still holds a body.
func (s ColliderSet) Live() bool {
	return s.Body != 0
}

// Count is the number of colliders in the set.
func (s ColliderSet) Count() int {
	if !s.Live() {
		return 0
	}
	n := len(s.Obstacles)
	if s.Ground != 0 {
		n++
	}
	return n
}

// ColliderBuilder turns chunk geometry and placements into fixed colliders.
type ColliderBuilder struct {
	world physics.World
}

func NewColliderBuilder(world physics.World) *ColliderBuilder {
	return &ColliderBuilder{world: world}
}

// Build registers one fixed body with a ground trimesh and a collider per
// placement. On failure everything created so far is removed again.
func (b *ColliderBuilder) Build(label string, mesh *terrain.Mesh, placements []terrain.Placement) (ColliderSet, error) {
	if mesh == nil {
		return ColliderSet{}, errors.New("collider: nil mesh")
	}
	body, err := b.world.CreateBody(physics.BodyDesc{Kind: physics.BodyFixed, Label: label})
	if err != nil {
		return ColliderSet{}, fmt.Errorf("create body %s: %w", label, err)
	}
	set := ColliderSet{Body: body}

	ground, err := b.world.CreateCollider(physics.ColliderDesc{
		Shape:  groundShape(mesh),
		Groups: GroundGroups,
		Label:  label + "/ground",
	}, body)
	if err != nil {
		return ColliderSet{}, b.rollback(set, fmt.Errorf("create ground collider %s: %w", label, err))
	}
	set.Ground = ground

	set.Obstacles = make([]physics.ColliderHandle, 0, len(placements))
	for i, p := range placements {
		h, err := b.world.CreateCollider(obstacleDesc(label, i, p), body)
		if err != nil {
			return ColliderSet{}, b.rollback(set, fmt.Errorf("create %s collider %s/%d: %w", p.Kind, label, i, err))
		}
		set.Obstacles = append(set.Obstacles, h)
	}
	return set, nil
}

// Remove unregisters every collider of the set and then its body.
func (b *ColliderBuilder) Remove(set ColliderSet) error {
	if !set.Live() {
		return nil
	}
	for _, h := range set.Obstacles {
		if err := b.world.RemoveCollider(h); err != nil {
			return fmt.Errorf("remove obstacle collider %d: %w", h, err)
		}
	}
	if set.Ground != 0 {
		if err := b.world.RemoveCollider(set.Ground); err != nil {
			return fmt.Errorf("remove ground collider %d: %w", set.Ground, err)
		}
	}
	if err := b.world.RemoveBody(set.Body); err != nil {
		return fmt.Errorf("remove body %d: %w", set.Body, err)
	}
	return nil
}

// Replace swaps old for a freshly built set in one step, so a slot never
// holds two sets at once.
func (b *ColliderBuilder) Replace(old ColliderSet, label string, mesh *terrain.Mesh, placements []terrain.Placement) (ColliderSet, error) {
	if err := b.Remove(old); err != nil {
		return old, err
	}
	return b.Build(label, mesh, placements)
}

func (b *ColliderBuilder) rollback(set ColliderSet, cause error) error {
	if err := b.Remove(set); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

func groundShape(mesh *terrain.Mesh) physics.TriMesh {
	shape := physics.TriMesh{
		Vertices: make([]mgl64.Vec3, len(mesh.Positions)),
		Indices:  make([][3]uint32, 0, len(mesh.Indices)/3),
	}
	for i, p := range mesh.Positions {
		shape.Vertices[i] = mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
	}
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		shape.Indices = append(shape.Indices, [3]uint32{mesh.Indices[i], mesh.Indices[i+1], mesh.Indices[i+2]})
	}
	return shape
}

// LayerFor is the collision layer a placement is registered on.
func LayerFor(kind terrain.ObstacleKind) physics.Group {
	if kind == terrain.ObstacleCoin {
		return physics.LayerCollectible
	}
	return physics.LayerObstacle
}

func obstacleDesc(label string, i int, p terrain.Placement) physics.ColliderDesc {
	desc := physics.ColliderDesc{
		Groups: ObstacleGroups,
		Label:  fmt.Sprintf("%s/%s/%d", label, p.Kind, i),
	}
	r := p.Radius()
	switch {
	case p.Kind == terrain.ObstacleCoin:
		desc.Shape = physics.Ball{Radius: r}
		desc.Translation = p.Position
		desc.Groups = CollectibleGroups
		desc.Sensor = true
	case p.Kind.IsTree():
		hh := p.HalfHeight()
		desc.Shape = physics.Capsule{HalfHeight: hh, Radius: r}
		desc.Translation = p.Position.Add(mgl64.Vec3{0, hh + r, 0})
	default:
		desc.Shape = physics.Ball{Radius: r}
		desc.Translation = p.Position.Add(mgl64.Vec3{0, r * (1 - rockSink), 0})
	}
	return desc
}
