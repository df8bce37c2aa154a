// Package physics describes the collision world the terrain registers its
// geometry with. The world itself (stepping, dynamics) is owned elsewhere;
// the terrain only creates and removes fixed bodies and their colliders.
package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrDisposed is returned by every call on a world that has been torn down.
	ErrDisposed = errors.New("physics: world disposed")
	// ErrUnknownHandle is returned when removing a body or collider that is not live.
	ErrUnknownHandle = errors.New("physics: unknown handle")
	// ErrInvalidShape rejects degenerate collider shapes.
	ErrInvalidShape = errors.New("physics: invalid shape")
)

type BodyHandle uint64

type ColliderHandle uint64

// Group is a bitmask of collision layers.
type Group uint32

const (
	LayerWorld Group = 1 << iota
	LayerPlayer
	LayerObstacle
	LayerCollectible
)

const LayerAll Group = LayerWorld | LayerPlayer | LayerObstacle | LayerCollectible

var layerNames = []struct {
	g    Group
	name string
}{
	{LayerWorld, "world"},
	{LayerPlayer, "player"},
	{LayerObstacle, "obstacle"},
	{LayerCollectible, "collectible"},
}

func (g Group) String() string {
	out := ""
	for _, l := range layerNames {
		if g&l.g == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += l.name
	}
	if out == "" {
		return fmt.Sprintf("group(%#x)", uint32(g))
	}
	return out
}

// InteractionGroups pairs the layers a collider belongs to with the layers it
// may touch. Two colliders interact only when each one's membership is in the
// other's filter.
type InteractionGroups struct {
	Membership Group
	Filter     Group
}

func (a InteractionGroups) Interacts(b InteractionGroups) bool {
	return a.Membership&b.Filter != 0 && b.Membership&a.Filter != 0
}

type BodyKind uint8

const (
	BodyFixed BodyKind = iota
	BodyKinematic
	BodyDynamic
)

type BodyDesc struct {
	Kind        BodyKind
	Translation mgl64.Vec3
	Label       string
}

// Shape is one of TriMesh, Ball or Capsule.
type Shape interface {
	validate() error
}

// TriMesh is a static triangle soup in the collider's local frame.
type TriMesh struct {
	Vertices []mgl64.Vec3
	Indices  [][3]uint32
}

func (t TriMesh) validate() error {
	if len(t.Indices) == 0 {
		return fmt.Errorf("%w: trimesh without triangles", ErrInvalidShape)
	}
	for i, tri := range t.Indices {
		for _, v := range tri {
			if int(v) >= len(t.Vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidShape, i, v, len(t.Vertices))
			}
		}
	}
	return nil
}

type Ball struct {
	Radius float64
}

func (b Ball) validate() error {
	if !(b.Radius > 0) {
		return fmt.Errorf("%w: ball radius %v", ErrInvalidShape, b.Radius)
	}
	return nil
}

// Capsule is upright (along +Y) in the collider's local frame.
type Capsule struct {
	HalfHeight float64
	Radius     float64
}

func (c Capsule) validate() error {
	if !(c.Radius > 0) || c.HalfHeight < 0 {
		return fmt.Errorf("%w: capsule radius %v half height %v", ErrInvalidShape, c.Radius, c.HalfHeight)
	}
	return nil
}

type ColliderDesc struct {
	Shape       Shape
	Translation mgl64.Vec3 // relative to the parent body
	Groups      InteractionGroups
	Sensor      bool
	Label       string
}

// World is the subset of a physics engine the terrain needs.
type World interface {
	CreateBody(desc BodyDesc) (BodyHandle, error)
	CreateCollider(desc ColliderDesc, parent BodyHandle) (ColliderHandle, error)
	RemoveCollider(h ColliderHandle) error
	// RemoveBody also removes any colliders still attached to the body.
	RemoveBody(h BodyHandle) error
}
