// Package scene is the render-side collaborator of the terrain: it receives
// chunk meshes and obstacle props and hands back opaque handles.
package scene

import (
	"errors"
	"fmt"
	"sync"

	"downhill/internal/terrain"
)

var ErrUnknownHandle = errors.New("scene: unknown handle")

type Handle uint64

// Object is either a terrain mesh or a single prop.
type Object struct {
	Label string
	Mesh  *terrain.Mesh
	Prop  *terrain.Placement
}

func (o Object) validate() error {
	if (o.Mesh == nil) == (o.Prop == nil) {
		return fmt.Errorf("scene: object %q must carry exactly one of mesh or prop", o.Label)
	}
	return nil
}

// Scene adds and removes renderable objects.
type Scene interface {
	Add(obj Object) (Handle, error)
	Remove(h Handle) error
	SetWireframe(enabled bool)
}

// MemoryScene keeps objects in a map. It is safe for concurrent use so a
// renderer may read while the terrain updates.
type MemoryScene struct {
	mu        sync.RWMutex
	next      uint64
	objects   map[Handle]Object
	wireframe bool
}

func NewMemoryScene() *MemoryScene {
	return &MemoryScene{objects: make(map[Handle]Object)}
}

func (s *MemoryScene) Add(obj Object) (Handle, error) {
	if err := obj.validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := Handle(s.next)
	s.objects[h] = obj
	return h, nil
}

func (s *MemoryScene) Remove(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(s.objects, h)
	return nil
}

func (s *MemoryScene) SetWireframe(enabled bool) {
	s.mu.Lock()
	s.wireframe = enabled
	s.mu.Unlock()
}

func (s *MemoryScene) Wireframe() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wireframe
}

func (s *MemoryScene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Get returns the object behind h.
func (s *MemoryScene) Get(h Handle) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[h]
	return obj, ok
}

// Each visits objects until fn returns false. Order is unspecified.
func (s *MemoryScene) Each(fn func(h Handle, obj Object) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for h, obj := range s.objects {
		if !fn(h, obj) {
			return
		}
	}
}
