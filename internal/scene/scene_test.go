package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/terrain"
)

func TestMemorySceneAddRemove(t *testing.T) {
	s := NewMemoryScene()
	mesh, err := s.Add(Object{Label: "chunk", Mesh: &terrain.Mesh{}})
	require.NoError(t, err)
	prop, err := s.Add(Object{Label: "rock", Prop: &terrain.Placement{Kind: terrain.ObstacleRock}})
	require.NoError(t, err)
	assert.NotEqual(t, mesh, prop)
	assert.Equal(t, 2, s.Len())

	obj, ok := s.Get(prop)
	require.True(t, ok)
	assert.Equal(t, "rock", obj.Label)

	require.NoError(t, s.Remove(mesh))
	require.ErrorIs(t, s.Remove(mesh), ErrUnknownHandle)
	assert.Equal(t, 1, s.Len())

	visited := 0
	s.Each(func(Handle, Object) bool { visited++; return true })
	assert.Equal(t, 1, visited)
}

func TestMemorySceneRejectsAmbiguousObjects(t *testing.T) {
	s := NewMemoryScene()
	_, err := s.Add(Object{Label: "empty"})
	require.Error(t, err)
	_, err = s.Add(Object{Label: "both", Mesh: &terrain.Mesh{}, Prop: &terrain.Placement{}})
	require.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestMemorySceneWireframe(t *testing.T) {
	s := NewMemoryScene()
	assert.False(t, s.Wireframe())
	s.SetWireframe(true)
	assert.True(t, s.Wireframe())
}
