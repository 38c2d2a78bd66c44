package slab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlabInsertGetRemove(t *testing.T) {
	var s Slab[string]

	k0 := s.Insert("zero")
	k1 := s.Insert("one")
	require.Equal(t, 2, s.Len())

	v, ok := s.Get(k0)
	require.True(t, ok)
	require.Equal(t, "zero", *v)

	s.Remove(k0)
	require.Equal(t, 1, s.Len())

	_, ok = s.Get(k0)
	require.False(t, ok)

	// Reinserting reuses the freed slot's key, matching the kernel's
	// tolerance for user_data reuse once a completion has been consumed.
	k2 := s.Insert("two")
	require.Equal(t, k0, k2)

	v, ok = s.Get(k1)
	require.True(t, ok)
	require.Equal(t, "one", *v)
}

func TestSlabRemoveUnknownIsNoop(t *testing.T) {
	var s Slab[int]
	s.Remove(42)
	require.Equal(t, 0, s.Len())
}

func TestSlabEach(t *testing.T) {
	var s Slab[int]
	s.Insert(10)
	s.Insert(20)
	k2 := s.Insert(30)
	s.Remove(k2)

	seen := map[int]int{}
	s.Each(func(key int, value *int) {
		seen[key] = *value
	})
	require.Len(t, seen, 2)
}
