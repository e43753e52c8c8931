package mtdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotMapAssign(t *testing.T) {
	m := NewSlotMap(3)

	slot, ok := m.Assign(10)
	require.True(t, ok)
	assert.Equal(t, int32(0), slot)

	slot, ok = m.Assign(11)
	require.True(t, ok)
	assert.Equal(t, int32(1), slot)

	// A known id keeps its slot.
	slot, ok = m.Assign(10)
	require.True(t, ok)
	assert.Equal(t, int32(0), slot)

	assert.Equal(t, 2, m.Active())
	assert.Equal(t, int32(11), m.Owner(1))
	assert.Equal(t, int32(-1), m.Owner(2))
}

func TestSlotMapExhaustion(t *testing.T) {
	m := NewSlotMap(2)

	_, ok := m.Assign(1)
	require.True(t, ok)
	_, ok = m.Assign(2)
	require.True(t, ok)

	_, ok = m.Assign(3)
	assert.False(t, ok)

	m.Release(0)
	slot, ok := m.Assign(3)
	require.True(t, ok)
	assert.Equal(t, int32(0), slot)
}

func TestSlotMapReleaseOutOfRange(t *testing.T) {
	m := NewSlotMap(1)
	m.Release(-1)
	m.Release(5)
	assert.Equal(t, 0, m.Active())
}
