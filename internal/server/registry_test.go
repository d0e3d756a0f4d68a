// ABOUTME: Tests for the receiver position registry
// ABOUTME: Checks ordering, replacement, removal and snapshot isolation
package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
)

func TestRegistryOrderedSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Set(3, propagation.Point{X: 3, Y: 0})
	r.Set(0, propagation.Point{X: 0, Y: 1})
	r.Set(7, propagation.Point{X: 7, Y: 2})

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, []int{0, 3, 7}, []int{snap[0].ID, snap[1].ID, snap[2].ID})

	// later changes do not leak into an earlier snapshot
	r.Set(0, propagation.Point{X: 9, Y: 9})
	require.Equal(t, propagation.Point{X: 0, Y: 1}, snap[0].Pos)

	pos, ok := r.Get(0)
	require.True(t, ok)
	require.Equal(t, propagation.Point{X: 9, Y: 9}, pos)
	require.Equal(t, 3, r.Len())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Set(1, propagation.Point{X: 1})
	r.Remove(1)
	r.Remove(5)

	_, ok := r.Get(1)
	require.False(t, ok)
	require.Zero(t, r.Len())
	require.Empty(t, r.Positions().Players)
}

func TestRegistryPositions(t *testing.T) {
	r := NewRegistry()
	r.Set(2, propagation.Point{X: 1.5, Y: -2})

	pos := r.Positions()
	require.Len(t, pos.Players, 1)
	require.Equal(t, 2, pos.Players[0].Index)
	require.Equal(t, 1.5, pos.Players[0].X)
	require.Equal(t, -2.0, pos.Players[0].Y)
}
