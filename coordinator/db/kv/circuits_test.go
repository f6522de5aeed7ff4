package kv

import (
	"context"
	"testing"

	"github.com/cryptocole01/p0tion/coordinator/db/iface"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
)

func TestStore_CircuitsOrderedBySequencePosition(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, c := range []*types.Circuit{
		{ID: "c", Prefix: "mul3", SequencePosition: 2},
		{ID: "a", Prefix: "mul1", SequencePosition: 0},
		{ID: "b", Prefix: "mul2", SequencePosition: 1},
	} {
		require.NoError(t, s.SaveCircuit(ctx, "cer", c))
	}

	circuits, err := s.Circuits(ctx, "cer")
	require.NoError(t, err)
	require.Equal(t, 3, len(circuits))
	assert.Equal(t, "mul1", circuits[0].Prefix)
	assert.Equal(t, "mul2", circuits[1].Prefix)
	assert.Equal(t, "mul3", circuits[2].Prefix)
}

func TestStore_CircuitBySequencePosition(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCircuit(ctx, "cer", &types.Circuit{ID: "a", Prefix: "mul1", SequencePosition: 0}))
	require.NoError(t, s.SaveCircuit(ctx, "cer", &types.Circuit{ID: "b", Prefix: "mul2", SequencePosition: 1}))

	c, err := s.CircuitBySequencePosition(ctx, "cer", 1)
	require.NoError(t, err)
	assert.Equal(t, "b", c.ID)

	_, err = s.CircuitBySequencePosition(ctx, "cer", 7)
	require.ErrorIs(t, err, iface.ErrNotFound)
}

func TestStore_CircuitsOfUnknownCeremonyEmpty(t *testing.T) {
	s := setupStore(t)
	circuits, err := s.Circuits(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 0, len(circuits))
}
