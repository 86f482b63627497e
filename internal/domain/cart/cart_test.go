package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotProductIDs(t *testing.T) {
	snap := Snapshot{Lines: []Line{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p1", Quantity: 3, SelectedOptions: Options{Size: "L"}},
	}}

	assert.Equal(t, []string{"p1", "p2"}, snap.ProductIDs())
	assert.Empty(t, Snapshot{}.ProductIDs())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snap, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	require.NoError(t, store.Set(ctx, "u1", Snapshot{Lines: []Line{{ProductID: "p1", Quantity: 2}}}))
	require.NoError(t, store.Set(ctx, "u2", Snapshot{Lines: []Line{{ProductID: "p9", Quantity: 1}}}))

	snap, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "p1", snap.Lines[0].ProductID)

	require.NoError(t, store.Clear(ctx, "u1"))

	snap, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	// Other users are untouched.
	snap, err = store.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
}
