package logistics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/visibility"
)

func TestRecordID(t *testing.T) {
	id, ok := recordID(" 44444444-4444-4444-4444-444444444444 ")
	require.True(t, ok)
	assert.Equal(t, providerID, id)

	id, ok = recordID("{44444444-4444-4444-4444-444444444444}")
	require.True(t, ok)
	assert.Equal(t, providerID, id)

	for _, bad := range []string{"", "abc", "o1", "44444444-4444", "1; DROP TABLE orders"} {
		_, ok := recordID(bad)
		assert.False(t, ok, bad)
	}
}

// A malformed id never reaches the pool, so a store without one is enough.
func TestStoreMalformedIDIsNotFound(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	all := visibility.Scope{Kind: visibility.ScopeAll}

	_, err := store.GetOrder(ctx, all, "abc")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.GetServiceRequest(ctx, all, "not-a-uuid")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.GetJobOrder(ctx, all, "j1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.GetPricingRequest(ctx, all, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.GetProvider(ctx, "harbour")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, store.DeleteOrder(ctx, "abc"), shared.ErrNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, KindOrder, "abc", StatusPending, StatusAccepted), shared.ErrNotFound)
}
