package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListingStore runs the behaviour every ListingStore must share.
func testListingStore(t *testing.T, store ListingStore) {
	ctx := context.Background()

	t.Run("create returns pending listing with id", func(t *testing.T) {
		l, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
			Title:        "Weather MCP",
			Description:  "Forecasts",
			Price:        1.5,
			APIEndpoints: []string{"https://weather.example.com/mcp"},
			Tags:         []string{"weather"},
			Owner:        "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, StatusPending, l.Status)
		assert.Equal(t, 1.5, l.Price)
		assert.Equal(t, []string{"https://weather.example.com/mcp"}, l.APIEndpoints)
		assert.WithinDuration(t, time.Now(), l.CreatedAt, 5*time.Second)

		got, err := store.GetListing(ctx, CollectionMCPs, l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.Title, got.Title)
		assert.Equal(t, l.Owner, got.Owner)
	})

	t.Run("list is newest first and per collection", func(t *testing.T) {
		first, err := store.CreateListing(ctx, CollectionMCPList, CreateListingParams{
			Title: "first", Description: "d", Price: 0, APIEndpoints: []string{"a"},
		})
		require.NoError(t, err)
		second, err := store.CreateListing(ctx, CollectionMCPList, CreateListingParams{
			Title: "second", Description: "d", Price: 2, APIEndpoints: []string{"b"},
		})
		require.NoError(t, err)

		listings, err := store.ListListings(ctx, CollectionMCPList, ListListingsParams{})
		require.NoError(t, err)
		require.Len(t, listings, 2)
		assert.Equal(t, second.ID, listings[0].ID)
		assert.Equal(t, first.ID, listings[1].ID)
		assert.NotNil(t, listings[0].Tags)

		limited, err := store.ListListings(ctx, CollectionMCPList, ListListingsParams{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, second.ID, limited[0].ID)
	})

	t.Run("status update and filter", func(t *testing.T) {
		l, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
			Title: "Reviewed", Description: "d", Price: 3, APIEndpoints: []string{"x"},
		})
		require.NoError(t, err)

		updated, err := store.UpdateListingStatus(ctx, CollectionMCPs, l.ID, StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, updated.Status)
		assert.False(t, updated.UpdatedAt.Before(l.UpdatedAt))

		approved, err := store.ListListings(ctx, CollectionMCPs, ListListingsParams{Status: StatusApproved})
		require.NoError(t, err)
		require.Len(t, approved, 1)
		assert.Equal(t, l.ID, approved[0].ID)
	})

	t.Run("missing listing", func(t *testing.T) {
		_, err := store.GetListing(ctx, CollectionMCPs, "does-not-exist")
		assert.ErrorIs(t, err, ErrListingNotFound)

		_, err = store.UpdateListingStatus(ctx, CollectionMCPs, "does-not-exist", StatusRejected)
		assert.ErrorIs(t, err, ErrListingNotFound)

		err = store.DeleteListing(ctx, CollectionMCPs, "does-not-exist")
		assert.ErrorIs(t, err, ErrListingNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		l, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
			Title: "Doomed", Description: "d", Price: 1, APIEndpoints: []string{"x"},
		})
		require.NoError(t, err)
		require.NoError(t, store.DeleteListing(ctx, CollectionMCPs, l.ID))

		_, err = store.GetListing(ctx, CollectionMCPs, l.ID)
		assert.ErrorIs(t, err, ErrListingNotFound)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.ListListings(ctx, Collection("users; DROP TABLE mcps"), ListListingsParams{})
		assert.Error(t, err)
	})
}

func TestStore_Postgres(t *testing.T) {
	store := OpenTestStore(t)
	defer store.Truncate(t)

	testListingStore(t, store)
}

func TestStore_NormalizeOwners(t *testing.T) {
	store := OpenTestStore(t)
	defer store.Truncate(t)

	ctx := context.Background()
	lower, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
		Title: "lower", Description: "d", APIEndpoints: []string{"a"},
		Owner: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	})
	require.NoError(t, err)
	_, err = store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
		Title: "checksummed", Description: "d", APIEndpoints: []string{"a"},
		Owner: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	})
	require.NoError(t, err)
	bad, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{
		Title: "bad", Description: "d", APIEndpoints: []string{"a"},
		Owner: "not-an-address",
	})
	require.NoError(t, err)

	res, err := store.NormalizeOwners(ctx, CollectionMCPs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{bad.ID}, res.Invalid)

	got, err := store.GetListing(ctx, CollectionMCPs, lower.ID)
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got.Owner)

	res, err = store.NormalizeOwners(ctx, CollectionMCPs)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
}

func TestMemoryStore(t *testing.T) {
	testListingStore(t, NewMemoryStore())
}

func TestMemoryStore_SameInstantOrdersByInsertion(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ctx := context.Background()
	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		l, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{Title: title, APIEndpoints: []string{"x"}})
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	listings, err := store.ListListings(ctx, CollectionMCPs, ListListingsParams{Offset: 1})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, ids[1], listings[0].ID)
	assert.Equal(t, ids[0], listings[1].ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	l, err := store.CreateListing(ctx, CollectionMCPs, CreateListingParams{Title: "t", APIEndpoints: []string{"x"}})
	require.NoError(t, err)
	l.APIEndpoints[0] = "mutated"
	l.Status = StatusApproved

	got, err := store.GetListing(ctx, CollectionMCPs, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.APIEndpoints)
	assert.Equal(t, StatusPending, got.Status)
}
