package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/catalog-engine/internal/docstore"
)

func seedCatalogForSearch(t *testing.T, store *docstore.MemoryStore) {
	t.Helper()
	seedProduct(t, store, "p1", map[string]any{"name": "Espresso Machine", "price": 120.0})
	seedProduct(t, store, "p2", map[string]any{"name": "Coffee Grinder", "price": 45.0})
	seedProduct(t, store, "p3", map[string]any{"name": "Milk Frother", "price": 25.0})
	seedProduct(t, store, "p4", map[string]any{"name": "French Press", "price": 30.0})
}

func TestSearchEmptyKeyword(t *testing.T) {
	svc, _ := newTestService(t)
	page, err := svc.Search(context.Background(), "   ", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestSearchExactTokenHit(t *testing.T) {
	svc, store := newTestService(t)
	seedCatalogForSearch(t, store)

	// "machine" is a token of "Espresso Machine" but not its name prefix;
	// phase 1 must serve it.
	page, err := svc.Search(context.Background(), "Machine", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Espresso Machine", page.Items[0].Name)
}

func TestSearchPrefixFallback(t *testing.T) {
	svc, store := newTestService(t)
	seedCatalogForSearch(t, store)

	// "espr" indexes no token, so phase 2 matches the name prefix.
	page, err := svc.Search(context.Background(), "espr", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Espresso Machine", page.Items[0].Name)
}

func TestSearchNoMatchEitherPhase(t *testing.T) {
	svc, store := newTestService(t)
	seedCatalogForSearch(t, store)

	page, err := svc.Search(context.Background(), "zzz", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestSearchPrefixRangeIsHalfOpen(t *testing.T) {
	svc, store := newTestService(t)
	seedProduct(t, store, "p1", map[string]any{"name": "Cottage Lamp", "price": 1.0})
	seedProduct(t, store, "p2", map[string]any{"name": "Cotton Shirt", "price": 2.0})
	seedProduct(t, store, "p3", map[string]any{"name": "Couch", "price": 3.0})

	// "cot" is nobody's token; the prefix range picks up both cot* names
	// and the bound excludes "couch".
	page, err := svc.Search(context.Background(), "cot", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Cottage Lamp", page.Items[0].Name)
	assert.Equal(t, "Cotton Shirt", page.Items[1].Name)
}

func TestSearchTokenPhasePagination(t *testing.T) {
	svc, store := newTestService(t)
	for i := 0; i < 7; i++ {
		seedProduct(t, store, fmt.Sprintf("p%d", i), map[string]any{
			"name": fmt.Sprintf("Ceramic Bowl %d", i), "price": 9.0,
		})
	}
	ctx := context.Background()

	first, err := svc.Search(ctx, "ceramic", 5, "")
	require.NoError(t, err)
	require.Len(t, first.Items, 5)
	require.True(t, first.HasMore)

	second, err := svc.Search(ctx, "ceramic", 5, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.False(t, second.HasMore)

	seen := map[string]bool{}
	for _, p := range append(first.Items, second.Items...) {
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
	}
}

func TestSearchStaysInPrefixPhase(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	// Only prefix matches exist, and more than one page of them. Page two
	// arrives with a prefix cursor and must not re-run the token phase even
	// though the token phase would now return zero rows.
	for i := 0; i < 4; i++ {
		seedProduct(t, store, fmt.Sprintf("p%d", i), map[string]any{
			"name": fmt.Sprintf("Lamphouse %d", i), "price": 10.0,
		})
	}
	first, err := svc.Search(ctx, "lamp", 3, "")
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.True(t, first.HasMore)

	second, err := svc.Search(ctx, "lamp", 3, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Lamphouse 3", second.Items[0].Name)
}

func TestSearchCursorBoundToKeyword(t *testing.T) {
	svc, store := newTestService(t)
	seedCatalogForSearch(t, store)
	ctx := context.Background()

	page, err := svc.Search(ctx, "coffee", 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, page.NextCursor)

	_, err = svc.Search(ctx, "milk", 1, page.NextCursor)
	assert.Error(t, err)
}

func TestSuggestNames(t *testing.T) {
	svc, store := newTestService(t)
	seedProduct(t, store, "p1", map[string]any{"name": "Candle", "price": 4.0})
	seedProduct(t, store, "p2", map[string]any{"name": "Canvas Bag", "price": 14.0})
	seedProduct(t, store, "p3", map[string]any{"name": "Kettle", "price": 24.0})

	names, err := svc.SuggestNames(context.Background(), "can", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Candle", "Canvas Bag"}, names)

	names, err = svc.SuggestNames(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSuggestNamesClampsOversizeLimit(t *testing.T) {
	svc, store := newTestService(t)
	for i := 0; i < 22; i++ {
		seedProduct(t, store, fmt.Sprintf("p%02d", i), map[string]any{
			"name": fmt.Sprintf("Canister %02d", i), "price": 1.0,
		})
	}

	// An oversize limit clamps to the maximum, it does not collapse to the
	// default.
	names, err := svc.SuggestNames(context.Background(), "can", 25)
	require.NoError(t, err)
	assert.Len(t, names, 20)
}
