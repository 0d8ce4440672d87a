package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/cart"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/docstore"
	"github.com/storeforge/catalog-engine/internal/order"
	"github.com/storeforge/catalog-engine/internal/review"
)

func newTestServer(t *testing.T) (*gin.Engine, *docstore.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := docstore.NewMemoryStore()
	log := zap.NewNop()
	catalogSvc := catalog.NewService(store, nil, log)
	srv := &server{
		catalog: catalogSvc,
		reviews: review.NewService(store, log),
		carts:   cart.NewService(store, catalogSvc, log),
		orders:  order.NewService(store, catalogSvc, decimal.NewFromFloat(4.99), decimal.NewFromInt(50), log),
		log:     log,
	}
	return newRouter(srv), store
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedProducts(t *testing.T, store *docstore.MemoryStore, n int) {
	t.Helper()
	svc := catalog.NewService(store, nil, nil)
	for i := 0; i < n; i++ {
		p := &catalog.Product{
			ID:    fmt.Sprintf("p%02d", i),
			Name:  fmt.Sprintf("P%02d", i),
			Price: decimal.NewFromInt(int64(i + 1)),
		}
		require.NoError(t, svc.Save(context.Background(), p))
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestListProductsPagesEndToEnd(t *testing.T) {
	r, store := newTestServer(t)
	seedProducts(t, store, 25)

	type pageResp struct {
		Items      []catalog.Product `json:"items"`
		NextCursor string            `json:"nextCursor"`
		HasMore    bool              `json:"hasMore"`
	}
	var (
		sizes  []int
		seen   = map[string]bool{}
		cursor string
	)
	for {
		path := "/products?pageSize=10&sort=name"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		w := doJSON(t, r, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var page pageResp
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		sizes = append(sizes, len(page.Items))
		for _, p := range page.Items {
			assert.False(t, seen[p.ID])
			seen[p.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
}

func TestGetProductNotFound(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/products/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestSearchEndpoint(t *testing.T) {
	r, store := newTestServer(t)
	svc := catalog.NewService(store, nil, nil)
	p := &catalog.Product{Name: "Espresso Machine", Price: decimal.NewFromInt(120)}
	require.NoError(t, svc.Save(context.Background(), p))

	w := doJSON(t, r, http.MethodGet, "/search?q=machine", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Espresso Machine")

	w = doJSON(t, r, http.MethodGet, "/search?q=", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestAddReviewConflict(t *testing.T) {
	r, store := newTestServer(t)
	seedProducts(t, store, 1)

	body := map[string]any{"rating": 4, "comment": "nice", "displayName": "Ana"}
	w := doJSON(t, r, http.MethodPost, "/products/p00/reviews", "u1", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/products/p00/reviews", "u1", body)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "existing")
}

func TestReviewOwnershipOverHTTP(t *testing.T) {
	r, store := newTestServer(t)
	seedProducts(t, store, 1)

	w := doJSON(t, r, http.MethodPost, "/products/p00/reviews", "owner",
		map[string]any{"rating": 5, "comment": "mine"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created review.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodDelete, "/reviews/"+created.ID, "intruder", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/reviews/"+created.ID, "owner", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCartIncrementLimit(t *testing.T) {
	r, store := newTestServer(t)
	require.NoError(t, store.Insert(context.Background(), catalog.Collection, "p1", map[string]any{
		"name": "Scarce", "nameLower": "scarce", "price": 9.0, "stockQuantity": 2.0,
	}))

	for i := 1; i <= 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/cart/items/p1/increment", "u1", map[string]any{"delta": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := doJSON(t, r, http.MethodPost, "/cart/items/p1/increment", "u1", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "stock-limit")
}

func TestGetCartReconciles(t *testing.T) {
	r, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, catalog.Collection, "p1", map[string]any{
		"name": "Limited", "nameLower": "limited", "price": 9.0, "stockQuantity": 4.0,
	}))
	require.NoError(t, store.Insert(ctx, cart.Collection, "u1:p1", map[string]any{
		"userId": "u1", "productId": "p1", "quantity": 10.0,
	}))

	w := doJSON(t, r, http.MethodGet, "/cart", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []cart.Line `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 4, resp.Items[0].Quantity)
	assert.True(t, resp.Items[0].Adjusted)
}

func TestCreateOrderEndToEnd(t *testing.T) {
	r, store := newTestServer(t)
	seedProducts(t, store, 2)

	w := doJSON(t, r, http.MethodPost, "/orders", "u1", map[string]any{
		"items": []map[string]any{{"productId": "p00", "quantity": 1}},
		"address": map[string]any{
			"fullName": "Ana Torres", "street": "Calle 9", "city": "Medellin",
		},
		"paymentMethod": "card",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)

	w = doJSON(t, r, http.MethodGet, "/orders", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.OrderID)

	w = doJSON(t, r, http.MethodPost, "/orders", "u1", map[string]any{
		"items": []map[string]any{}, "paymentMethod": "card",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
