package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

func newTestService(t *testing.T) (*Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	products := catalog.NewService(store, nil, nil)
	svc := NewService(store, products, decimal.NewFromFloat(4.99), decimal.NewFromInt(50), nil)
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc, store
}

func seedProduct(t *testing.T, store docstore.Store, id, name string, price float64, discount, cap int) {
	t.Helper()
	fields := map[string]any{
		"name": name, "nameLower": name, "price": price, "imageUrl": "https://img/" + id,
	}
	if discount > 0 {
		fields["discount"] = float64(discount)
	}
	if cap > 0 {
		fields["perOrderCap"] = float64(cap)
	}
	require.NoError(t, store.Insert(context.Background(), catalog.Collection, id, fields))
}

func validInput() CreateInput {
	return CreateInput{
		UserID: "u1",
		Items:  []ItemInput{{ProductID: "p1", Quantity: 2}},
		Address: Address{
			FullName: "Ana Torres", Street: "Calle 9 #14", City: "Medellin", Country: "CO",
		},
		PaymentMethod:  "card",
		PaymentDetails: map[string]string{"last4": "4242"},
	}
}

func TestCreateComputesDecimalTotals(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedProduct(t, store, "p1", "Keyboard", 199.90, 10, 0)
	seedProduct(t, store, "p2", "Mouse", 25.50, 0, 0)

	in := validInput()
	in.Items = []ItemInput{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}
	o, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 2)

	// 199.90 at 10% off -> 179.91 each; 2x = 359.82; plus 25.50 = 385.32.
	assert.Equal(t, "179.91", o.Items[0].EffectiveUnitPrice.String())
	assert.Equal(t, "359.82", o.Items[0].LineTotal.String())
	assert.Equal(t, "385.32", o.Subtotal.String())
	// Over the free-shipping threshold.
	assert.True(t, o.ShippingFee.IsZero())
	assert.Equal(t, "385.32", o.Total.String())
}

func TestCreateChargesShippingBelowThreshold(t *testing.T) {
	svc, store := newTestService(t)
	seedProduct(t, store, "p1", "Mug", 10.00, 0, 0)

	in := validInput()
	in.Items = []ItemInput{{ProductID: "p1", Quantity: 1}}
	o, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "4.99", o.ShippingFee.String())
	assert.Equal(t, "14.99", o.Total.String())
}

func TestCreateSnapshotsProducts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedProduct(t, store, "p1", "Lamp", 30.00, 0, 0)

	o, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// A later catalog edit must not change what the order says was bought.
	require.NoError(t, store.Update(ctx, catalog.Collection, "p1", map[string]any{"price": 99.0, "name": "Lamp v2"}))
	orders, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
	assert.Equal(t, "Lamp", orders[0].Items[0].Name)
	assert.Equal(t, "30", orders[0].Items[0].UnitPrice.String())
	assert.Equal(t, "Ana Torres", orders[0].Address.FullName)
	assert.Equal(t, "4242", orders[0].PaymentDetails["last4"])
}

func TestCreateValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedProduct(t, store, "p1", "Thing", 10, 0, 2)

	cases := []struct {
		name   string
		mutate func(*CreateInput)
		code   apperr.Code
	}{
		{"missing user", func(in *CreateInput) { in.UserID = "" }, apperr.CodeMissingInput},
		{"no items", func(in *CreateInput) { in.Items = nil }, apperr.CodeMissingInput},
		{"missing address", func(in *CreateInput) { in.Address.City = "" }, apperr.CodeMissingInput},
		{"missing payment", func(in *CreateInput) { in.PaymentMethod = "" }, apperr.CodeMissingInput},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = 0 }, apperr.CodeInvalidInput},
		{"unknown product", func(in *CreateInput) { in.Items[0].ProductID = "ghost" }, apperr.CodeInvalidInput},
		{"over per-order cap", func(in *CreateInput) { in.Items[0].Quantity = 3 }, apperr.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(ctx, in)
			assert.True(t, apperr.Is(err, tc.code), "got %v", err)
		})
	}

	// Nothing was persisted by the failed attempts.
	orders, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestListByUserNewestFirst(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedProduct(t, store, "p1", "Thing", 10, 0, 0)

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	orders, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	other, err := svc.ListByUser(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)
}
