package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

// historyLimit bounds the order-history read; the storefront shows the
// newest orders only.
const historyLimit = 50

type Service struct {
	store    docstore.Store
	products *catalog.Service
	log      *zap.Logger
	now      func() time.Time

	shippingFee      decimal.Decimal
	freeShippingOver decimal.Decimal
}

func NewService(store docstore.Store, products *catalog.Service, shippingFee, freeShippingOver decimal.Decimal, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:            store,
		products:         products,
		log:              log,
		now:              time.Now,
		shippingFee:      shippingFee,
		freeShippingOver: freeShippingOver,
	}
}

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	UserID         string            `json:"userId"`
	Items          []ItemInput       `json:"items"`
	Address        Address           `json:"address"`
	PaymentMethod  string            `json:"paymentMethod"`
	PaymentDetails map[string]string `json:"paymentDetails,omitempty"`
}

// Create validates the payload, snapshots the referenced products, computes
// the decimal totals and writes the order with status "pending". Checkout
// trusts a reconciled cart for stock but still re-checks per-order caps.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if in.UserID == "" {
		return nil, apperr.Missing("user id")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Missing("order items")
	}
	if in.Address.FullName == "" || in.Address.Street == "" || in.Address.City == "" {
		return nil, apperr.Missing("shipping address")
	}
	if in.PaymentMethod == "" {
		return nil, apperr.Missing("payment method")
	}
	ids := make([]string, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" {
			return nil, apperr.Missing("product id")
		}
		if it.Quantity < 1 {
			return nil, apperr.Invalid("quantity for %s must be at least 1", it.ProductID)
		}
		ids[i] = it.ProductID
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	items := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, apperr.Invalid("unknown product %s", it.ProductID)
		}
		if p.PerOrderCap > 0 && it.Quantity > p.PerOrderCap {
			return nil, apperr.Invalid("quantity for %s exceeds the per-order limit of %d", p.Name, p.PerOrderCap)
		}
		effective := p.EffectivePrice().Round(2)
		lineTotal := effective.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, Item{
			ProductID:          p.ID,
			Name:               p.Name,
			ImageURL:           p.ImageURL,
			UnitPrice:          p.Price,
			Discount:           p.Discount,
			EffectiveUnitPrice: effective,
			Quantity:           it.Quantity,
			LineTotal:          lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	shipping := s.shippingFee
	if subtotal.GreaterThanOrEqual(s.freeShippingOver) {
		shipping = decimal.Zero
	}
	o := Order{
		UserID:         in.UserID,
		Items:          items,
		Address:        in.Address,
		PaymentMethod:  in.PaymentMethod,
		PaymentDetails: in.PaymentDetails,
		ShippingFee:    shipping,
		Subtotal:       subtotal,
		Total:          subtotal.Add(shipping),
		Status:         StatusPending,
		CreatedAt:      s.now().UTC(),
	}
	id, err := s.store.Create(ctx, Collection, o.fields())
	if err != nil {
		return nil, apperr.Store(err)
	}
	o.ID = id
	s.log.Info("order created",
		zap.String("order", id), zap.String("user", in.UserID), zap.String("total", o.Total.String()))
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return []Order{}, apperr.Missing("user id")
	}
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "userId", Op: docstore.OpEq, Value: userID},
		},
		Orderings: []docstore.Ordering{
			{Field: "createdAt", Desc: true},
			{Field: docstore.FieldID, Desc: true},
		},
		Limit: historyLimit,
	})
	if err != nil {
		return []Order{}, apperr.Store(err)
	}
	out := make([]Order, 0, len(docs))
	for i := range docs {
		out = append(out, decodeOrder(&docs[i]))
	}
	return out, nil
}
