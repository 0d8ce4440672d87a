package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

type Service struct {
	store    docstore.Store
	products *catalog.Service
	log      *zap.Logger
}

func NewService(store docstore.Store, products *catalog.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, products: products, log: log}
}

// Reconcile loads the user's cart, drops entries whose product no longer
// exists (reader-side only, the stored entry survives), clamps each quantity
// to max(1, min(quantity, effective max)), and persists every changed entry
// with its own write so a partial failure leaves the rest adjusted.
// Reapplying it to an already-valid cart issues zero writes.
func (s *Service) Reconcile(ctx context.Context, userID string) ([]Line, error) {
	if userID == "" {
		return []Line{}, apperr.Missing("user id")
	}
	entries, err := s.entries(ctx, userID)
	if err != nil {
		return []Line{}, err
	}
	if len(entries) == 0 {
		return []Line{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return []Line{}, err
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(entries))
	var firstWriteErr error
	for _, e := range entries {
		p, ok := byID[e.ProductID]
		if !ok {
			s.log.Debug("dropping cart entry for unknown product",
				zap.String("user", userID), zap.String("product", e.ProductID))
			continue
		}
		max := EffectiveMaxQuantity(&p)
		quantity := e.Quantity
		if quantity > max {
			quantity = max
		}
		if quantity < 1 {
			quantity = 1
		}
		if quantity != e.Quantity {
			err := s.store.Update(ctx, Collection, docID(userID, e.ProductID),
				map[string]any{"quantity": float64(quantity)})
			if err != nil {
				// Keep going: the remaining entries still get adjusted and
				// the next read re-reconciles this one.
				s.log.Warn("cart adjustment write failed",
					zap.String("user", userID), zap.String("product", e.ProductID), zap.Error(err))
				if firstWriteErr == nil {
					firstWriteErr = err
				}
			}
		}
		lines = append(lines, Line{Product: p, Quantity: quantity, Adjusted: quantity != e.Quantity})
	}
	if firstWriteErr != nil {
		return lines, apperr.Store(firstWriteErr)
	}
	return lines, nil
}

// Increment applies a user-initiated quantity step, rejecting limit
// violations with a reasoned error before touching the store. A step from an
// empty cart entry starts at zero, so +1 creates the entry with quantity 1.
func (s *Service) Increment(ctx context.Context, userID, productID string, delta int) (int, error) {
	if userID == "" {
		return 0, apperr.Missing("user id")
	}
	if productID == "" {
		return 0, apperr.Missing("product id")
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}

	current := 0
	doc, err := s.store.Get(ctx, Collection, docID(userID, productID))
	switch {
	case err == nil:
		current = decodeEntry(doc).Quantity
	case errors.Is(err, docstore.ErrNotFound):
	default:
		return 0, apperr.Store(err)
	}

	next, err := ClampIncrement(p, current, delta)
	if err != nil {
		return current, err
	}
	if err := s.put(ctx, userID, productID, next); err != nil {
		return current, err
	}
	return next, nil
}

// SetQuantity is the direct quantity edit; it enforces the same limits as
// Increment.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if userID == "" {
		return apperr.Missing("user id")
	}
	if productID == "" {
		return apperr.Missing("product id")
	}
	if quantity < 1 {
		return apperr.Invalid("quantity must be at least 1")
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if max := EffectiveMaxQuantity(p); quantity > max {
		return &LimitError{Reason: limitReason(p), Max: max}
	}
	return s.put(ctx, userID, productID, quantity)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if userID == "" {
		return apperr.Missing("user id")
	}
	if productID == "" {
		return apperr.Missing("product id")
	}
	if err := s.store.Delete(ctx, Collection, docID(userID, productID)); err != nil {
		return apperr.Store(err)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Missing("user id")
	}
	entries, err := s.entries(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.store.Delete(ctx, Collection, docID(userID, e.ProductID)); err != nil {
			return apperr.Store(err)
		}
	}
	return nil
}

func (s *Service) entries(ctx context.Context, userID string) ([]Entry, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "userId", Op: docstore.OpEq, Value: userID},
		},
		Orderings: []docstore.Ordering{{Field: docstore.FieldID}},
	})
	if err != nil {
		return nil, apperr.Store(err)
	}
	entries := make([]Entry, 0, len(docs))
	for i := range docs {
		entries = append(entries, decodeEntry(&docs[i]))
	}
	return entries, nil
}

func (s *Service) put(ctx context.Context, userID, productID string, quantity int) error {
	err := s.store.Set(ctx, Collection, docID(userID, productID), map[string]any{
		"userId":    userID,
		"productId": productID,
		"quantity":  float64(quantity),
	})
	if err != nil {
		return apperr.Store(err)
	}
	return nil
}
