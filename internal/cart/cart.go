// Package cart reconciles stored cart quantities against live stock and
// per-order caps, and validates user-initiated quantity edits.
package cart

import (
	"fmt"

	"github.com/storeforge/catalog-engine/internal/catalog"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

const Collection = "cart_items"

// QuantityCeiling is the documented "unlimited" purchase sentinel used when
// neither stock nor a per-order cap bounds a product.
const QuantityCeiling = 9999

// Entry is the persisted shape: one document per (user, product).
type Entry struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Line is the enriched view handed to the UI after reconciliation.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Adjusted bool            `json:"adjusted,omitempty"`
}

func docID(userID, productID string) string {
	return userID + ":" + productID
}

func decodeEntry(d *docstore.Document) Entry {
	e := Entry{ProductID: d.String("productId")}
	if v, ok := d.Number("quantity"); ok {
		e.Quantity = int(v)
	}
	return e
}

// EffectiveMaxQuantity is min(stock, per-order cap), where untracked or
// non-positive stock and a zero cap each mean "unlimited". With both
// unlimited it resolves to QuantityCeiling, never 0.
func EffectiveMaxQuantity(p *catalog.Product) int {
	stockLimited := !p.Stock.Unlimited()
	capLimited := p.PerOrderCap > 0
	switch {
	case stockLimited && capLimited:
		if p.PerOrderCap < p.Stock.Qty {
			return p.PerOrderCap
		}
		return p.Stock.Qty
	case stockLimited:
		return p.Stock.Qty
	case capLimited:
		return p.PerOrderCap
	default:
		return QuantityCeiling
	}
}

// LimitReason tells the UI which constraint rejected a quantity edit.
type LimitReason string

const (
	ReasonMinimumReached LimitReason = "minimum-reached"
	ReasonStockLimit     LimitReason = "stock-limit"
	ReasonPerOrderLimit  LimitReason = "per-order-limit"
)

type LimitError struct {
	Reason LimitReason
	Max    int
}

func (e *LimitError) Error() string {
	switch e.Reason {
	case ReasonMinimumReached:
		return "quantity is already at the minimum"
	case ReasonStockLimit:
		return fmt.Sprintf("only %d left in stock", e.Max)
	default:
		return fmt.Sprintf("limited to %d per order", e.Max)
	}
}

// limitReason names the constraint that binds at the effective maximum: the
// stock level when it is the tighter (or only) limit, the per-order cap
// otherwise.
func limitReason(p *catalog.Product) LimitReason {
	if !p.Stock.Unlimited() && (p.PerOrderCap <= 0 || p.Stock.Qty <= p.PerOrderCap) {
		return ReasonStockLimit
	}
	return ReasonPerOrderLimit
}

// ClampIncrement validates a user-initiated +1/-1 (or larger) step against
// the product's limits before anything reaches the store. Unlike passive
// reconciliation it rejects with a reason instead of silently clamping.
func ClampIncrement(p *catalog.Product, current, delta int) (int, error) {
	next := current + delta
	if next < 1 {
		return current, &LimitError{Reason: ReasonMinimumReached, Max: 1}
	}
	max := EffectiveMaxQuantity(p)
	if next > max {
		return current, &LimitError{Reason: limitReason(p), Max: max}
	}
	return next, nil
}
