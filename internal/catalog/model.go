// Package catalog implements product listing, search and lookups over the
// document store: cursor-paginated sorted/filtered listing and the two-phase
// (exact-token, then name-prefix) search fallback.
package catalog

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storeforge/catalog-engine/internal/docstore"
)

const Collection = "products"

// DefaultStockDisplay is what untracked stock renders as, so the UI never
// branches on an absent quantity.
const DefaultStockDisplay = 100

// StockLevel distinguishes an explicitly tracked quantity from an untracked
// one. Untracked or non-positive stock counts as unlimited for purchase
// limits while still rendering a concrete number.
type StockLevel struct {
	Tracked bool
	Qty     int
}

func (s StockLevel) Display() int {
	if s.Tracked {
		return s.Qty
	}
	return DefaultStockDisplay
}

// Unlimited reports whether this stock level imposes no purchase limit.
func (s StockLevel) Unlimited() bool { return !s.Tracked || s.Qty <= 0 }

func (s StockLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Display())
}

// UnmarshalJSON accepts the display value; API clients only ever see the
// defaulted number, never the tri-state.
func (s *StockLevel) UnmarshalJSON(data []byte) error {
	var qty int
	if err := json.Unmarshal(data, &qty); err != nil {
		return err
	}
	*s = StockLevel{Tracked: true, Qty: qty}
	return nil
}

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Discount int             `json:"discount"` // percent, 0..100
	ImageURL string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
	Stock    StockLevel      `json:"stock"`
	// PerOrderCap limits one product's quantity per order; 0 means unlimited.
	PerOrderCap  int      `json:"perOrderCap"`
	SearchTokens []string `json:"-"`
	NameLower    string   `json:"-"`
}

// EffectivePrice applies the discount percentage, floored at zero.
func (p *Product) EffectivePrice() decimal.Decimal {
	price := p.Price.Mul(decimal.NewFromInt(int64(100 - p.Discount))).Div(decimal.NewFromInt(100))
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// Tokenize derives the search-token set from a product name: lowercased
// whitespace-separated terms, deduplicated.
func Tokenize(name string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func decodeProduct(d *docstore.Document) Product {
	p := Product{
		ID:       d.ID,
		Name:     d.String("name"),
		ImageURL: d.String("imageUrl"),
		Category: d.String("category"),
	}
	if v, ok := d.Number("price"); ok {
		p.Price = decimal.NewFromFloat(v)
	}
	if v, ok := d.Number("discount"); ok {
		switch {
		case v < 0:
			p.Discount = 0
		case v > 100:
			p.Discount = 100
		default:
			p.Discount = int(v)
		}
	}
	if v, ok := d.Number("stockQuantity"); ok {
		p.Stock = StockLevel{Tracked: true, Qty: int(v)}
	}
	if v, ok := d.Number("perOrderCap"); ok && v > 0 {
		p.PerOrderCap = int(v)
	}
	p.SearchTokens = d.Strings("searchTokens")
	p.NameLower = d.String("nameLower")
	if p.NameLower == "" {
		p.NameLower = strings.ToLower(p.Name)
	}
	return p
}

// fields serializes a product for the store, maintaining the token set and
// lowercase-name index fields the search engine queries.
func (p *Product) fields() map[string]any {
	f := map[string]any{
		"name":         p.Name,
		"price":        p.Price.InexactFloat64(),
		"discount":     float64(p.Discount),
		"imageUrl":     p.ImageURL,
		"category":     p.Category,
		"searchTokens": Tokenize(p.Name),
		"nameLower":    strings.ToLower(p.Name),
	}
	if p.Stock.Tracked {
		f["stockQuantity"] = float64(p.Stock.Qty)
	}
	if p.PerOrderCap > 0 {
		f["perOrderCap"] = float64(p.PerOrderCap)
	}
	return f
}
