// Package order creates checkout snapshots and lists a user's order
// history. Orders are immutable once written; state transitions live in the
// fulfillment system, not here.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storeforge/catalog-engine/internal/docstore"
)

const Collection = "orders"

const StatusPending = "pending"

type Address struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Item is a denormalized product snapshot: later catalog edits never change
// what an order says was bought.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  int             `json:"discount"`
	// EffectiveUnitPrice is the discounted unit price actually charged.
	EffectiveUnitPrice decimal.Decimal `json:"effectiveUnitPrice"`
	Quantity           int             `json:"quantity"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Items          []Item            `json:"items"`
	Address        Address           `json:"address"`
	PaymentMethod  string            `json:"paymentMethod"`
	PaymentDetails map[string]string `json:"paymentDetails,omitempty"`
	ShippingFee    decimal.Decimal   `json:"shippingFee"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	Total          decimal.Decimal   `json:"total"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Money crosses the store as strings, the same way the teacher of this
// schema kept NUMERIC columns out of floats.
func (o *Order) fields() map[string]any {
	items := make([]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"productId":          it.ProductID,
			"name":               it.Name,
			"imageUrl":           it.ImageURL,
			"unitPrice":          it.UnitPrice.String(),
			"discount":           float64(it.Discount),
			"effectiveUnitPrice": it.EffectiveUnitPrice.String(),
			"quantity":           float64(it.Quantity),
			"lineTotal":          it.LineTotal.String(),
		}
	}
	return map[string]any{
		"userId": o.UserID,
		"items":  items,
		"address": map[string]any{
			"fullName": o.Address.FullName,
			"street":   o.Address.Street,
			"city":     o.Address.City,
			"state":    o.Address.State,
			"zip":      o.Address.Zip,
			"country":  o.Address.Country,
			"phone":    o.Address.Phone,
		},
		"paymentMethod":  o.PaymentMethod,
		"paymentDetails": stringMapToAny(o.PaymentDetails),
		"shippingFee":    o.ShippingFee.String(),
		"subtotal":       o.Subtotal.String(),
		"total":          o.Total.String(),
		"status":         o.Status,
		"createdAt":      docstore.Timestamp(o.CreatedAt),
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func decodeOrder(d *docstore.Document) Order {
	o := Order{
		ID:            d.ID,
		UserID:        d.String("userId"),
		PaymentMethod: d.String("paymentMethod"),
		ShippingFee:   decimalField(d, "shippingFee"),
		Subtotal:      decimalField(d, "subtotal"),
		Total:         decimalField(d, "total"),
		Status:        d.String("status"),
		CreatedAt:     docstore.ParseTimestamp(d.String("createdAt")),
	}
	if addr, ok := d.Fields["address"].(map[string]any); ok {
		o.Address = Address{
			FullName: str(addr, "fullName"),
			Street:   str(addr, "street"),
			City:     str(addr, "city"),
			State:    str(addr, "state"),
			Zip:      str(addr, "zip"),
			Country:  str(addr, "country"),
			Phone:    str(addr, "phone"),
		}
	}
	if pd, ok := d.Fields["paymentDetails"].(map[string]any); ok {
		o.PaymentDetails = make(map[string]string, len(pd))
		for k, v := range pd {
			if s, ok := v.(string); ok {
				o.PaymentDetails[k] = s
			}
		}
	}
	if raw, ok := d.Fields["items"].([]any); ok {
		o.Items = make([]Item, 0, len(raw))
		for _, rv := range raw {
			m, ok := rv.(map[string]any)
			if !ok {
				continue
			}
			it := Item{
				ProductID:          str(m, "productId"),
				Name:               str(m, "name"),
				ImageURL:           str(m, "imageUrl"),
				UnitPrice:          decimalStr(str(m, "unitPrice")),
				EffectiveUnitPrice: decimalStr(str(m, "effectiveUnitPrice")),
				LineTotal:          decimalStr(str(m, "lineTotal")),
			}
			if v, ok := m["discount"].(float64); ok {
				it.Discount = int(v)
			}
			if v, ok := m["quantity"].(float64); ok {
				it.Quantity = int(v)
			}
			o.Items = append(o.Items, it)
		}
	}
	return o
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func decimalField(d *docstore.Document, field string) decimal.Decimal {
	return decimalStr(d.String(field))
}

func decimalStr(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
