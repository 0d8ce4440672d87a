// Package review is the per-product review ledger: recency-ordered
// pagination, one review per (product, user), ownership-gated edits.
package review

import (
	"time"

	"github.com/storeforge/catalog-engine/internal/docstore"
)

const Collection = "reviews"

const DefaultPageSize = 10

type Review struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"productId"`
	UserID        string     `json:"userId"`
	DisplayName   string     `json:"displayName,omitempty"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}

// Summary aggregates a product's reviews for the product page header.
type Summary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// docID is the deterministic composite document id. Using it as the store
// key turns duplicate submissions into a store-level insert conflict instead
// of an application-level check-then-write race.
func docID(productID, userID string) string {
	return productID + ":" + userID
}

func decodeReview(d *docstore.Document) Review {
	r := Review{
		ID:          d.ID,
		ProductID:   d.String("productId"),
		UserID:      d.String("userId"),
		DisplayName: d.String("displayName"),
		Comment:     d.String("comment"),
		CreatedAt:   docstore.ParseTimestamp(d.String("createdAt")),
	}
	if v, ok := d.Number("rating"); ok {
		r.Rating = int(v)
	}
	if s := d.String("lastUpdatedAt"); s != "" {
		t := docstore.ParseTimestamp(s)
		r.LastUpdatedAt = &t
	}
	return r
}
