package review

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/cursor"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

const kindReviewList = "rev"

// summaryScanLimit bounds the aggregate scan; products with more reviews get
// an approximate summary over the newest ones.
const summaryScanLimit = 500

type Service struct {
	store docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store docstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

type Page struct {
	Items      []Review `json:"items"`
	NextCursor string   `json:"nextCursor,omitempty"`
	HasMore    bool     `json:"hasMore"`
}

// List returns one page of a product's reviews, newest first; the id breaks
// ties between reviews created in the same instant.
func (s *Service) List(ctx context.Context, productID string, pageSize int, cur string) (Page, error) {
	empty := Page{Items: []Review{}}
	if productID == "" {
		return empty, apperr.Missing("product id")
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	q := docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "productId", Op: docstore.OpEq, Value: productID},
		},
		Orderings: []docstore.Ordering{
			{Field: "createdAt", Desc: true},
			{Field: docstore.FieldID, Desc: true},
		},
		Limit: pageSize,
	}
	tok, err := cursor.Decode(cur, productID, kindReviewList)
	if err != nil {
		return empty, err
	}
	if tok != nil {
		q.StartAfter = []any{tok.Sort, tok.ID}
	}

	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return empty, apperr.Store(err)
	}
	page := Page{Items: make([]Review, 0, len(docs)), HasMore: len(docs) == pageSize}
	for i := range docs {
		page.Items = append(page.Items, decodeReview(&docs[i]))
	}
	if len(docs) > 0 {
		last := docs[len(docs)-1]
		page.NextCursor = cursor.Encode(kindReviewList, productID, last.String("createdAt"), last.ID)
	}
	return page, nil
}

// Add stores a new review. A second review from the same user for the same
// product fails with CONFLICT and returns the existing review, whether the
// duplicate is caught by the pre-check or by the conditional insert.
func (s *Service) Add(ctx context.Context, productID, userID string, rating float64, comment, displayName string) (*Review, error) {
	if productID == "" {
		return nil, apperr.Missing("product id")
	}
	if userID == "" {
		return nil, apperr.Missing("user id")
	}
	stars, err := normalizeRating(rating)
	if err != nil {
		return nil, err
	}
	comment, err = normalizeComment(comment)
	if err != nil {
		return nil, err
	}

	id := docID(productID, userID)
	if existing, err := s.store.Get(ctx, Collection, id); err == nil {
		r := decodeReview(existing)
		return &r, apperr.Conflict("user already reviewed this product")
	}

	createdAt := s.now()
	fields := map[string]any{
		"productId":   productID,
		"userId":      userID,
		"displayName": displayName,
		"rating":      float64(stars),
		"comment":     comment,
		"createdAt":   docstore.Timestamp(createdAt),
	}
	if err := s.store.Insert(ctx, Collection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			// Lost the race to a concurrent submit; surface theirs.
			if existing, gerr := s.store.Get(ctx, Collection, id); gerr == nil {
				r := decodeReview(existing)
				return &r, apperr.Conflict("user already reviewed this product")
			}
			return nil, apperr.Conflict("user already reviewed this product")
		}
		return nil, apperr.Store(err)
	}
	return &Review{
		ID:          id,
		ProductID:   productID,
		UserID:      userID,
		DisplayName: displayName,
		Rating:      stars,
		Comment:     comment,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// UpdateFields carries the owner-editable subset; nil pointers leave the
// stored value untouched.
type UpdateFields struct {
	Rating      *float64
	Comment     *string
	DisplayName *string
}

func (s *Service) Update(ctx context.Context, reviewID, userID string, fields UpdateFields) (*Review, error) {
	r, err := s.loadOwned(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}

	partial := map[string]any{}
	if fields.Rating != nil {
		stars, err := normalizeRating(*fields.Rating)
		if err != nil {
			return nil, err
		}
		partial["rating"] = float64(stars)
		r.Rating = stars
	}
	if fields.Comment != nil {
		comment, err := normalizeComment(*fields.Comment)
		if err != nil {
			return nil, err
		}
		partial["comment"] = comment
		r.Comment = comment
	}
	if fields.DisplayName != nil {
		partial["displayName"] = *fields.DisplayName
		r.DisplayName = *fields.DisplayName
	}
	if len(partial) == 0 {
		return nil, apperr.Missing("fields to update")
	}
	updatedAt := s.now()
	partial["lastUpdatedAt"] = docstore.Timestamp(updatedAt)

	if err := s.store.Update(ctx, Collection, reviewID, partial); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound("review")
		}
		return nil, apperr.Store(err)
	}
	t := updatedAt.UTC()
	r.LastUpdatedAt = &t
	return r, nil
}

func (s *Service) Delete(ctx context.Context, reviewID, userID string) error {
	if _, err := s.loadOwned(ctx, reviewID, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, reviewID); err != nil {
		return apperr.Store(err)
	}
	return nil
}

func (s *Service) Summarize(ctx context.Context, productID string) (Summary, error) {
	if productID == "" {
		return Summary{}, apperr.Missing("product id")
	}
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "productId", Op: docstore.OpEq, Value: productID},
		},
		Orderings: []docstore.Ordering{
			{Field: "createdAt", Desc: true},
			{Field: docstore.FieldID, Desc: true},
		},
		Limit: summaryScanLimit,
	})
	if err != nil {
		return Summary{}, apperr.Store(err)
	}
	if len(docs) == 0 {
		return Summary{}, nil
	}
	var total float64
	for i := range docs {
		v, _ := docs[i].Number("rating")
		total += v
	}
	return Summary{Average: total / float64(len(docs)), Count: len(docs)}, nil
}

func (s *Service) loadOwned(ctx context.Context, reviewID, userID string) (*Review, error) {
	if reviewID == "" {
		return nil, apperr.Missing("review id")
	}
	if userID == "" {
		return nil, apperr.Missing("user id")
	}
	doc, err := s.store.Get(ctx, Collection, reviewID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound("review")
		}
		return nil, apperr.Store(err)
	}
	r := decodeReview(doc)
	if r.UserID != userID {
		return nil, apperr.Forbidden("review belongs to another user")
	}
	return &r, nil
}

// normalizeRating rounds to the nearest whole star and requires the result
// to land in [1,5]; 5.6 rounds to 6 and is rejected, 4.4 rounds to 4.
func normalizeRating(rating float64) (int, error) {
	stars := int(math.Round(rating))
	if stars < 1 || stars > 5 {
		return 0, apperr.Invalid("rating must be between 1 and 5")
	}
	return stars, nil
}

func normalizeComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", apperr.Invalid("comment must not be empty")
	}
	return comment, nil
}
