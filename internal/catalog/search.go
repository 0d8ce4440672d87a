package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/cursor"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

const (
	kindSearchToken  = "tok"
	kindSearchPrefix = "pfx"
)

// prefixSentinel sorts after every rune that appears in product names,
// closing the half-open range [keyword, keyword+sentinel) that captures all
// strings with keyword as a prefix.
const prefixSentinel = "\uf8ff"

// Search looks a keyword up in two phases: exact match against the
// precomputed token set first, then an alphabetic name-prefix fallback when
// the token phase finds nothing on a cursor-less request. A pagination
// sequence never switches phase: the cursor is bound to the phase and the
// keyword that started it, so its ordering stays meaningful.
func (s *Service) Search(ctx context.Context, keyword string, pageSize int, cur string) (Page, error) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return emptyPage(), nil
	}
	pageSize = normalizePageSize(pageSize)

	tok, err := cursor.Decode(cur, kw, kindSearchToken, kindSearchPrefix)
	if err != nil {
		return emptyPage(), err
	}
	if tok != nil && tok.Kind == kindSearchPrefix {
		return s.searchPrefix(ctx, kw, pageSize, tok)
	}

	page, err := s.searchTokens(ctx, kw, pageSize, tok)
	if err != nil {
		return page, err
	}
	if len(page.Items) == 0 && tok == nil {
		s.log.Debug("search falling back to prefix match", zap.String("keyword", kw))
		return s.searchPrefix(ctx, kw, pageSize, nil)
	}
	return page, nil
}

func (s *Service) searchTokens(ctx context.Context, kw string, pageSize int, tok *cursor.Token) (Page, error) {
	q := docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "searchTokens", Op: docstore.OpArrayContains, Value: kw},
		},
		Orderings: []docstore.Ordering{{Field: docstore.FieldID}},
		Limit:     pageSize,
	}
	if tok != nil {
		q.StartAfter = []any{tok.ID}
	}
	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return emptyPage(), apperr.Store(err)
	}
	page := pageFromDocs(docs, pageSize)
	if len(docs) > 0 {
		page.NextCursor = cursor.Encode(kindSearchToken, kw, nil, docs[len(docs)-1].ID)
	}
	return page, nil
}

func (s *Service) searchPrefix(ctx context.Context, kw string, pageSize int, tok *cursor.Token) (Page, error) {
	q := docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "nameLower", Op: docstore.OpGte, Value: kw},
			{Field: "nameLower", Op: docstore.OpLt, Value: kw + prefixSentinel},
		},
		Orderings: []docstore.Ordering{
			{Field: "nameLower"},
			{Field: docstore.FieldID},
		},
		Limit: pageSize,
	}
	if tok != nil {
		q.StartAfter = []any{tok.Sort, tok.ID}
	}
	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return emptyPage(), apperr.Store(err)
	}
	page := pageFromDocs(docs, pageSize)
	if len(docs) > 0 {
		last := docs[len(docs)-1]
		page.NextCursor = cursor.Encode(kindSearchPrefix, kw, last.String("nameLower"), last.ID)
	}
	return page, nil
}

// SuggestNames returns up to limit product names starting with keyword, for
// the search box dropdown.
func (s *Service) SuggestNames(ctx context.Context, keyword string, limit int) ([]string, error) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return []string{}, nil
	}
	const maxSuggestions = 20
	if limit <= 0 {
		limit = 5
	} else if limit > maxSuggestions {
		limit = maxSuggestions
	}
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "nameLower", Op: docstore.OpGte, Value: kw},
			{Field: "nameLower", Op: docstore.OpLt, Value: kw + prefixSentinel},
		},
		Orderings: []docstore.Ordering{
			{Field: "nameLower"},
			{Field: docstore.FieldID},
		},
		Limit: limit,
	})
	if err != nil {
		return []string{}, apperr.Store(err)
	}
	names := make([]string, 0, len(docs))
	for i := range docs {
		names = append(names, docs[i].String("name"))
	}
	return names, nil
}
