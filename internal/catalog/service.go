package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storeforge/catalog-engine/internal/apperr"
	"github.com/storeforge/catalog-engine/internal/cursor"
	"github.com/storeforge/catalog-engine/internal/docstore"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const (
	kindList     = "list"
	kindFiltered = "flt"
)

// DocumentCache is a best-effort read-through cache for product documents;
// implemented by cache.ProductCache, nil disables caching.
type DocumentCache interface {
	Get(ctx context.Context, id string) (map[string]any, bool)
	Put(ctx context.Context, id string, fields map[string]any)
}

type Service struct {
	store docstore.Store
	cache DocumentCache
	log   *zap.Logger
}

func NewService(store docstore.Store, cache DocumentCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cache: cache, log: log}
}

type Page struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}

func emptyPage() Page { return Page{Items: []Product{}} }

type ListOptions struct {
	PageSize  int
	SortField string // name | price | discount | category
	Desc      bool
	Cursor    string
}

type FilterOptions struct {
	PageSize int
	Category string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	Cursor   string
}

var sortFields = map[string]bool{
	"name":     false,
	"category": false,
	"price":    true, // numeric
	"discount": true,
}

func normalizePageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return DefaultPageSize
	}
	return n
}

// List returns one page of the catalog ordered by (sortField, id); the id
// tiebreaker makes the cursor an unambiguous resume point even when many
// products share the sort value.
func (s *Service) List(ctx context.Context, opts ListOptions) (Page, error) {
	pageSize := normalizePageSize(opts.PageSize)
	sortField := opts.SortField
	if sortField == "" {
		sortField = "name"
	}
	numeric, ok := sortFields[sortField]
	if !ok {
		return emptyPage(), apperr.Invalid("unsupported sort field %q", sortField)
	}
	key := sortKey(sortField, opts.Desc)

	q := docstore.Query{
		Collection: Collection,
		Orderings: []docstore.Ordering{
			{Field: sortField, Desc: opts.Desc, Numeric: numeric},
			{Field: docstore.FieldID, Desc: opts.Desc},
		},
		Limit: pageSize,
	}
	tok, err := cursor.Decode(opts.Cursor, key, kindList)
	if err != nil {
		return emptyPage(), err
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
		page.NextCursor = cursor.Encode(kindList, key, last.Fields[sortField], last.ID)
	}
	return page, nil
}

// ListFiltered orders solely by id: field filters make any custom sort
// useless without a composite index, so id order is the stable fallback.
func (s *Service) ListFiltered(ctx context.Context, opts FilterOptions) (Page, error) {
	pageSize := normalizePageSize(opts.PageSize)

	q := docstore.Query{
		Collection: Collection,
		Orderings:  []docstore.Ordering{{Field: docstore.FieldID}},
		Limit:      pageSize,
	}
	if opts.Category != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "category", Op: docstore.OpEq, Value: opts.Category})
	}
	if opts.PriceMin != nil {
		q.Filters = append(q.Filters, docstore.Filter{Field: "price", Op: docstore.OpGte, Value: opts.PriceMin.InexactFloat64()})
	}
	if opts.PriceMax != nil {
		q.Filters = append(q.Filters, docstore.Filter{Field: "price", Op: docstore.OpLte, Value: opts.PriceMax.InexactFloat64()})
	}
	tok, err := cursor.Decode(opts.Cursor, "", kindFiltered)
	if err != nil {
		return emptyPage(), err
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
		page.NextCursor = cursor.Encode(kindFiltered, "", nil, docs[len(docs)-1].ID)
	}
	return page, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Product, error) {
	if id == "" {
		return nil, apperr.Missing("product id")
	}
	if s.cache != nil {
		if fields, ok := s.cache.Get(ctx, id); ok {
			p := decodeProduct(&docstore.Document{ID: id, Fields: fields})
			return &p, nil
		}
	}
	doc, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, apperr.Store(err)
	}
	if s.cache != nil {
		s.cache.Put(ctx, id, doc.Fields)
	}
	p := decodeProduct(doc)
	return &p, nil
}

// GetByIDs fetches many products, chunking the id list to the store's
// in-list maximum and issuing the chunks sequentially. Any chunk failure
// fails the whole call rather than returning a silently incomplete list.
// Results follow the input order; unknown ids are simply absent.
func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	byID := make(map[string]Product, len(ids))
	for start := 0; start < len(ids); start += docstore.MaxInValues {
		end := start + docstore.MaxInValues
		if end > len(ids) {
			end = len(ids)
		}
		docs, err := s.store.Query(ctx, docstore.Query{
			Collection: Collection,
			Filters: []docstore.Filter{
				{Field: docstore.FieldID, Op: docstore.OpIn, Value: append([]string(nil), ids[start:end]...)},
			},
		})
		if err != nil {
			return []Product{}, apperr.Store(err)
		}
		for i := range docs {
			byID[docs[i].ID] = decodeProduct(&docs[i])
		}
	}
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save writes a product document, minting an id when absent. It exists for
// the admin/seed path; storefront traffic never mutates the catalog.
func (s *Service) Save(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return apperr.Missing("product name")
	}
	if p.Price.IsNegative() {
		return apperr.Invalid("price must not be negative")
	}
	if p.ID == "" {
		id, err := s.store.Create(ctx, Collection, p.fields())
		if err != nil {
			return apperr.Store(err)
		}
		p.ID = id
		return nil
	}
	if err := s.store.Set(ctx, Collection, p.ID, p.fields()); err != nil {
		return apperr.Store(err)
	}
	return nil
}

func sortKey(field string, desc bool) string {
	if desc {
		return field + ":desc"
	}
	return field + ":asc"
}

// pageFromDocs applies the full-page heuristic: a full page implies more may
// follow, a short page is conclusive end-of-data. An exact-multiple catalog
// costs one extra empty round-trip; that is documented behavior.
func pageFromDocs(docs []docstore.Document, pageSize int) Page {
	items := make([]Product, 0, len(docs))
	for i := range docs {
		items = append(items, decodeProduct(&docs[i]))
	}
	return Page{Items: items, HasMore: len(docs) == pageSize}
}
