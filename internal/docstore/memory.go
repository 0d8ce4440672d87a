package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store over in-process maps. It exists for tests and
// local development; it mirrors PostgresStore's query semantics, including
// the uniform-direction ordering restriction.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]map[string]any{}}
}

// coll creates the collection on first use; callers must hold the write lock.
func (m *MemoryStore) coll(name string) map[string]map[string]any {
	c, ok := m.collections[name]
	if !ok {
		c = map[string]map[string]any{}
		m.collections[name] = c
	}
	return c
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	return id, m.Insert(ctx, collection, id, fields)
}

func (m *MemoryStore) Insert(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, ok := c[id]; ok {
		return ErrExists
	}
	c[id] = copyFields(fields)
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coll(collection)[id] = copyFields(fields)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.coll(collection)[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range partial {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.coll(collection), id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var docs []Document
	for id, fields := range m.collections[q.Collection] {
		d := Document{ID: id, Fields: copyFields(fields)}
		if matchesAll(&d, q.Filters) {
			docs = append(docs, d)
		}
	}
	m.mu.RUnlock()

	desc := len(q.Orderings) > 0 && q.Orderings[0].Desc
	sort.Slice(docs, func(i, j int) bool {
		c := compareKeys(orderKey(&docs[i], q.Orderings), orderKey(&docs[j], q.Orderings))
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	if len(q.StartAfter) > 0 {
		cut := 0
		for cut < len(docs) {
			c := compareKeys(orderKey(&docs[cut], q.Orderings), q.StartAfter)
			if (desc && c < 0) || (!desc && c > 0) {
				break
			}
			cut++
		}
		docs = docs[cut:]
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func validateQuery(q Query) error {
	for i := 1; i < len(q.Orderings); i++ {
		if q.Orderings[i].Desc != q.Orderings[0].Desc {
			return fmt.Errorf("docstore: mixed ordering directions are not supported")
		}
	}
	if len(q.StartAfter) > 0 && len(q.StartAfter) != len(q.Orderings) {
		return fmt.Errorf("docstore: start-after bound has %d values for %d orderings",
			len(q.StartAfter), len(q.Orderings))
	}
	return nil
}

func fieldValue(d *Document, field string) any {
	if field == FieldID {
		return d.ID
	}
	return d.Fields[field]
}

func orderKey(d *Document, orderings []Ordering) []any {
	key := make([]any, len(orderings))
	for i, o := range orderings {
		key[i] = fieldValue(d, o.Field)
	}
	return key
}

func matchesAll(d *Document, filters []Filter) bool {
	for _, f := range filters {
		if !matches(d, f) {
			return false
		}
	}
	return true
}

func matches(d *Document, f Filter) bool {
	switch f.Op {
	case OpArrayContains:
		want, _ := f.Value.(string)
		for _, s := range d.Strings(f.Field) {
			if s == want {
				return true
			}
		}
		return false
	case OpIn:
		ids, _ := f.Value.([]string)
		got, _ := fieldValue(d, f.Field).(string)
		for _, id := range ids {
			if id == got {
				return true
			}
		}
		return false
	}
	c := compareValues(fieldValue(d, f.Field), f.Value)
	switch f.Op {
	case OpEq:
		return c == 0
	case OpGte:
		return c >= 0
	case OpLte:
		return c <= 0
	case OpLt:
		return c < 0
	}
	return false
}

func compareKeys(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// compareValues orders two field values of the same kind. Absent (nil)
// values sort first, matching the SQL NULLS FIRST behavior of the postgres
// implementation under ascending order.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if na, aok := toFloat(a); aok {
		if nb, bok := toFloat(b); bok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func copyFields(fields map[string]any) map[string]any {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		switch vv := v.(type) {
		case []any:
			cp[k] = append([]any(nil), vv...)
		case []string:
			cp[k] = append([]string(nil), vv...)
		case map[string]any:
			cp[k] = copyFields(vv)
		case []map[string]any:
			inner := make([]map[string]any, len(vv))
			for i, m := range vv {
				inner[i] = copyFields(m)
			}
			cp[k] = inner
		default:
			cp[k] = v
		}
	}
	return cp
}
