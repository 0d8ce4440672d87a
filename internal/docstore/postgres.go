package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every collection in one JSONB table:
//
//	documents(collection text, id text, doc jsonb, primary key (collection, id))
//
// Filters and orderings compile to expressions over the doc column; the
// conditional Insert maps to ON CONFLICT DO NOTHING so duplicate ids are a
// store-level conflict, not an application-level race.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{db: db} }

const callTimeout = 5 * time.Second

// EnsureSchema creates the documents table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT doc FROM documents WHERE collection=$1 AND id=$2
	`, collection, id).Scan(&raw)
	if err != nil {
		return nil, ErrNotFound
	}
	return decodeDoc(id, raw)
}

func (s *PostgresStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Insert(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc
	`, collection, id, raw)
	return err
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	merged := make(map[string]any, len(partial))
	removed := []string{}
	for k, v := range partial {
		if v == nil {
			removed = append(removed, k)
			continue
		}
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET doc = (doc || $3::jsonb) - $4::text[]
		WHERE collection=$1 AND id=$2
	`, collection, id, raw, removed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	sqlText, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		d, err := decodeDoc(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// fieldExpr compiles a document field reference to SQL. The shape of the
// comparison value picks the cast, since JSONB values are untyped.
func fieldExpr(field string, sample any) (string, error) {
	if field == FieldID {
		return "id", nil
	}
	if !fieldNameRE.MatchString(field) {
		return "", fmt.Errorf("docstore: invalid field name %q", field)
	}
	switch sample.(type) {
	case float64, float32, int, int64:
		return fmt.Sprintf("(doc->'%s')::numeric", field), nil
	case bool:
		return fmt.Sprintf("(doc->'%s')::boolean", field), nil
	default:
		return fmt.Sprintf("doc->>'%s'", field), nil
	}
}

func buildQuery(q Query) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString("SELECT id, doc FROM documents WHERE collection=")
	b.WriteString(arg(q.Collection))

	for _, f := range q.Filters {
		switch f.Op {
		case OpArrayContains:
			if !fieldNameRE.MatchString(f.Field) {
				return "", nil, fmt.Errorf("docstore: invalid field name %q", f.Field)
			}
			fmt.Fprintf(&b, " AND doc->'%s' ? %s", f.Field, arg(f.Value))
		case OpIn:
			ids, ok := f.Value.([]string)
			if !ok || len(ids) == 0 || len(ids) > MaxInValues {
				return "", nil, fmt.Errorf("docstore: in filter needs 1..%d string values", MaxInValues)
			}
			expr, err := fieldExpr(f.Field, "")
			if err != nil {
				return "", nil, err
			}
			fmt.Fprintf(&b, " AND %s = ANY(%s)", expr, arg(ids))
		case OpEq, OpGte, OpLte, OpLt:
			expr, err := fieldExpr(f.Field, f.Value)
			if err != nil {
				return "", nil, err
			}
			op := map[Op]string{OpEq: "=", OpGte: ">=", OpLte: "<=", OpLt: "<"}[f.Op]
			fmt.Fprintf(&b, " AND %s %s %s", expr, op, arg(f.Value))
		default:
			return "", nil, fmt.Errorf("docstore: unsupported filter op %q", f.Op)
		}
	}

	desc := len(q.Orderings) > 0 && q.Orderings[0].Desc
	exprs := make([]string, len(q.Orderings))
	for i, o := range q.Orderings {
		var sample any
		if o.Numeric {
			sample = float64(0)
		}
		expr, err := fieldExpr(o.Field, sample)
		if err != nil {
			return "", nil, err
		}
		exprs[i] = expr
	}

	if len(q.StartAfter) > 0 {
		// The exclusive resume bound expands to a lexicographic OR-chain
		// instead of a SQL row comparison: a NULL on either side of a row
		// comparison voids the whole predicate and silently ends pagination,
		// but documents may omit a sort field entirely. Each column compares
		// NULL-aware, consistent with the NULLS FIRST / NULLS LAST placement
		// in the ORDER BY below.
		clauses := make([]string, len(q.StartAfter))
		for i := range q.StartAfter {
			parts := make([]string, 0, i+1)
			for j := 0; j < i; j++ {
				if q.StartAfter[j] == nil {
					parts = append(parts, exprs[j]+" IS NULL")
				} else {
					parts = append(parts, fmt.Sprintf("%s = %s", exprs[j], arg(q.StartAfter[j])))
				}
			}
			parts = append(parts, afterBound(exprs[i], q.StartAfter[i], desc, arg))
			clauses[i] = "(" + strings.Join(parts, " AND ") + ")"
		}
		fmt.Fprintf(&b, " AND (%s)", strings.Join(clauses, " OR "))
	}

	if len(exprs) > 0 {
		dir, nulls := "ASC", "NULLS FIRST"
		if desc {
			dir, nulls = "DESC", "NULLS LAST"
		}
		parts := make([]string, len(exprs))
		for i, e := range exprs {
			parts[i] = fmt.Sprintf("%s %s %s", e, dir, nulls)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}
	return b.String(), args, nil
}

// afterBound compiles "sorts strictly after bound" for one ordering column.
// Ascending queries place NULLs first and descending place them last, so an
// absent field value lands on the right side of the bound in both directions.
func afterBound(expr string, bound any, desc bool, arg func(any) string) string {
	if bound == nil {
		if desc {
			// NULLS LAST: nothing sorts after an absent value; ties fall
			// through to the next column's clause.
			return "FALSE"
		}
		return expr + " IS NOT NULL"
	}
	if desc {
		return fmt.Sprintf("(%s < %s OR %s IS NULL)", expr, arg(bound), expr)
	}
	return fmt.Sprintf("%s > %s", expr, arg(bound))
}

func decodeDoc(id string, raw []byte) (*Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document %s: %w", id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}
