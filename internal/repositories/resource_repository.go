package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrResourceExists   = errors.New("resource already exists")
	ErrInvalidFilter    = errors.New("invalid filter")
)

// Collections served by the generic document store.
var Collections = map[string]bool{
	"users":       true,
	"contacts":    true,
	"groups":      true,
	"discussions": true,
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ResourceFilter narrows List. Equals compares body fields as text, Like
// does a case-insensitive substring match.
type ResourceFilter struct {
	Equals map[string]string
	Like   map[string]string
	Page
}

// ResourceRepository stores schemaless JSON documents keyed by collection and id.
type ResourceRepository interface {
	List(ctx context.Context, collection string, f ResourceFilter) ([]json.RawMessage, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Create(ctx context.Context, collection string, body map[string]any) (json.RawMessage, error)
	Replace(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error)
	Merge(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error)
	Delete(ctx context.Context, collection, id string) error
}

// ResourceRepo keeps every collection in one JSONB table.
type ResourceRepo struct {
	db *sqlx.DB
}

// NewResourceRepo constructs ResourceRepo.
func NewResourceRepo(db *sqlx.DB) *ResourceRepo {
	return &ResourceRepo{db: db}
}

func (r *ResourceRepo) List(ctx context.Context, collection string, f ResourceFilter) ([]json.RawMessage, error) {
	var q query
	q.and("collection = " + q.arg(collection))
	for _, field := range sortedKeys(f.Equals) {
		if !fieldPattern.MatchString(field) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, field)
		}
		q.and("body->>" + q.arg(field) + " = " + q.arg(f.Equals[field]))
	}
	for _, field := range sortedKeys(f.Like) {
		if !fieldPattern.MatchString(field) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, field)
		}
		q.and("(body->" + q.arg(field) + ")::text ILIKE '%' || " + q.arg(f.Like[field]) + " || '%'")
	}
	orderBy := order(f.Desc, "created_at", "id")
	if f.Sort != "" {
		if !fieldPattern.MatchString(f.Sort) {
			return nil, fmt.Errorf("%w: sort %q", ErrInvalidFilter, f.Sort)
		}
		orderBy = order(f.Desc, "body->>"+q.arg(f.Sort))
	}
	sqlText := q.build(`SELECT body FROM resources`, orderBy, f.Page)

	var rows [][]byte
	if err := r.db.SelectContext(ctx, &rows, sqlText, q.args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]json.RawMessage, 0, len(rows))
	for _, b := range rows {
		out = append(out, json.RawMessage(b))
	}
	return out, nil
}

func (r *ResourceRepo) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM resources WHERE collection=$1 AND id=$2`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

// Create stores body, assigning an id when it has none.
func (r *ResourceRepo) Create(ctx context.Context, collection string, body map[string]any) (json.RawMessage, error) {
	id, _ := body["id"].(string)
	if id == "" {
		id = uuid.NewString()
		body["id"] = id
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	var out []byte
	err = r.db.GetContext(ctx, &out, `INSERT INTO resources (collection, id, body) VALUES ($1, $2, $3)
        ON CONFLICT (collection, id) DO NOTHING RETURNING body`, collection, id, string(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceExists
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return out, nil
}

// Replace overwrites the document. The id never changes.
func (r *ResourceRepo) Replace(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	body["id"] = id
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	return r.update(ctx, `UPDATE resources SET body=$3 WHERE collection=$1 AND id=$2 RETURNING body`, collection, id, raw)
}

// Merge applies a shallow merge of body onto the document.
func (r *ResourceRepo) Merge(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	delete(body, "id")
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	return r.update(ctx, `UPDATE resources SET body = body || $3::jsonb WHERE collection=$1 AND id=$2 RETURNING body`, collection, id, raw)
}

func (r *ResourceRepo) update(ctx context.Context, sqlText, collection, id string, raw []byte) (json.RawMessage, error) {
	var out []byte
	err := r.db.GetContext(ctx, &out, sqlText, collection, id, string(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *ResourceRepo) Delete(ctx context.Context, collection, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrResourceNotFound
	}
	return nil
}
