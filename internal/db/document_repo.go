package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"ordernotify/internal/types"
)

// Schema creates the documents table if it does not exist.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`

// DocumentRepository implements types.DocumentStore over the documents table.
type DocumentRepository struct {
	db DBTX
}

var _ types.DocumentStore = (*DocumentRepository)(nil)

// NewDocumentRepository creates a DocumentRepository backed by the given
// database connection (pool or transaction).
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// EnsureSchema creates the documents table.
func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to create documents table", err)
	}
	return nil
}

// Get returns the body of collection/id. A missing row is found=false.
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (types.Document, bool, error) {
	var body []byte
	err := r.db.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("failed to read %s/%s", collection, id), err)
	}

	var doc types.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("document %s/%s is not a JSON object", collection, id), err)
	}
	return doc, true, nil
}

// Update merges fields into the row's body in one statement. Fields set to
// types.ServerTimestamp take the database's NOW().
func (r *DocumentRepository) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	patch, stamped, err := splitFields(fields)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to encode update", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET
			body = body || $3::jsonb || COALESCE(
				(SELECT jsonb_object_agg(k, to_jsonb(NOW())) FROM unnest($4::text[]) AS k),
				'{}'::jsonb),
			updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, patch, stamped,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("failed to update %s/%s", collection, id), err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundDocument,
			fmt.Sprintf("%s/%s does not exist", collection, id), nil)
	}
	return nil
}

// splitFields separates literal values, encoded as a JSON object, from the
// names of fields that take the server timestamp.
func splitFields(fields map[string]any) ([]byte, []string, error) {
	literal := make(map[string]any, len(fields))
	stamped := []string{}
	for k, v := range fields {
		if v == types.ServerTimestamp {
			stamped = append(stamped, k)
			continue
		}
		literal[k] = v
	}
	sort.Strings(stamped)

	patch, err := json.Marshal(literal)
	if err != nil {
		return nil, nil, err
	}
	return patch, stamped, nil
}
