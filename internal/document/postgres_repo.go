package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/library"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) Get(ctx context.Context, userID string) (Document, error) {
	const query = `
	SELECT library, cabinets, updated_at
	FROM library_documents
	WHERE user_id = $1
	`
	var libRaw, cabRaw []byte
	doc := Document{UserID: userID}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, userID).Scan(&libRaw, &cabRaw, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if err := decode(libRaw, cabRaw, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Merge upserts the document. COALESCE keeps the stored column for every
// field the patch leaves nil.
func (r *PostgresRepo) Merge(ctx context.Context, userID string, p Patch) (Document, error) {
	const query = `
	INSERT INTO library_documents (user_id, library, cabinets)
	VALUES ($1, COALESCE($2::jsonb, '[]'::jsonb), COALESCE($3::jsonb, '[]'::jsonb))
	ON CONFLICT (user_id) DO UPDATE SET
		library = COALESCE($2::jsonb, library_documents.library),
		cabinets = COALESCE($3::jsonb, library_documents.cabinets),
		updated_at = now()
	RETURNING library, cabinets, updated_at
	`
	libArg, err := jsonArg(p.Library)
	if err != nil {
		return Document{}, err
	}
	cabArg, err := jsonArg(p.Cabinets)
	if err != nil {
		return Document{}, err
	}

	var libRaw, cabRaw []byte
	doc := Document{UserID: userID}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, query, userID, libArg, cabArg).Scan(&libRaw, &cabRaw, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	if err := decode(libRaw, cabRaw, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// jsonArg encodes a patch field, or returns nil so the column is kept.
func jsonArg[T any](v *[]T) (any, error) {
	if v == nil {
		return nil, nil
	}
	items := *v
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return string(raw), nil
}

func decode(libRaw, cabRaw []byte, doc *Document) error {
	doc.Library = []library.Entry{}
	doc.Cabinets = []library.Cabinet{}
	if len(libRaw) > 0 {
		if err := json.Unmarshal(libRaw, &doc.Library); err != nil {
			return fmt.Errorf("decode library: %w", err)
		}
	}
	if len(cabRaw) > 0 {
		if err := json.Unmarshal(cabRaw, &doc.Cabinets); err != nil {
			return fmt.Errorf("decode cabinets: %w", err)
		}
	}
	return nil
}
