// Package registry records ingested documents and their indexing status in
// PostgreSQL.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id              UUID PRIMARY KEY,
	title           TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	content_size    INTEGER NOT NULL,
	shard_id        INTEGER NOT NULL,
	idempotency_key TEXT UNIQUE,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	indexed_at      TIMESTAMPTZ
)`

// Record is one row of the documents table.
type Record struct {
	ID             string
	Title          string
	ContentHash    string
	ContentSize    int
	ShardID        int
	IdempotencyKey string
}

// Info is the externally visible metadata of a registered document.
type Info struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ContentHash string     `json:"content_hash"`
	ContentSize int        `json:"content_size"`
	ShardID     int        `json:"shard_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
}

type Registry struct {
	db *postgres.Client
}

func New(db *postgres.Client) *Registry {
	return &Registry{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	return r.db.Migrate(ctx, "documents", schema)
}

// Insert stores rec as PENDING. A reused idempotency key is reported as
// ErrIdempotencyConflict.
func (r *Registry) Insert(ctx context.Context, rec Record) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO documents (id, title, content_hash, content_size, shard_id, idempotency_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`,
			rec.ID, rec.Title, rec.ContentHash, rec.ContentSize, rec.ShardID,
			nullableString(rec.IdempotencyKey), ingestion.StatusPending,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already in use")
		}
		return err
	})
}

// FindByIdempotencyKey returns the document registered under key, or nil.
func (r *Registry) FindByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error) {
	var resp ingestion.IngestResponse
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT id, status, shard_id FROM documents WHERE idempotency_key=$1`, key,
	).Scan(&resp.DocumentID, &resp.Status, &resp.ShardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

// Get returns the metadata of document id, or ErrDocumentNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Info, error) {
	var info Info
	var indexedAt sql.NullTime
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT id, title, content_hash, content_size, shard_id, status, created_at, indexed_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&info.ID, &info.Title, &info.ContentHash, &info.ContentSize,
		&info.ShardID, &info.Status, &info.CreatedAt, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "no document with id %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	if indexedAt.Valid {
		info.IndexedAt = &indexedAt.Time
	}
	return &info, nil
}

// UpdateStatus moves a document to status, stamping indexed_at.
func (r *Registry) UpdateStatus(ctx context.Context, docID, status string) error {
	res, err := r.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, indexed_at = NOW() WHERE id = $2`,
		status, docID,
	)
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", docID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating status of %s: %w", docID, apperrors.ErrDocumentNotFound)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
