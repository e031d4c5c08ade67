package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS guarantee_instruments (
	system_id      TEXT PRIMARY KEY,
	attributes     JSONB NOT NULL,
	schema_version TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSQL = `
INSERT INTO guarantee_instruments (system_id, attributes, schema_version, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (system_id) DO UPDATE
SET attributes = EXCLUDED.attributes,
    schema_version = EXCLUDED.schema_version,
    updated_at = now()`

const lookupSQL = `SELECT attributes FROM guarantee_instruments WHERE system_id = $1`

// Postgres stores items in PostgreSQL.
type Postgres struct {
	db      DBTX
	version string
}

// NewPostgres returns a store writing through db. schemaVersion is recorded
// with every row.
func NewPostgres(db DBTX, schemaVersion string) *Postgres {
	return &Postgres{db: db, version: schemaVersion}
}

// EnsureSchema creates the items table when it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create guarantee_instruments: %w", err)
	}
	return nil
}

// Upsert inserts item or replaces the stored attributes for its key.
func (s *Postgres) Upsert(ctx context.Context, item ingest.Item) error {
	attrs, err := json.Marshal(item.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes for %s: %w", item.Key, err)
	}

	tag, err := s.db.Exec(ctx, upsertSQL, item.Key, attrs, s.version)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.Key, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("upsert %s: %d rows affected", item.Key, tag.RowsAffected())
	}
	return nil
}

// Lookup reads the item stored under key.
func (s *Postgres) Lookup(ctx context.Context, key string) (ingest.Item, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, lookupSQL, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Item{}, false, nil
	}
	if err != nil {
		return ingest.Item{}, false, fmt.Errorf("lookup %s: %w", key, err)
	}

	item := ingest.Item{Key: key}
	if err := json.Unmarshal(raw, &item.Attributes); err != nil {
		return ingest.Item{}, false, fmt.Errorf("decode attributes for %s: %w", key, err)
	}
	return item, true, nil
}
