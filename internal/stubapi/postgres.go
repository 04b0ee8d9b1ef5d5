package stubapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS records_collection_created_idx ON records (collection, created_at DESC);
`

// PostgresStore keeps every collection in one JSONB table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with pgx and creates the table if needed.
func OpenPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection.
func (p *PostgresStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PostgresStore) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT body FROM records
		WHERE collection = $1
		ORDER BY created_at DESC, id DESC
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d Doc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", collection, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM records WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return d, nil
}

func (p *PostgresStore) Insert(ctx context.Context, collection string, doc Doc) (Doc, error) {
	d := doc.clone()
	if d.ID() == "" {
		d["id"] = uuid.NewString()
	}
	created := time.Now().UTC()
	if t := d.CreatedAt(); !t.IsZero() {
		created = t
	}
	d["createdAt"] = created.Format(time.RFC3339Nano)

	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, body, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body
	`, collection, d.ID(), string(body), created)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *PostgresStore) Update(ctx context.Context, collection, id string, patch Doc) (Doc, error) {
	clean := patch.clone()
	delete(clean, "id")
	delete(clean, "createdAt")
	clean["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	body, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = p.db.QueryRowContext(ctx, `
		UPDATE records SET body = body || $3::jsonb
		WHERE collection = $1 AND id = $2
		RETURNING body
	`, collection, id, string(body)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
