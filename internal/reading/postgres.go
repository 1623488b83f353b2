package reading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultReadingsTable = "readings"

// tableName matches a plain or schema-qualified identifier; the name is interpolated into SQL
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on a Postgres table through the pgx stdlib driver.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore)

// WithTable overrides the default table name. Schema-qualified names ("schema.readings") are allowed.
func WithTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

// OpenPostgres opens a pooled connection to databaseURL. An unreachable server is
// logged, not returned: the store is still usable once the database comes back.
func OpenPostgres(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, ErrNotConfigured
	}
	store := NewPostgresStore(nil, opts...)
	if !tableName.MatchString(store.table) {
		return nil, fmt.Errorf("invalid table name %q", store.table)
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		// The pool reconnects on demand; until then requests fail with the driver error
		slog.Warn("Postgres is unreachable", "error", err)
	}
	store.db = db
	return store, nil
}

// NewPostgresStore wraps an already opened pool.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the readings table (and its schema, when qualified) if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if schema, _, ok := strings.Cut(s.table, "."); ok {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	meter_number TEXT NOT NULL,
	reading BIGINT NOT NULL,
	photo_url TEXT,
	user_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating readings table: %w", err)
	}
	return nil
}

// List returns the readings owned by userID, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]*Reading, error) {
	query := fmt.Sprintf(`
SELECT id, meter_number, reading, photo_url, user_id, created_at
FROM %s
WHERE user_id = $1
ORDER BY created_at DESC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]*Reading, 0)
	for rows.Next() {
		r, err := scanPostgresReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// Create inserts a reading row.
func (s *PostgresStore) Create(ctx context.Context, r *Reading) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, meter_number, reading, photo_url, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.MeterNumber,
		r.Value,
		nullString(r.PhotoURL),
		r.UserID,
		r.CreatedAt,
	)
	return err
}

// Update overwrites meter_number and reading, leaving every other column untouched.
func (s *PostgresStore) Update(ctx context.Context, id, meterNumber string, value int64) (*Reading, error) {
	query := fmt.Sprintf(`
UPDATE %s
SET meter_number = $1, reading = $2
WHERE id = $3
RETURNING id, meter_number, reading, photo_url, user_id, created_at`, s.table)

	r, err := scanPostgresReading(s.db.QueryRowContext(ctx, query, meterNumber, value, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the row with the given id without checking that it existed.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanPostgresReading(row rowScanner) (*Reading, error) {
	var (
		r        Reading
		photoURL sql.NullString
	)
	if err := row.Scan(&r.ID, &r.MeterNumber, &r.Value, &photoURL, &r.UserID, &r.CreatedAt); err != nil {
		return nil, err
	}
	if photoURL.Valid {
		r.PhotoURL = &photoURL.String
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
