package reading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS readings (
    id TEXT PRIMARY KEY,
    meter_number TEXT NOT NULL,
    reading INTEGER NOT NULL,
    photo_url TEXT,
    user_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_user_created ON readings(user_id, created_at);
`

// SQLiteStore implements Store on a local SQLite file.
// created_at is stored as Unix nanoseconds so ordering is numeric.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and migrates the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns the readings owned by userID, newest first
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]*Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, meter_number, reading, photo_url, user_id, created_at FROM readings WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]*Reading, 0)
	for rows.Next() {
		r, err := scanSQLiteReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// Create inserts a new reading row
func (s *SQLiteStore) Create(ctx context.Context, r *Reading) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO readings (id, meter_number, reading, photo_url, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.MeterNumber, r.Value, nullString(r.PhotoURL), r.UserID, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// Update overwrites meter_number and reading in place
func (s *SQLiteStore) Update(ctx context.Context, id, meterNumber string, value int64) (*Reading, error) {
	row := s.db.QueryRowContext(ctx,
		"UPDATE readings SET meter_number = ?, reading = ? WHERE id = ? RETURNING id, meter_number, reading, photo_url, user_id, created_at",
		meterNumber, value, id,
	)
	r, err := scanSQLiteReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the row with the given id, if any
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM readings WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting reading: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReading(row rowScanner) (*Reading, error) {
	var (
		r         Reading
		photoURL  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.MeterNumber, &r.Value, &photoURL, &r.UserID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning reading: %w", err)
	}
	if photoURL.Valid {
		r.PhotoURL = &photoURL.String
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
