package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/dikkadev/hoard/pkg/backend"
)

// LibSQL implements the Store interface using libsql
type LibSQL struct {
	db *sql.DB
}

// NewLibSQL creates a new LibSQL store
func NewLibSQL(url string) (*LibSQL, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LibSQL{db: db}, nil
}

// Initialize creates the database schema
func (s *LibSQL) Initialize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			backend TEXT NOT NULL,
			id TEXT NOT NULL,
			installed BOOLEAN NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL,
			cached_at DATETIME NOT NULL,
			PRIMARY KEY (backend, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_records_installed
		ON records (backend, installed)
	`)
	if err != nil {
		return fmt.Errorf("failed to create installed index: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS category_index (
			backend TEXT NOT NULL,
			category TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			PRIMARY KEY (backend, category, position)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create category index table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS generations (
			backend TEXT PRIMARY KEY,
			populated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create generations table: %w", err)
	}

	return nil
}

// GetRecord returns a single record, or nil when absent
func (s *LibSQL) GetRecord(ctx context.Context, backendID, packageID string) (*backend.PackageRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM records
		WHERE backend = ? AND id = ?
	`, backendID, packageID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return decodeRecord(data)
}

// ListRecords returns records ordered by package id
func (s *LibSQL) ListRecords(ctx context.Context, backendID string, limit, offset int) ([]*backend.PackageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM records
		WHERE backend = ?
		ORDER BY id
		LIMIT ? OFFSET ?
	`, backendID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListInstalled returns installed records ordered by package id
func (s *LibSQL) ListInstalled(ctx context.Context, backendID string, limit, offset int) ([]*backend.PackageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM records
		WHERE backend = ? AND installed = 1
		ORDER BY id
		LIMIT ? OFFSET ?
	`, backendID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CategoryIDs returns the package ids indexed under a category in insertion order
func (s *LibSQL) CategoryIDs(ctx context.Context, backendID, category string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM category_index
		WHERE backend = ? AND category = ?
		ORDER BY position
	`, backendID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list category ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category ids: %w", err)
	}

	return ids, nil
}

// Categories returns categories with package counts, ordered by name
func (s *LibSQL) Categories(ctx context.Context, backendID string) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM category_index
		WHERE backend = ?
		GROUP BY category
		ORDER BY category
	`, backendID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// Count returns the number of records cached for a backend
func (s *LibSQL) Count(ctx context.Context, backendID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE backend = ?
	`, backendID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ReplaceAll atomically replaces a backend's records and rebuilds its indexes
func (s *LibSQL) ReplaceAll(ctx context.Context, backendID string, records []*backend.PackageRecord, populatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE backend = ?`, backendID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_index WHERE backend = ?`, backendID); err != nil {
		return fmt.Errorf("failed to clear category index: %w", err)
	}

	// Positions preserve source-batch order per category so backends
	// control default display order.
	positions := make(map[string]int)

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (backend, id, installed, category, data, cached_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, backendID, rec.ID, rec.Installed, rec.Category, string(data), populatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}

		if rec.Category == "" {
			continue
		}
		pos := positions[rec.Category]
		positions[rec.Category] = pos + 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO category_index (backend, category, position, id)
			VALUES (?, ?, ?, ?)
		`, backendID, rec.Category, pos, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to index record %s: %w", rec.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generations (backend, populated_at) VALUES (?, ?)
		ON CONFLICT (backend) DO UPDATE SET populated_at = excluded.populated_at
	`, backendID, populatedAt)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// SetInstalled updates only the installed flag of a record
func (s *LibSQL) SetInstalled(ctx context.Context, backendID, packageID string, installed bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT data FROM records WHERE backend = ? AND id = ?
	`, backendID, packageID).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	rec.Installed = installed

	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", packageID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE records SET installed = ?, data = ?
		WHERE backend = ? AND id = ?
	`, installed, string(updated), backendID, packageID)
	if err != nil {
		return fmt.Errorf("failed to update installed flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit installed update: %w", err)
	}

	return nil
}

// PopulatedAt returns the generation timestamp, or the zero time
func (s *LibSQL) PopulatedAt(ctx context.Context, backendID string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT populated_at FROM generations WHERE backend = ?
	`, backendID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get generation: %w", err)
	}
	return at, nil
}

// Invalidate clears the generation timestamp without deleting data
func (s *LibSQL) Invalidate(ctx context.Context, backendID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM generations WHERE backend = ?
	`, backendID)
	if err != nil {
		return fmt.Errorf("failed to invalidate backend: %w", err)
	}
	return nil
}

// Purge removes all data for a backend
func (s *LibSQL) Purge(ctx context.Context, backendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM records WHERE backend = ?`,
		`DELETE FROM category_index WHERE backend = ?`,
		`DELETE FROM generations WHERE backend = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, backendID); err != nil {
			return fmt.Errorf("failed to purge backend: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *LibSQL) Close() error {
	return s.db.Close()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1 // No limit in sqlite
	}
	return limit
}

func decodeRecord(data string) (*backend.PackageRecord, error) {
	var rec backend.PackageRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*backend.PackageRecord, error) {
	var records []*backend.PackageRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
