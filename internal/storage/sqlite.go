package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rentsplit/internal/household"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps the snapshot document in a single-row table and the
// generated reports in a statements table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save upserts the document inside a transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap household.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (household.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM snapshots WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return household.Default(), nil
	}
	if err != nil {
		return household.Default(), fmt.Errorf("query snapshot: %w", err)
	}
	return Decode([]byte(doc))
}

// RecordStatement appends a generated report to the history.
func (s *SQLiteStore) RecordStatement(ctx context.Context, e StatementEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO statements (year, month, policy, total_cents, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Year, e.Month, e.Policy, e.TotalCents, e.Body, e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("statement id: %w", err)
	}
	return id, nil
}

// ListStatements returns the reports generated for a period, oldest first.
func (s *SQLiteStore) ListStatements(ctx context.Context, year, month int) ([]StatementEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, month, policy, total_cents, body, created_at
		FROM statements WHERE year = ? AND month = ? ORDER BY id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []StatementEntry
	for rows.Next() {
		var (
			e       StatementEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Year, &e.Month, &e.Policy, &e.TotalCents, &e.Body, &created); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse statement time: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
