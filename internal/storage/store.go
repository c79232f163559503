// Package storage persists the household snapshot.
//
// Two backends share the same JSON document: FileStore writes it to a single
// file, SQLiteStore keeps it in a one-row table next to a statement history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rentsplit/internal/household"
)

// SnapshotStore saves and loads the single snapshot record.
type SnapshotStore interface {
	// Save overwrites the record. It either completes or fails; a partially
	// written record is never visible.
	Save(ctx context.Context, s household.Snapshot) error
	// Load returns the stored snapshot, household.Default() when there is no
	// record, or household.Default() and an ErrCorruptRecord error when the
	// record cannot be decoded.
	Load(ctx context.Context) (household.Snapshot, error)
	Close() error
}

// StatementEntry is one generated payment report.
type StatementEntry struct {
	ID         int64
	Year       int
	Month      int
	Policy     string
	TotalCents int64
	Body       string
	CreatedAt  time.Time
}

// StatementLog is implemented by stores that keep a history of generated
// reports.
type StatementLog interface {
	RecordStatement(ctx context.Context, e StatementEntry) (int64, error)
	ListStatements(ctx context.Context, year, month int) ([]StatementEntry, error)
}

// FileStore keeps the snapshot as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The parent directory is
// created when missing.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

// Save writes to a temporary file in the same directory, syncs it and
// renames it over the record.
func (s *FileStore) Save(ctx context.Context, snap household.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (household.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return household.Default(), err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return household.Default(), nil
	}
	if err != nil {
		return household.Default(), fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

func (s *FileStore) Close() error { return nil }
