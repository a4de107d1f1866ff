package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chore-tracker/internal/model"
)

// ErrSnapshotMissing reports that nothing has been written yet.
var ErrSnapshotMissing = errors.New("snapshot missing")

// Backend holds the encrypted envelope bytes. Writes replace the whole
// snapshot; a reader never sees a partially written one.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// FileBackend keeps the envelope in a single file.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return data, nil
}

func (b *FileBackend) Write(_ context.Context, data []byte) error {
	if err := writeFileAtomic(b.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}

// SQLiteBackend keeps the envelope in the single row of the snapshots table.
type SQLiteBackend struct {
	db *gorm.DB
}

const snapshotRowID = 1

func NewSQLiteBackend(db *gorm.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var snap model.Snapshot
	err := b.db.WithContext(ctx).First(&snap, snapshotRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	return []byte(snap.Envelope), nil
}

func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	snap := model.Snapshot{ID: snapshotRowID, Envelope: string(data)}
	err := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&snap).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data via a synced temp file in the
// same directory and a rename, then syncs the directory.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
