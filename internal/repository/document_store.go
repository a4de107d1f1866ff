package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"chore-tracker/internal/codec"
	"chore-tracker/internal/metrics"
	"chore-tracker/internal/model"
	"chore-tracker/internal/sentinel"
)

// DocumentStore loads and saves the encrypted application snapshot.
type DocumentStore struct {
	backend           Backend
	codec             *codec.Codec
	logger            *slog.Logger
	metrics           *metrics.Metrics
	freshOnCorruption bool
	now               func() time.Time
}

type StoreOption func(s *DocumentStore)

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *DocumentStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *DocumentStore) {
		s.metrics = m
	}
}

// WithFreshStartOnCorruption makes Load discard an unreadable, undecryptable
// or unparsable snapshot and return an empty document instead of failing.
// The next save overwrites the old snapshot, so the operator has to opt in.
func WithFreshStartOnCorruption() StoreOption {
	return func(s *DocumentStore) {
		s.freshOnCorruption = true
	}
}

func NewDocumentStore(backend Backend, c *codec.Codec, opts ...StoreOption) *DocumentStore {
	s := &DocumentStore{
		backend: backend,
		codec:   c,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the repaired document. A snapshot that was never written
// yields a fresh document. Read failures surface as sentinel.ErrIO, tag
// failures as sentinel.ErrIntegrity and parse failures as
// sentinel.ErrCorrupt, unless WithFreshStartOnCorruption is set.
func (s *DocumentStore) Load(ctx context.Context) (*model.Document, error) {
	raw, err := s.backend.Read(ctx)
	if errors.Is(err, ErrSnapshotMissing) {
		return model.NewDocument(), nil
	}
	if err != nil {
		return s.fallback(fmt.Errorf("%w: %w", sentinel.ErrIO, err))
	}

	env, err := codec.UnmarshalEnvelope(raw)
	if err != nil {
		return s.fallback(err)
	}
	plain, err := s.codec.Decrypt(env)
	if err != nil {
		return s.fallback(err)
	}

	var doc model.Document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return s.fallback(fmt.Errorf("%w: decode document: %v", sentinel.ErrCorrupt, err))
	}
	doc.Repair()
	return &doc, nil
}

func (s *DocumentStore) fallback(cause error) (*model.Document, error) {
	if !s.freshOnCorruption {
		return nil, cause
	}
	reason := "io"
	switch {
	case errors.Is(cause, sentinel.ErrIntegrity):
		reason = "integrity"
	case errors.Is(cause, sentinel.ErrCorrupt):
		reason = "corrupt"
	}
	s.logger.Warn("discarding unreadable snapshot, starting fresh", "reason", reason, "error", cause)
	s.metrics.IncrementLoadFallback(reason)
	return model.NewDocument(), nil
}

// Save encrypts the full document under a fresh IV and replaces the stored
// snapshot. Every failure is returned.
func (s *DocumentStore) Save(ctx context.Context, doc *model.Document) error {
	doc.Revision++
	plain, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	env, err := s.codec.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt document: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrIO, err)
	}
	s.metrics.ObserveSnapshotSave(len(data))
	s.logger.Debug("snapshot saved", "revision", doc.Revision, "bytes", len(data))
	return nil
}

// Backup copies the stored envelope, still encrypted, into dir and returns
// the path written.
func (s *DocumentStore) Backup(ctx context.Context, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: backup dir is required", sentinel.ErrValidation)
	}
	raw, err := s.backend.Read(ctx)
	if errors.Is(err, ErrSnapshotMissing) {
		return "", fmt.Errorf("%w: nothing to back up", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", sentinel.ErrIO, err)
	}

	name := fmt.Sprintf("chores-%s-%s.enc", s.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := writeFileAtomic(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("%w: write backup: %w", sentinel.ErrIO, err)
	}
	s.metrics.IncrementBackupsWritten()
	s.logger.Info("snapshot backup written", "path", path)
	return path, nil
}
