// Package filestore keeps the customer Database as a single JSON document on
// an afero filesystem. The OS filesystem backs the "file" driver and an
// in-memory filesystem backs the "memory" driver.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/infrastructure/monitoring"
	"loyalty-tracker/internal/pkg/apperrors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	DefaultPath = "data.json"
	tmpSuffix   = ".tmp"
	filePerm    = 0o644
)

type FileStore struct {
	fs      afero.Fs
	path    string
	strict  bool
	backend string
	logger  *slog.Logger

	initMu sync.Mutex
}

var _ customer.Storage = (*FileStore)(nil)

type Option func(*FileStore)

// WithStrict makes a malformed document a hard error instead of reading it
// as an empty Database.
func WithStrict(strict bool) Option {
	return func(s *FileStore) {
		s.strict = strict
	}
}

func New(fsys afero.Fs, path string, logger *slog.Logger, opts ...Option) *FileStore {
	if fsys == nil {
		panic("filesystem cannot be nil for FileStore")
	}
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to filestore.New, using default stderr handler")
	}
	s := &FileStore{
		fs:      fsys,
		path:    path,
		backend: "file",
		logger:  logger.With("component", "FileStore", "path", path),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewOS(path string, logger *slog.Logger, opts ...Option) *FileStore {
	return New(afero.NewOsFs(), path, logger, opts...)
}

// NewMemory keeps the document in process memory only.
func NewMemory(logger *slog.Logger, opts ...Option) *FileStore {
	s := New(afero.NewMemMapFs(), DefaultPath, logger, opts...)
	s.backend = "memory"
	return s
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (db *customer.Database, err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage(s.backend, "load", time.Since(start).Seconds(), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if raw, err = s.initialize(ctx); err != nil {
			return nil, err
		}
	} else if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read data file", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to read data file")
	}

	db, decodeErr := customer.UnmarshalDatabase(raw)
	if decodeErr != nil {
		if s.strict {
			s.logger.ErrorContext(ctx, "Data file is malformed", slog.Any("error", decodeErr))
			return nil, decodeErr
		}
		s.logger.WarnContext(ctx, "Data file is malformed, treating as empty database", slog.Any("error", decodeErr))
		return customer.NewDatabase(), nil
	}
	return db, nil
}

// initialize creates the data file with an empty Database unless another
// caller created it first, and returns the file's content either way.
func (s *FileStore) initialize(ctx context.Context) ([]byte, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	raw, err := afero.ReadFile(s.fs, s.path)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.WrapStorageError(err, "failed to read data file")
	}

	s.logger.InfoContext(ctx, "Data file not found, initializing empty database")
	db := customer.NewDatabase()
	if err := s.write(db); err != nil {
		return nil, err
	}
	return customer.MarshalDatabase(db)
}

func (s *FileStore) Replace(ctx context.Context, db *customer.Database) (err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage(s.backend, "replace", time.Since(start).Seconds(), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: database cannot be nil", apperrors.ErrInvalidArgument)
	}
	return s.write(db)
}

// write stages the document next to the target and renames it into place.
func (s *FileStore) write(db *customer.Database) error {
	body, err := customer.MarshalDatabase(db)
	if err != nil {
		return apperrors.WrapStorageError(err, "failed to encode database")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return apperrors.WrapStorageError(err, "failed to create data directory")
		}
	}

	tmp := s.path + tmpSuffix
	if err := afero.WriteFile(s.fs, tmp, body, filePerm); err != nil {
		s.logger.Error("Failed to write temporary data file", slog.Any("error", err))
		return apperrors.WrapStorageError(err, "failed to write data file")
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		s.logger.Error("Failed to move data file into place", slog.Any("error", err))
		_ = s.fs.Remove(tmp)
		return apperrors.WrapStorageError(err, "failed to replace data file")
	}
	return nil
}
