package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/solatis/farekeeper/internal/types"
)

/*
 * File-backed policy store.
 *
 * The canonical file always holds a complete document. Saves never write
 * it in place:
 *   1. Encode the collection as {"policies": [...]}
 *   2. Write to a uniquely named staging file in the same directory, fsync
 *   3. Re-read and re-parse the staging file; entry count must match
 *   4. Rename the staging file onto the canonical path (atomic on POSIX)
 *   5. fsync the directory so the rename survives a crash (best-effort)
 *
 * Any failure before step 4 removes the staging file best-effort and
 * returns ErrWriteFailed; the canonical file is untouched. The staging file
 * shares the canonical directory so the rename never crosses filesystems.
 */

// FileStore persists the collection as one JSON document.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex

	// readStaged reads back the staging file during verification.
	readStaged func(path string) ([]byte, error)
}

// NewFileStore creates a store rooted at path.
// Auto-creates the parent directory if not exists; the file itself is
// created on first Load or Save.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path:       path,
		logger:     logger.With("store", "file", "path", path),
		readStaged: os.ReadFile,
	}, nil
}

// Path returns the canonical file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the collection, bootstrapping an empty document if the file
// does not exist yet.
func (s *FileStore) Load(ctx context.Context) (types.PolicyCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptStore, err)
	}

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := s.commit(ctx, types.PolicyCollection{}); err != nil {
			return nil, err
		}
		s.logger.Info("initialized empty policy store")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrCorruptStore, s.path, err)
	}

	c, err := DecodeCollection(data)
	if err != nil {
		s.logger.Error("policy store content is malformed", "error", err)
		return nil, err
	}

	s.logger.Debug("policies loaded", "count", len(c))
	return c, nil
}

// Save replaces the stored collection.
func (s *FileStore) Save(ctx context.Context, c types.PolicyCollection) error {
	if err := validateCollection(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(ctx, c); err != nil {
		s.logger.Error("policy save failed", "error", err)
		return err
	}

	s.logger.Info("policies saved", "count", len(c))
	return nil
}

// Close is a no-op; FileStore holds no open handles between calls.
func (s *FileStore) Close() error {
	return nil
}

// commit runs the stage-verify-rename sequence. Caller holds s.mu.
func (s *FileStore) commit(ctx context.Context, c types.PolicyCollection) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}

	data, err := EncodeCollection(c)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", types.ErrWriteFailed, err)
	}

	dir, base := filepath.Split(s.path)
	staging := filepath.Join(dir, "."+base+"."+types.NewStagingToken()+".tmp")

	committed := false
	defer func() {
		if !committed {
			if rmErr := os.Remove(staging); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Warn("failed to remove staging file", "staging", staging, "error", rmErr)
			}
		}
	}()

	if err := writeSynced(staging, data); err != nil {
		return fmt.Errorf("%w: stage: %v", types.ErrWriteFailed, err)
	}

	staged, err := s.readStaged(staging)
	if err != nil {
		return fmt.Errorf("%w: verify: %v", types.ErrWriteFailed, err)
	}
	verified, err := DecodeCollection(staged)
	if err != nil {
		return fmt.Errorf("%w: verify: %v", types.ErrWriteFailed, err)
	}
	if len(verified) != len(c) {
		return fmt.Errorf("%w: verify: staged %d policies, expected %d", types.ErrWriteFailed, len(verified), len(c))
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}

	if err := os.Rename(staging, s.path); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrWriteFailed, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// writeSynced creates path exclusively, writes data and fsyncs it.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes directory metadata so a completed rename is durable.
// Best-effort: not every platform supports fsync on directories.
func syncDir(dir string) {
	if dir == "" {
		dir = "."
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
