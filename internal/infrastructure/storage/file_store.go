package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

const fileExt = ".json"

// FileStore keeps each blob as <dir>/<name>.json. Every blob is written to a
// temp file first; the renames happen only after all writes succeeded.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates dir if needed
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	logger.Info("file artifact store initialized", zap.String("dir", dir))

	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Load implements Store
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		s.logger.Error("file load failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Save implements Store
func (s *FileStore) Save(ctx context.Context, blobs []Blob) error {
	if err := validateBlobs(blobs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	temps := make([]string, 0, len(blobs))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}

	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(s.dir, b)
		if err != nil {
			cleanup()
			s.logger.Error("file save failed", zap.String("name", b.Name), zap.Error(err))
			return fmt.Errorf("writing %s: %w", b.Name, err)
		}
		temps = append(temps, tmp)
	}

	for i, b := range blobs {
		if err := os.Rename(temps[i], s.path(b.Name)); err != nil {
			cleanup()
			return fmt.Errorf("publishing %s: %w", b.Name, err)
		}
	}

	s.logger.Debug("artifacts saved", zap.String("dir", s.dir), zap.Int("count", len(blobs)))
	return nil
}

func writeTemp(dir string, b Blob) (string, error) {
	f, err := os.CreateTemp(dir, "."+b.Name+"-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(b.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Ping implements Store
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return ctx.Err()
}

// Backend implements Store
func (s *FileStore) Backend() string {
	return "file"
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}
