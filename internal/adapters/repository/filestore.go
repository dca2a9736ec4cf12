package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/logger"
)

// FileStore keeps the schedule in one JSON file.
type FileStore struct {
	path   string
	logger logger.Logger
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string, opts ...Option) *FileStore {
	o := buildOptions(opts)
	return &FileStore{path: path, logger: o.logger}
}

func (s *FileStore) Name() string { return BackendJSON }

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (store *recurrence.WeekStore, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrNotFound) {
			observe(ctx, s.logger, BackendJSON, "load", start, err)
		}
	}()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(data)
}

// Save writes to a temporary file in the same directory and renames it over
// the target, so readers never see a partial document.
func (s *FileStore) Save(ctx context.Context, store *recurrence.WeekStore) (err error) {
	start := time.Now()
	defer func() { observe(ctx, s.logger, BackendJSON, "save", start, err) }()

	data, err := Encode(store)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}
