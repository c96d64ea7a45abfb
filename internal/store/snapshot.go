package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

const (
	OpLoad = "load"
	OpSave = "save"
)

var ErrInvalidID = errors.New("invalid snapshot identifier")

// StorageError is any snapshot read or write failure other than a missing
// snapshot, which Load reports as found == false.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FileStore keeps one file per snapshot identifier under dir.
type FileStore struct {
	dir  string
	perm os.FileMode
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir, perm: 0o644}
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Load returns the last saved content for id. A snapshot that was never
// written yields ("", false, nil).
func (s *FileStore) Load(ctx context.Context, id string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, &StorageError{Op: OpLoad, ID: id, Err: err}
	}
	path, err := s.path(id)
	if err != nil {
		return "", false, &StorageError{Op: OpLoad, ID: id, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, &StorageError{Op: OpLoad, ID: id, Err: err}
	}
	return string(data), true, nil
}

// Save replaces the snapshot for id. The file is written to a temporary
// sibling, synced and renamed into place, so readers observe either the old
// or the new content.
func (s *FileStore) Save(ctx context.Context, id, content string) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: OpSave, ID: id, Err: err}
	}
	path, err := s.path(id)
	if err != nil {
		return &StorageError{Op: OpSave, ID: id, Err: err}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &StorageError{Op: OpSave, ID: id, Err: fmt.Errorf("create snapshot dir: %w", err)}
	}
	if err := renameio.WriteFile(path, []byte(content), s.perm); err != nil {
		return &StorageError{Op: OpSave, ID: id, Err: err}
	}
	return nil
}

func (s *FileStore) path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id), nil
}

// ValidateID accepts identifiers that name exactly one file inside the
// snapshot directory.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	}
	return nil
}
