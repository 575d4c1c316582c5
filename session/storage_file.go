package session

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStorage keeps the session record in a single JSON file, created with
// owner-only permissions.
type FileStorage struct {
	path string
}

// NewFileStorage creates a file-backed storage at the given path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the stored record. A missing file maps to ErrNotStored.
func (f *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStorage.Load] read session file")
	}
	return data, nil
}

// Save writes the record. The parent directory is created on demand and the
// write goes through a temp file plus rename so a crash never leaves a
// half-written record behind.
func (f *FileStorage) Save(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileStorage.Save] create session dir")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "[FileStorage.Save] create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStorage.Save] write session")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStorage.Save] chmod session file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStorage.Save] close temp file")
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStorage.Save] rename session file")
	}
	return nil
}

// Remove deletes the stored record. Removing a record that does not exist is
// not an error.
func (f *FileStorage) Remove() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStorage.Remove] remove session file")
	}
	return nil
}
