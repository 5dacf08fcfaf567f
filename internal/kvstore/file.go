package kvstore

import (
	"context"
	"encoding/hex"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

// FileStore keeps one file per key under a state directory. It is the
// default backend: the server-side analog of the browser's local storage.
// Writes go through a temp file + rename so a crash mid-write leaves either
// the old value or the new one, never a torn file.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed and returns a store
// rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}
	return &FileStore{dir: dir}, nil
}

// path maps a key to a filename. Keys contain session IDs and are not
// trusted as path components, so they are hashed.
func (s *FileStore) path(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(h.Sum(nil))+".bin")
}

// Get returns the stored value, or ErrNotFound when the file is absent or
// unreadable.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Set writes the value atomically.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	dst := s.path(key)

	tmp, err := os.CreateTemp(s.dir, ".kv-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write value")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename into place")
	}
	return nil
}

// Remove deletes the value. Removing an absent key is not an error.
func (s *FileStore) Remove(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove value")
	}
	return nil
}
