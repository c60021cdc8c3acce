package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage keys. Each key maps to one JSON document, rewritten in full on
// every mutation.
const (
	GroupsKey      = "rotc_attendance_groups"
	ActiveGroupKey = "rotc_active_group"
	UserKey        = "rotc_user"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// BlobStore persists one JSON blob per key as a file on disk. It is the
// storage port of the attendance store; writes replace the whole document.
type BlobStore struct {
	dir string
	mu  sync.RWMutex
}

// NewBlobStore creates the data directory if needed and returns a store
// rooted there.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Get reads the blob stored under key, or ErrNotFound.
func (s *BlobStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Put replaces the blob under key. The write goes to a temp file first and
// is renamed into place so a crash mid-write cannot truncate the old blob.
func (s *BlobStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit blob %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob under key. Deleting an absent key is not an error.
func (s *BlobStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *BlobStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(key))
	return err == nil
}

func (s *BlobStore) path(key string) string {
	// Keys are fixed constants, but sanitize anyway so a stray separator
	// cannot escape the data dir.
	key = strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(s.dir, key+".json")
}
