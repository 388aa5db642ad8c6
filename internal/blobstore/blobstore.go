// Package blobstore stores uploaded template packages on disk, one file per
// template ID. The descriptor lives in the database; the raw bytes live here.
package blobstore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Store writes and reads template blobs under a single directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the template bytes for the given ID, replacing any previous blob.
func (s *Store) Save(id string, data []byte) error {
	if !validID(id) {
		return fmt.Errorf("invalid template ID")
	}
	path := s.path(id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write template blob: %w", err)
	}
	return nil
}

// Load reads the template bytes for the given ID.
func (s *Store) Load(id string) ([]byte, error) {
	if !validID(id) {
		return nil, fmt.Errorf("invalid template ID")
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template blob %s not found", id)
		}
		return nil, fmt.Errorf("read template blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob for the given ID. Best-effort: a missing file is
// not an error, and failures are logged rather than propagated so the
// database record removal is never blocked by the filesystem.
func (s *Store) Delete(id string) {
	if !validID(id) {
		return
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		log.Printf("[BLOB] failed to remove template blob %s: %v", id, err)
	}
}

// Has reports whether a blob exists for the given ID.
func (s *Store) Has(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".pptx")
}

// validID accepts UUID-shaped identifiers: hex and dashes only. Anything
// else could traverse out of the blob directory.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || c == '-') {
			return false
		}
	}
	return true
}
