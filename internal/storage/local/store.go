// Package local keeps JSON documents in a directory tree. It backs the
// file storage driver for sessions, drafts and transcripts.
package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const ext = ".json"

// Store reads and writes JSON documents addressed by slash-separated keys
// such as "sessions/<id>". A key maps to <base>/<key>.json. Writes go
// through a temp file and a rename so a crash never leaves half a document.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a store rooted at basePath, creating the directory.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Key joins parts into a document key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// resolve maps a key onto a path under the base directory. Keys that are
// empty, absolute or climb out of the base are rejected.
func (s *Store) resolve(key string) (string, error) {
	if key == "" || !fs.ValidPath(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// Put writes v as the document at key, replacing any previous version.
func (s *Store) Put(key string, v any) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p+ext); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Get decodes the document at key into v.
func (s *Store) Get(key string, v any) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}

	s.mu.RLock()
	data, err := os.ReadFile(p + ext)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Remove deletes the document at key.
func (s *Store) Remove(key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p + ext); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Names returns the names of the documents directly under prefix, sorted.
// A missing prefix has no documents.
func (s *Store) Names(prefix string) ([]string, error) {
	p, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries, err := os.ReadDir(p)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ext || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}
	sort.Strings(names)
	return names, nil
}

// RemoveTree deletes prefix and every document below it. Removing a missing
// tree is not an error.
func (s *Store) RemoveTree(prefix string) error {
	p, err := s.resolve(prefix)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("remove %s: %w", prefix, err)
	}
	return nil
}
