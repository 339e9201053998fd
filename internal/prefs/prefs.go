// Package prefs is a small namespaced integer preference store. Each
// namespace is one YAML file under a base directory.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
)

// FileStore keeps <dir>/<namespace>.yaml files of key: int pairs.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Int returns the stored value for key, or def when the namespace or key
// does not exist yet.
func (s *FileStore) Int(namespace, key string, def int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load(namespace)
	if err != nil {
		return def, err
	}
	v, ok := values[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

// SetInt stores value under key, keeping the namespace's other keys.
func (s *FileStore) SetInt(namespace, key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load(namespace)
	if err != nil {
		// A corrupt namespace is overwritten.
		values = nil
	}
	if values == nil {
		values = make(map[string]int)
	}
	values[key] = value
	return s.save(namespace, values)
}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".yaml")
}

func (s *FileStore) load(namespace string) (map[string]int, error) {
	data, err := os.ReadFile(s.path(namespace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var values map[string]int
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", namespace, err)
	}
	return values, nil
}

// save writes the namespace atomically.
func (s *FileStore) save(namespace string, values map[string]int) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	path := s.path(namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
