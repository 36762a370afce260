// Package settings is the host-side persisted key/value store backing the
// config-load and config-save-partial messages. Keys are opaque to the
// shell core; each key is stored as its own file so partial saves never
// rewrite unrelated state.
package settings

import (
	"fmt"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// Well-known keys the surface persists. The store itself does not
// interpret them.
const (
	KeyHideNav    = "hideNav"
	KeyHideHeader = "hideHeader"
)

// Store persists opaque key/value pairs under a base directory.
type Store struct {
	mu sync.Mutex
	d  *diskv.Diskv
}

// Open creates a Store rooted at dir, creating it on first write.
func Open(dir string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 64 * 1024,
		}),
	}
}

// Load reads every persisted key into a map. A missing directory is an
// empty store, not an error.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for key := range s.d.Keys(nil) {
		val, err := s.d.Read(key)
		if err != nil {
			return nil, fmt.Errorf("settings: read %q: %w", key, err)
		}
		out[key] = string(val)
	}
	return out, nil
}

// SavePartial merges the patch into the store, leaving absent keys intact.
func (s *Store) SavePartial(patch map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, val := range patch {
		if err := s.d.Write(key, []byte(val)); err != nil {
			return fmt.Errorf("settings: write %q: %w", key, err)
		}
	}
	return nil
}

// Get reads one key; ok is false when it was never persisted.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.d.Has(key) {
		return "", false
	}
	val, err := s.d.Read(key)
	if err != nil {
		return "", false
	}
	return string(val), true
}
