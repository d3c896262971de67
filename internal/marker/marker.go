// Package marker persists boot intent across the restart boundary.
//
// A marker is a small file whose presence is the whole message: the reset
// handler writes one before the device reboots, the next boot consumes it
// exactly once and acts on it. Writes are atomic so a power cut mid-write can
// never leave a half-marker behind.
package marker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// Store manages the durable markers under a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("marker dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the full path of the named marker.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Set writes the named marker atomically. The content is a timestamp for
// forensics only; consumers look at presence, never at content.
func (s *Store) Set(name string) error {
	body := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	return renameio.WriteFile(s.Path(name), body, 0o644)
}

// Present reports whether the named marker exists.
func (s *Store) Present(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Consume removes the named marker, returning whether it was present.
// An already-absent marker is a normal result, not an error.
func (s *Store) Consume(name string) (bool, error) {
	err := os.Remove(s.Path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
