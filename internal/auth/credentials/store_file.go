package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// FileStore persists the bundle as JSON in a file readable only by the
// owning user. Writes go through a temp file plus rename so a crash mid-write
// never leaves a half-written bundle behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a store at the given path. An empty path resolves to
// credentials.json under the user config directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving user config dir: %w", err)
		}
		path = filepath.Join(base, "bookden", "credentials.json")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the stored bundle. A missing or unreadable file yields a zero
// bundle: corruption must degrade to "not authenticated", never to a crash
// or a stuck boot.
func (s *FileStore) Load() (Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(), nil
}

func (s *FileStore) loadLocked() Bundle {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Bundle{}
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}
	}
	return b
}

func (s *FileStore) Save(in Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(s.loadLocked().merge(in))
}

func (s *FileStore) Replace(in Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(in)
}

// Clear removes the bundle. Clearing an already-empty store succeeds.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

func (s *FileStore) writeLocked(b Bundle) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting credentials file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credentials file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("committing credentials: %w", err)
	}
	return nil
}
