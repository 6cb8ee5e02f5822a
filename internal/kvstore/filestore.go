package kvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// FileStore implements Store on top of an afero filesystem, one file per key
// under a data directory. Using afero keeps tests on an in-memory filesystem
// while production uses the OS one.
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

// pathFor maps a namespace key to a file path. Key segments are separated by
// ';' which is not filename-safe everywhere, so segments become path-safe
// dashes: "Chatterbox;ModuleConfigs;time" -> "Chatterbox-ModuleConfigs-time.json".
func (s *FileStore) pathFor(key string) string {
	name := strings.ReplaceAll(key, ";", "-")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return filepath.Join(s.dir, name+".json")
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, key string, def []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := afero.ReadFile(s.fs, s.pathFor(key))
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return raw, nil
}

// Set implements Store. The value is written to a temporary file and renamed
// into place so a crash mid-write never leaves a truncated value behind.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := s.pathFor(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(s.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Path returns the backing file for key. The chatbox config watcher uses it
// to watch for external edits.
func (s *FileStore) Path(key string) string {
	return s.pathFor(key)
}
