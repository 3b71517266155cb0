// Package fs is the filesystem blob store backing the disk cache tier. Each
// key becomes one file in a flat directory; modification times drive the
// cache's oldest-first eviction.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voicetra/pipeline/cache"
)

const blobExt = ".blob"

// Store persists blobs as files under a single directory.
type Store struct {
	dir string
}

var _ cache.BlobStore = (*Store)(nil)

// NewStore creates (if needed) the directory and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Read(key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

func (s *Store) Write(key string, data []byte) error {
	// Write to a temp file then rename so readers never observe a partial blob.
	tmp, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path(key))
}

func (s *Store) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, blobExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, blobExt))
	}
	return keys, nil
}

func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) Stat(key string) (cache.BlobInfo, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		return cache.BlobInfo{}, err
	}
	return cache.BlobInfo{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// path maps a key to its file. Keys are hex fingerprints, safe as filenames.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+blobExt)
}
