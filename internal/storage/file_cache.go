package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// maxNameLen keeps file names under common filesystem limits.
const maxNameLen = 200

// FileCache stores opaque blobs as one file per key in a directory.
// The directory is advisory: any file may disappear at any time and callers
// must be able to rebuild it.
type FileCache struct {
	dir    string
	ext    string
	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// NewFileCache creates a new file cache rooted at dir. ext is appended to
// every file name, e.g. ".jpg".
func NewFileCache(dir, ext string) *FileCache {
	return &FileCache{dir: dir, ext: ext}
}

// Init creates the cache directory if needed.
func (fc *FileCache) Init() error {
	if err := os.MkdirAll(fc.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	return nil
}

// Path returns the file path backing key.
func (fc *FileCache) Path(key string) string {
	return filepath.Join(fc.dir, fileName(key)+fc.ext)
}

// Get returns the cached bytes for key. A missing file is a miss, not an error.
func (fc *FileCache) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(fc.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		fc.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		fc.misses.Add(1)
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		fc.misses.Add(1)
		return nil, false, nil
	}
	fc.hits.Add(1)
	return data, true, nil
}

// Put writes data for key. The file is written to a temp name in the same
// directory and renamed into place, so readers never observe a partial file.
func (fc *FileCache) Put(key string, data []byte) error {
	if err := fc.Init(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(fc.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod cache file: %w", err)
	}
	if err := os.Rename(tmpName, fc.Path(key)); err != nil {
		return fmt.Errorf("failed to commit cache file: %w", err)
	}

	fc.writes.Add(1)
	return nil
}

// GetStats returns cache statistics. files counts committed entries only.
func (fc *FileCache) GetStats() map[string]int64 {
	var files int64
	if entries, err := os.ReadDir(fc.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && !strings.HasPrefix(e.Name(), ".tmp-") {
				files++
			}
		}
	}

	return map[string]int64{
		"files":  files,
		"hits":   fc.hits.Load(),
		"misses": fc.misses.Load(),
		"writes": fc.writes.Load(),
	}
}

// fileName maps key to a safe file name. Keys that are already path-safe and
// short are used verbatim; anything else is hashed.
func fileName(key string) string {
	if key != "" && len(key) <= maxNameLen && isSafeName(key) {
		return key
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func isSafeName(s string) bool {
	if s[0] == '.' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
