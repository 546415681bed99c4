package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// PosterCache movie ID (decimal) to TMDB poster path. A nil value means the
// lookup was done and there is no poster; a missing key means not looked up yet.
type PosterCache map[string]*string

// LoadPosterCache reads the cache file. A missing file is an empty cache.
func LoadPosterCache(path string) (PosterCache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return PosterCache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read poster cache: %w", err)
	}
	cache := PosterCache{}
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse poster cache %s: %w", path, err)
	}
	return cache, nil
}

// Save overwrites path with the full cache. The file is replaced atomically,
// so a killed run leaves either the old or the new checkpoint.
func (c PosterCache) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode poster cache: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".poster-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod poster cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write poster cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write poster cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace poster cache: %w", err)
	}
	return nil
}

// Has reports whether id was already looked up.
func (c PosterCache) Has(id int64) bool {
	_, ok := c[strconv.FormatInt(id, 10)]
	return ok
}

// Set records a lookup outcome; nil means no poster.
func (c PosterCache) Set(id int64, path *string) {
	c[strconv.FormatInt(id, 10)] = path
}

// URL joins imageBase and the cached path for id, nil when there is no usable path.
func (c PosterCache) URL(id int64, imageBase string) *string {
	path := c[strconv.FormatInt(id, 10)]
	if path == nil || *path == "" {
		return nil
	}
	u := strings.TrimSuffix(imageBase, "/") + "/" + strings.TrimPrefix(*path, "/")
	return &u
}
