// Package cache keeps predictor responses on disk so repeated evaluations of
// the same mixture skip the predictor.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const ext = ".json"

// ErrNotCacheDir is returned by Clear when the directory holds anything
// other than cache entries.
var ErrNotCacheDir = errors.New("not a prediction cache directory")

// Entry is one cached prediction.
type Entry struct {
	ModelID     string             `json:"model_id"`
	Predictions map[string]float64 `json:"predictions"`
}

// Cache stores entries as <key>.json files in one directory. A Cache with
// an empty directory stores nothing.
type Cache struct {
	dir string
	mu  sync.RWMutex
}

// New returns a cache rooted at dir. The directory is created on the first
// Put.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) disabled() bool { return c.dir == "" }

// Key hashes a model id and feature vector into a hex SHA-256 key.
// Features are visited in name order and values hashed by their exact
// bit pattern, so equal vectors always share a key.
func Key(modelID string, features map[string]float64) string {
	h := sha256.New()
	field := func(s string) {
		h.Write([]byte(s)) //nolint:errcheck
		h.Write([]byte{0}) //nolint:errcheck
	}

	field(modelID)
	var buf [8]byte
	for _, name := range slices.Sorted(maps.Keys(features)) {
		field(name)
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(features[name]))
		h.Write(buf[:]) //nolint:errcheck
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry stored under key. Missing and unreadable entries
// are both misses.
func (c *Cache) Get(key string) (*Entry, bool) {
	if c.disabled() {
		return nil, false
	}
	c.mu.RLock()
	data, err := os.ReadFile(c.path(key))
	c.mu.RUnlock()
	if err != nil {
		return nil, false
	}

	var e Entry
	if json.Unmarshal(data, &e) != nil {
		return nil, false
	}
	return &e, true
}

// Put stores e under key. The file is written beside its final name and
// renamed into place, so readers never see a partial entry.
func (c *Cache) Put(key string, e *Entry) error {
	if c.disabled() {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear deletes the cache directory and reports how many entries it held.
// It refuses with ErrNotCacheDir when the directory contains anything but
// entries, and a missing directory counts as already clear.
func (c *Cache) Clear() (int, error) {
	if c.disabled() {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}

	n := 0
	for _, de := range entries {
		switch {
		case de.IsDir():
			return 0, fmt.Errorf("%s: subdirectory %q: %w", c.dir, de.Name(), ErrNotCacheDir)
		case strings.HasSuffix(de.Name(), ".tmp"):
		case filepath.Ext(de.Name()) == ext:
			n++
		default:
			return 0, fmt.Errorf("%s: unexpected file %q: %w", c.dir, de.Name(), ErrNotCacheDir)
		}
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return 0, fmt.Errorf("removing cache directory: %w", err)
	}
	return n, nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	if c.disabled() {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches, _ := filepath.Glob(filepath.Join(c.dir, "*"+ext))
	return len(matches)
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+ext)
}
