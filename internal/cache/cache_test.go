package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	feats := map[string]float64{"pvc": 21.5, "binder_ratio": 0.4, "theoretical_cost": 12}

	key := Key("gloss-v1", feats)
	assert.Len(t, key, 64)

	// map order does not matter
	assert.Equal(t, key, Key("gloss-v1", map[string]float64{"theoretical_cost": 12, "pvc": 21.5, "binder_ratio": 0.4}))
}

func TestKey_Changes(t *testing.T) {
	base := map[string]float64{"pvc": 21.5, "binder_ratio": 0.4}
	key := Key("m", base)

	tests := []struct {
		name    string
		modelID string
		feats   map[string]float64
	}{
		{"different model", "other", base},
		{"different value", "m", map[string]float64{"pvc": 21.6, "binder_ratio": 0.4}},
		{"extra feature", "m", map[string]float64{"pvc": 21.5, "binder_ratio": 0.4, "voc_content": 0}},
		{"renamed feature", "m", map[string]float64{"pvc": 21.5, "binder": 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, key, Key(tt.modelID, tt.feats))
		})
	}
}

func TestCache_GetPut(t *testing.T) {
	c := New(t.TempDir())

	key := "test-key-123"
	entry := &Entry{ModelID: "gloss-v1", Predictions: map[string]float64{"gloss": 88.5}}

	// Cache miss
	retrieved, found := c.Get(key)
	assert.False(t, found)
	assert.Nil(t, retrieved)

	require.NoError(t, c.Put(key, entry))

	// Cache hit
	retrieved, found = c.Get(key)
	assert.True(t, found)
	require.NotNil(t, retrieved)
	assert.Equal(t, entry, retrieved)
	assert.Equal(t, 1, c.Len())
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))

	_, found := c.Get("bad")
	assert.False(t, found)
}

func TestCache_Clear(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := New(cacheDir)

	entry := &Entry{ModelID: "m", Predictions: map[string]float64{"gloss": 1}}
	require.NoError(t, c.Put("key1", entry))
	require.NoError(t, c.Put("key2", entry))

	n, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found := c.Get("key1")
	assert.False(t, found)
	_, err = os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))

	// clearing a missing directory is fine
	n, err = c.Clear()
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_ClearRefusesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0644))

	_, err := New(dir).Clear()
	require.ErrorIs(t, err, ErrNotCacheDir)
	assert.Contains(t, err.Error(), "notes.txt")

	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)

	sub := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(sub, "nested"), 0o755))
	_, err = New(sub).Clear()
	require.ErrorIs(t, err, ErrNotCacheDir)
}

func TestCache_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.Put("k", &Entry{ModelID: "m", Predictions: map[string]float64{"gloss": 1}}))
	require.NoError(t, c.Put("k", &Entry{ModelID: "m", Predictions: map[string]float64{"gloss": 2}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Predictions["gloss"])
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")

	_, found := c.Get("any-key")
	assert.False(t, found)
	assert.NoError(t, c.Put("key", &Entry{}))
	n, err := c.Clear()
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(t.TempDir())

	var wg sync.WaitGroup
	for id := range 10 {
		wg.Go(func() {
			key := fmt.Sprintf("key-%d", id)
			entry := &Entry{ModelID: "m", Predictions: map[string]float64{"gloss": float64(id)}}
			assert.NoError(t, c.Put(key, entry))
			got, found := c.Get(key)
			assert.True(t, found)
			assert.Equal(t, float64(id), got.Predictions["gloss"])
		})
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
}
