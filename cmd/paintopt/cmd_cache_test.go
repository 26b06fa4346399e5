package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheClear(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	writeFile(t, cacheDir, "abc.json", `{"model_id":"m","predictions":{"gloss":1}}`)

	out, _, err := runCLI(t, "cache", "clear", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared")
	assert.Contains(t, out, "(1 entries)")
	assert.NoDirExists(t, cacheDir)
}

func TestCacheClear_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "preds")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	writeFile(t, cacheDir, "k.json", "{}")
	writeFile(t, dir, ".paintopt.yaml", "cache:\n  dir: "+cacheDir+"\n")

	_, _, err := runCLI(t, "cache", "clear", "--dir", dir)
	require.NoError(t, err)
	assert.NoDirExists(t, cacheDir)
}

func TestCacheClear_RefusesForeignFiles(t *testing.T) {
	cacheDir := t.TempDir()
	writeFile(t, cacheDir, "notes.txt", "keep me")

	_, _, err := runCLI(t, "cache", "clear", "--cache-dir", cacheDir)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, "notes.txt"))
}
