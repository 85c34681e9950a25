package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRunDirAndLatestRunDir(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore()

	dir1, err := store.NewRunDir(root, "20260101_120000")
	require.NoError(t, err)
	dir2, err := store.NewRunDir(root, "20260101_130000")
	require.NoError(t, err)
	require.DirExists(t, dir1)
	require.DirExists(t, dir2)

	latest, err := store.LatestRunDir(root)
	require.NoError(t, err)
	require.Equal(t, dir2, latest)
}

func TestLatestRunDirIgnoresNonMatchingEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "not-a-run-dir"), 0o755))

	store := NewFileStore()
	latest, err := store.LatestRunDir(root)
	require.NoError(t, err)
	require.Empty(t, latest)
}

func TestWriteJSONThenReadJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	path := filepath.Join(dir, "latest_weights.json")

	type payload struct {
		Foo string `json:"foo"`
	}
	in := payload{Foo: "bar"}
	require.NoError(t, store.WriteJSON(path, in))

	var out payload
	require.NoError(t, store.ReadJSON(path, &out))
	require.Equal(t, in, out)
}

func TestThreadWeightFilesFiltersByPattern(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	require.NoError(t, store.WriteJSON(filepath.Join(dir, "thread_0_weights.json"), map[string]int{}))
	require.NoError(t, store.WriteJSON(filepath.Join(dir, "thread_1_weights.json"), map[string]int{}))
	require.NoError(t, store.WriteJSON(filepath.Join(dir, "latest_weights.json"), map[string]int{}))

	files, err := store.ThreadWeightFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestWriteIterationMarkerWritesDecimal(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	require.NoError(t, store.WriteIterationMarker(dir, 42))

	data, err := os.ReadFile(filepath.Join(dir, "checkpoint_iteration.txt"))
	require.NoError(t, err)
	require.Equal(t, "42", string(data))
}
