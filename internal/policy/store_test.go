package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	st := State{
		Completed: []string{"a", "b"},
		Active:    "c",
		HighWater: map[string]float64{"a": 120.5, "c": 3},
	}
	require.NoError(t, store.Save("P001", "switching", st))

	got, err := store.Load("P001", "switching")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st, *got)
}

func TestFileStoreMissingStateIsNil(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.Load("P999", "switching")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreKeysAreIndependent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("P001", "switching", State{Active: "a"}))
	require.NoError(t, store.Save("P001", "non_switching", State{Active: "b"}))
	require.NoError(t, store.Save("P002", "switching", State{Active: "c"}))

	got, err := store.Load("P001", "switching")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Active)

	got, err = store.Load("P001", "non_switching")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Active)
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("../evil", "cond/../x", State{Active: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, filepath.Base(e.Name()), e.Name())
		assert.NotContains(t, e.Name(), "..")
	}

	got, err := store.Load("../evil", "cond/../x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Active)
}

func TestMemoryStoreSaveDetachesFromCaller(t *testing.T) {
	store := NewMemoryStore()

	st := State{
		Completed: []string{"a"},
		Active:    "b",
		HighWater: map[string]float64{"a": 120, "b": 5},
	}
	require.NoError(t, store.Save("P001", "switching", st))

	st.HighWater["b"] = 999
	st.Completed[0] = "zz"

	got, err := store.Load("P001", "switching")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5.0, got.HighWater["b"])
	assert.Equal(t, []string{"a"}, got.Completed)
}

func TestMemoryStoreLoadsAreIndependentCopies(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("P001", "switching", State{
		HighWater: map[string]float64{"a": 10},
	}))

	first, err := store.Load("P001", "switching")
	require.NoError(t, err)
	first.HighWater["a"] = 777

	second, err := store.Load("P001", "switching")
	require.NoError(t, err)
	assert.Equal(t, 10.0, second.HighWater["a"])
}
