package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutSearchCosine(t *testing.T) {
	s := NewStore()
	s.EnsureField("vec", FieldConfig{Dimensions: 4, Algorithm: AlgorithmHNSW, Similarity: SimilarityCosine})

	require.NoError(t, s.Put("vec", "A", []float32{1, 0, 0, 0}))
	require.NoError(t, s.Put("vec", "B", []float32{0.9, 0.1, 0, 0}))
	require.NoError(t, s.Put("vec", "C", []float32{0, 1, 0, 0}))

	results, err := s.Search("vec", []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Key)
	assert.Equal(t, "B", results[1].Key)
}

func TestStoreDimensionMismatch(t *testing.T) {
	s := NewStore()
	s.EnsureField("vec", FieldConfig{Dimensions: 4})
	err := s.Put("vec", "A", []float32{1, 2, 3})
	require.Error(t, err)
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}

func TestStoreDeleteRemovesFromAllFields(t *testing.T) {
	s := NewStore()
	s.EnsureField("a", FieldConfig{Dimensions: 2})
	s.EnsureField("b", FieldConfig{Dimensions: 2})
	require.NoError(t, s.Put("a", "k1", []float32{1, 0}))
	require.NoError(t, s.Put("b", "k1", []float32{0, 1}))

	s.Delete("k1")

	assert.Equal(t, 0, s.FieldCount("a"))
	assert.Equal(t, 0, s.FieldCount("b"))
}

func TestBruteForceFilterKeys(t *testing.T) {
	s := NewStore()
	s.EnsureField("vec", FieldConfig{Dimensions: 2, Algorithm: AlgorithmBruteForce, Similarity: SimilarityDotProduct})
	require.NoError(t, s.Put("vec", "x", []float32{1, 0}))
	require.NoError(t, s.Put("vec", "y", []float32{0, 1}))

	results, err := s.Search("vec", []float32{1, 0}, 5, []string{"y"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].Key)
}

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	store, err := mgr.Open("hotels")
	require.NoError(t, err)
	store.EnsureField("vec", FieldConfig{Dimensions: 3, Algorithm: AlgorithmHNSW, Similarity: SimilarityCosine})
	require.NoError(t, store.Put("vec", "doc1", []float32{1, 0, 0}))

	require.NoError(t, mgr.Save("hotels"))
	require.FileExists(t, filepath.Join(dir, "hotels", "vectors.gob"))

	mgr2 := NewManager(dir)
	reloaded, err := mgr2.Open("hotels")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.FieldCount("vec"))

	results, err := reloaded.Search("vec", []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].Key)
}

func TestManagerDrop(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)
	store, err := mgr.Open("hotels")
	require.NoError(t, err)
	store.EnsureField("vec", FieldConfig{Dimensions: 2})

	require.NoError(t, mgr.Drop("hotels"))
	assert.NoDirExists(t, filepath.Join(dir, "hotels"))
}
