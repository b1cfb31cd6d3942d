package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	etag, err := s.Put(KindIndex, "hotels", []byte(`{"name":"hotels"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	bytes, gotEtag, ok, err := s.Get(KindIndex, "hotels")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"name":"hotels"}`, string(bytes))
	assert.Equal(t, etag, gotEtag)
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	s := openTestStore(t)
	_, _, ok, err := s.Get(KindIndex, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutRejectsInvalidName(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Put(KindIndex, "Bad Name", []byte("x"))
	assert.Error(t, err)
}

func TestPutRejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Put(Kind("bogus"), "hotels", []byte("x"))
	assert.Error(t, err)
}

func TestEtagMonotoneAcrossWrites(t *testing.T) {
	s := openTestStore(t)
	etag1, err := s.Put(KindIndex, "hotels", []byte("v1"))
	require.NoError(t, err)
	etag2, err := s.Put(KindIndex, "hotels", []byte("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, etag1, etag2)

	bytes, _, _, err := s.Get(KindIndex, "hotels")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(bytes))
}

func TestDeleteReportsPriorExistence(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Put(KindIndex, "hotels", []byte("v1"))
	require.NoError(t, err)

	existed, err := s.Delete(KindIndex, "hotels")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(KindIndex, "hotels")
	require.NoError(t, err)
	assert.False(t, existed)

	ok, err := s.Exists(KindIndex, "hotels")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReturnsSortedSnapshot(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Put(KindIndex, "zebra", []byte("z"))
	require.NoError(t, err)
	_, err = s.Put(KindIndex, "alpha", []byte("a"))
	require.NoError(t, err)
	_, err = s.Put(KindDataSource, "other-kind", []byte("x"))
	require.NoError(t, err)

	records, err := s.List(KindIndex)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "zebra", records[1].Name)
}

func TestListRejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	_, err := s.List(Kind("bogus"))
	assert.Error(t, err)
}

func TestReopenPersistsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Put(KindIndex, "hotels", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	bytes, _, ok, err := s2.Get(KindIndex, "hotels")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(bytes))
}
