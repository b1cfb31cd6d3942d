package docops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

func hotelsSchema() *schema.Index {
	return &schema.Index{
		Name: "hotels",
		Fields: []schema.Field{
			{Name: "id", Type: schema.EDMString, Key: true, Retrievable: true},
			{Name: "name", Type: schema.EDMString, Searchable: true, Retrievable: true},
			{Name: "rating", Type: schema.EDMDouble, Filterable: true, Retrievable: true},
			{Name: "amenities", Type: schema.EDMComplexType, Retrievable: true},
			{Name: "descriptionVector", Type: schema.EDMCollectionSingle, Dimensions: 3},
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *textindex.Index, *vectorstore.Store) {
	t.Helper()
	mgr := textindex.NewManager(t.TempDir())
	idx, err := mgr.Open("hotels", hotelsSchema())
	require.NoError(t, err)
	vectors := vectorstore.NewStore()
	vectors.EnsureField("descriptionVector", vectorstore.FieldConfig{Dimensions: 3})
	return New(hotelsSchema(), idx, vectors), idx, vectors
}

func TestUploadCreatesDocument(t *testing.T) {
	eng, idx, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{"id": "1", "name": "Seaside", "rating": 4.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Items[0].Succeeded)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestUploadMissingKeyFails(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{"name": "No Key"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 207, resp.StatusCode)
	assert.False(t, resp.Items[0].Succeeded)
}

func TestMergeFailsWhenDocumentMissing(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionMerge, Document: map[string]interface{}{"id": "1", "rating": 5.0}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Items[0].Succeeded)
	assert.Equal(t, ItemStatusNotFound, resp.Items[0].Status)
}

func TestMergePreservesUntouchedFields(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{"id": "1", "name": "Seaside", "rating": 4.0}},
	})
	require.NoError(t, err)

	resp, err := eng.Execute([]DocAction{
		{Action: ActionMerge, Document: map[string]interface{}{"id": "1", "rating": 4.9}},
	})
	require.NoError(t, err)
	require.True(t, resp.Items[0].Succeeded)

	existing, found, err := eng.existingFields("1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Seaside", existing["name"])
	assert.Equal(t, 4.9, existing["rating"])
}

func TestMergeOrUploadUploadsWhenAbsent(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionMergeOrUpload, Document: map[string]interface{}{"id": "1", "name": "Fresh"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Items[0].Succeeded)
}

func TestDeleteRemovesFromTextIndexAndVectorStore(t *testing.T) {
	eng, idx, vectors := newTestEngine(t)
	_, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{
			"id": "1", "name": "Seaside", "descriptionVector": []float32{1, 0, 0},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, vectors.FieldCount("descriptionVector"))

	resp, err := eng.Execute([]DocAction{{Action: ActionDelete, Document: map[string]interface{}{"id": "1"}}})
	require.NoError(t, err)
	assert.True(t, resp.Items[0].Succeeded)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
	assert.Equal(t, 0, vectors.FieldCount("descriptionVector"))
}

func TestUploadWithVectorFieldWritesBothStores(t *testing.T) {
	eng, _, vectors := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{
			"id": "1", "name": "Seaside", "descriptionVector": []float32{0.1, 0.2, 0.3},
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Items[0].Succeeded)
	assert.Equal(t, 1, vectors.FieldCount("descriptionVector"))
}

func TestUploadEncodesComplexFieldAsJSON(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{
			"id": "1", "name": "Seaside", "amenities": map[string]interface{}{"pool": true, "wifi": true},
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Items[0].Succeeded)

	existing, found, err := eng.existingFields("1")
	require.NoError(t, err)
	require.True(t, found)
	assert.IsType(t, "", existing["amenities"])
}

func TestMergeReplacesFieldValueNotUnioned(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{"id": "1", "name": "A B C"}},
	})
	require.NoError(t, err)

	resp, err := eng.Execute([]DocAction{
		{Action: ActionMerge, Document: map[string]interface{}{"id": "1", "name": "Z"}},
	})
	require.NoError(t, err)
	require.True(t, resp.Items[0].Succeeded)

	existing, _, err := eng.existingFields("1")
	require.NoError(t, err)
	assert.Equal(t, "Z", existing["name"])
}

func TestBatchStatusCodeIsMultiStatusWhenAllFail(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionMerge, Document: map[string]interface{}{"id": "does-not-exist"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 207, resp.StatusCode)
}

func TestBatchStatusCodeIs200WhenAnyItemSucceeds(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	resp, err := eng.Execute([]DocAction{
		{Action: ActionUpload, Document: map[string]interface{}{"id": "1", "name": "A"}},
		{Action: ActionMerge, Document: map[string]interface{}{"id": "missing"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
