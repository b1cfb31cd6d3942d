package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCreateHotelsIndex(t *testing.T, router http.Handler) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/indexes", map[string]interface{}{
		"name": "hotels",
		"suggesters": []map[string]interface{}{
			{"name": "sg", "sourceFields": []string{"name"}},
		},
		"fields": []map[string]interface{}{
			{"name": "id", "type": "Edm.String", "key": true, "retrievable": true},
			{"name": "name", "type": "Edm.String", "searchable": true, "filterable": true, "sortable": true, "retrievable": true},
			{"name": "rating", "type": "Edm.Double", "filterable": true, "sortable": true, "facetable": true, "retrievable": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestDocIndexSearchGetCountRoundTrip(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	mustCreateHotelsIndex(t, router)

	w := doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/index", map[string]interface{}{
		"value": []map[string]interface{}{
			{"@search.action": "upload", "id": "1", "name": "Grand Budapest Hotel", "rating": 4.8},
			{"@search.action": "upload", "id": "2", "name": "Cheap Motel", "rating": 2.1},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	countW := doJSON(t, router, http.MethodGet, "/indexes/hotels/docs/$count", nil)
	require.Equal(t, http.StatusOK, countW.Code)
	var count uint64
	require.NoError(t, json.NewDecoder(countW.Body).Decode(&count))
	require.Equal(t, uint64(2), count)

	searchW := doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/search", map[string]interface{}{
		"search":  "*",
		"orderby": "rating desc",
		"top":     1,
	})
	require.Equal(t, http.StatusOK, searchW.Code, searchW.Body.String())
	var searchResp struct {
		Value []map[string]interface{} `json:"value"`
	}
	require.NoError(t, json.NewDecoder(searchW.Body).Decode(&searchResp))
	require.Len(t, searchResp.Value, 1)
	require.Equal(t, "1", searchResp.Value[0]["id"])

	getW := doJSON(t, router, http.MethodGet, "/indexes/hotels/docs/2", nil)
	require.Equal(t, http.StatusOK, getW.Code)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(getW.Body).Decode(&doc))
	require.Equal(t, "Cheap Motel", doc["name"])
}

func TestDocGetUnknownKeyIsNotFound(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	mustCreateHotelsIndex(t, router)

	w := doJSON(t, router, http.MethodGet, "/indexes/hotels/docs/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocSuggestAndAutocomplete(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	mustCreateHotelsIndex(t, router)

	doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/index", map[string]interface{}{
		"value": []map[string]interface{}{
			{"@search.action": "upload", "id": "1", "name": "Grand Budapest Hotel", "rating": 4.8},
		},
	})

	suggestW := doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/suggest", map[string]interface{}{
		"search":        "Grand Bud",
		"suggesterName": "sg",
	})
	require.Equal(t, http.StatusOK, suggestW.Code, suggestW.Body.String())
	var suggestResp struct {
		Value []map[string]interface{} `json:"value"`
	}
	require.NoError(t, json.NewDecoder(suggestW.Body).Decode(&suggestResp))
	require.Len(t, suggestResp.Value, 1)
	require.Equal(t, "1", suggestResp.Value[0]["id"])

	autoW := doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/autocomplete", map[string]interface{}{
		"search":        "Gra",
		"suggesterName": "sg",
	})
	require.Equal(t, http.StatusOK, autoW.Code, autoW.Body.String())
	var autoResp struct {
		Value []map[string]interface{} `json:"value"`
	}
	require.NoError(t, json.NewDecoder(autoW.Body).Decode(&autoResp))
	require.NotEmpty(t, autoResp.Value)
}

func TestIndexDeleteDropsDocuments(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	mustCreateHotelsIndex(t, router)

	doJSON(t, router, http.MethodPost, "/indexes/hotels/docs/index", map[string]interface{}{
		"value": []map[string]interface{}{{"@search.action": "upload", "id": "1", "name": "Inn", "rating": 3.0}},
	})

	delW := doJSON(t, router, http.MethodDelete, "/indexes/hotels", nil)
	require.Equal(t, http.StatusNoContent, delW.Code)

	getW := doJSON(t, router, http.MethodGet, "/indexes/hotels", nil)
	require.Equal(t, http.StatusNotFound, getW.Code)
}
