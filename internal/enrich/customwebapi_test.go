package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/schema"
)

func TestRunCustomWebAPIRoundTripsAndCorrelatesByRecordID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webAPIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := webAPIResponse{}
		for _, rec := range req.Values {
			text, _ := rec.Data["text"].(string)
			resp.Values = append(resp.Values, webAPIRecord{
				RecordID: rec.RecordID,
				Data:     map[string]interface{}{"upper": text + "!"},
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	root := NewDocument(map[string]interface{}{"content": "hello"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "webapi",
				Type:    schema.SkillCustomWebAPI,
				Context: "/document",
				Inputs:  []schema.InputMapping{{Name: "text", Source: "/document/content"}},
				Outputs: []schema.OutputMapping{{Name: "upper", TargetName: "shouted"}},
				CustomWebAPI: &schema.CustomWebAPIParams{
					URI:                 srv.URL,
					BatchSize:           1,
					DegreeOfParallelism: 2,
				},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)
	assert.Equal(t, "hello!", Get(root, "/document/shouted").StringValue())
}

func TestRunCustomWebAPIFailureProducesWarningNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := NewDocument(map[string]interface{}{"content": "hello"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "webapi",
				Type:    schema.SkillCustomWebAPI,
				Context: "/document",
				Inputs:  []schema.InputMapping{{Name: "text", Source: "/document/content"}},
				Outputs: []schema.OutputMapping{{Name: "upper", TargetName: "shouted"}},
				CustomWebAPI: &schema.CustomWebAPIParams{
					URI: srv.URL,
				},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindNull, Get(root, "/document/shouted").Kind)
}
