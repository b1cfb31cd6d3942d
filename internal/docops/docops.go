// Package docops implements component E, document operations: batch upload/merge/mergeOrUpload/delete actions applied to the
// text index (component B) and the vector store (component C) in
// lockstep, with independent per-item success/failure.
package docops

import (
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// Action names one batch item's verb.
type Action string

const (
	ActionUpload        Action = "upload"
	ActionMerge          Action = "merge"
	ActionMergeOrUpload  Action = "mergeOrUpload"
	ActionDelete         Action = "delete"
)

// DocAction is one item of a document batch: an action plus the document
// body, keyed by the index's key field.
type DocAction struct {
	Action   Action
	Document map[string]interface{}
}

// ItemStatus mirrors the per-item result status codes a batch response names.
type ItemStatus int

const (
	ItemStatusOK               ItemStatus = 200
	ItemStatusCreated          ItemStatus = 201
	ItemStatusNotFound         ItemStatus = 404
	ItemStatusBadRequest       ItemStatus = 400
)

// ItemResult is the outcome of one batch action.
type ItemResult struct {
	Key          string
	Status       ItemStatus
	Succeeded    bool
	ErrorMessage string
}

// BatchResponse is the full response to a document batch.
type BatchResponse struct {
	Items      []ItemResult
	StatusCode int // 200 if at least one item succeeded, else 207
}

// Engine applies document batches to one index's text index and vector
// store, keeping both in lockstep.
type Engine struct {
	idxSchema *schema.Index
	index     *textindex.Index
	vectors   *vectorstore.Store
}

func New(idxSchema *schema.Index, index *textindex.Index, vectors *vectorstore.Store) *Engine {
	return &Engine{idxSchema: idxSchema, index: index, vectors: vectors}
}

// Execute applies every action in the batch independently, collecting one
// ItemResult per item, and returns the aggregate response.
func (e *Engine) Execute(actions []DocAction) (*BatchResponse, error) {
	keyField, err := e.idxSchema.KeyField()
	if err != nil {
		return nil, fmt.Errorf("index has no usable key field: %w", err)
	}

	results := make([]ItemResult, 0, len(actions))
	anySucceeded := false
	for _, a := range actions {
		res := e.applyOne(keyField.Name, a)
		results = append(results, res)
		if res.Succeeded {
			anySucceeded = true
		}
	}

	status := 207
	if anySucceeded {
		status = 200
	}
	return &BatchResponse{Items: results, StatusCode: status}, nil
}

func (e *Engine) applyOne(keyFieldName string, a DocAction) ItemResult {
	key, ok := a.Document[keyFieldName].(string)
	if !ok || key == "" {
		return ItemResult{Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: fmt.Sprintf("missing or invalid key field %q", keyFieldName)}
	}

	switch a.Action {
	case ActionDelete:
		if err := e.index.Delete(key); err != nil {
			return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: err.Error()}
		}
		e.vectors.Delete(key)
		return ItemResult{Key: key, Status: ItemStatusOK, Succeeded: true}

	case ActionUpload:
		return e.upsert(key, a.Document, false)

	case ActionMerge:
		return e.upsert(key, a.Document, true)

	case ActionMergeOrUpload:
		existing, found, err := e.existingFields(key)
		if err != nil {
			return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: err.Error()}
		}
		if !found {
			return e.upsert(key, a.Document, false)
		}
		merged := mergeFields(existing, a.Document)
		return e.writeDocument(key, merged)

	default:
		return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: fmt.Sprintf("unknown action %q", a.Action)}
	}
}

// upsert handles both upload (replace) and merge (shallow-merge onto an
// existing document, failing per-item if it doesn't exist).
func (e *Engine) upsert(key string, doc map[string]interface{}, merge bool) ItemResult {
	if !merge {
		return e.writeDocument(key, doc)
	}

	existing, found, err := e.existingFields(key)
	if err != nil {
		return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: err.Error()}
	}
	if !found {
		return ItemResult{Key: key, Status: ItemStatusNotFound, Succeeded: false, ErrorMessage: fmt.Sprintf("document %q does not exist", key)}
	}
	merged := mergeFields(existing, doc)
	return e.writeDocument(key, merged)
}

// mergeFields shallow-merges patch onto base: scalar and collection fields
// in patch replace the corresponding field in base wholesale; fields only in
// base are left untouched.
func mergeFields(base, patch map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// writeDocument routes a document's fields to the text index and, for any
// declared vector field present with a value, to the vector store — the
// lockstep write a batch merge requires. Fields not declared on the index
// schema are dropped (schema-closure) without a per-item warning; the HTTP
// layer does not check fields up front, so this is the only place an
// undeclared field is filtered out.
func (e *Engine) writeDocument(key string, doc map[string]interface{}) ItemResult {
	textFields := make(map[string]interface{}, len(doc))
	var vectorWrites []vectorWrite

	for _, f := range e.idxSchema.Fields {
		v, present := doc[f.Name]
		if !present {
			continue
		}
		if f.Type.IsVector() {
			vec, err := toFloat32Slice(v)
			if err != nil {
				return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: fmt.Sprintf("field %q: %v", f.Name, err)}
			}
			vectorWrites = append(vectorWrites, vectorWrite{field: f.Name, vector: vec})
			continue
		}
		if f.Type == schema.EDMComplexType {
			if s, ok := v.(string); ok {
				// Already the stored JSON encoding, e.g. a merge base read
				// back from the index; encoding it again would corrupt it.
				textFields[f.Name] = s
				continue
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: fmt.Sprintf("field %q: %v", f.Name, err)}
			}
			textFields[f.Name] = string(encoded)
			continue
		}
		textFields[f.Name] = v
	}

	if err := e.index.Upsert(key, textFields); err != nil {
		return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: err.Error()}
	}
	for _, vw := range vectorWrites {
		if err := e.vectors.Put(vw.field, key, vw.vector); err != nil {
			return ItemResult{Key: key, Status: ItemStatusBadRequest, Succeeded: false, ErrorMessage: err.Error()}
		}
	}
	return ItemResult{Key: key, Status: ItemStatusOK, Succeeded: true}
}

type vectorWrite struct {
	field  string
	vector []float32
}

// existingFields fetches a document's currently stored field values (text
// fields only — vector values are never read back, only overwritten) for
// use as the merge base.
func (e *Engine) existingFields(key string) (map[string]interface{}, bool, error) {
	reader, err := e.index.OpenReader()
	if err != nil {
		return nil, false, err
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{key}))
	req.Fields = []string{"*"}
	result, err := reader.Bleve().Search(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch existing document %q: %w", key, err)
	}
	if len(result.Hits) == 0 {
		return nil, false, nil
	}
	return result.Hits[0].Fields, true, nil
}

func toFloat32Slice(v interface{}) ([]float32, error) {
	switch vv := v.(type) {
	case []float32:
		return vv, nil
	case []float64:
		out := make([]float32, len(vv))
		for i, f := range vv {
			out[i] = float32(f)
		}
		return out, nil
	case []interface{}:
		out := make([]float32, len(vv))
		for i, e := range vv {
			f, ok := toFloat64(e)
			if !ok {
				return nil, fmt.Errorf("vector element %d is not numeric", i)
			}
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a numeric array for vector field, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
