package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/serr"
)

// resourceCRUD is the shared list/get/upsert/delete shape every simple
// control-plane collection (datasources, skillsets, synonym maps, and the
// indexer definition itself) follows: validate, then persist a JSON blob
// keyed by name in the metadata store. Indexes are handled separately
// (indexes.go) since creating/deleting one also drives the text index and
// vector store lifecycle.
type resourceCRUD[T any] struct {
	kind      metadata.Kind
	store     *metadata.Store
	devMode   bool
	validate  func(*T) error
	nameOf    func(*T) string
	onCreate  func(*T) error // optional: side effects when a new resource is created
	onDeleted func(name string) error // optional: side effects after delete
}

func (c resourceCRUD[T]) list(w http.ResponseWriter, r *http.Request) {
	records, err := c.store.List(c.kind)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to list resources"), c.devMode)
		return
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec.Bytes, &v); err != nil {
			writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "stored resource is corrupt"), c.devMode)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": out})
}

func (c resourceCRUD[T]) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok, err := c.load(name)
	if err != nil {
		writeError(w, err, c.devMode)
		return
	}
	if !ok {
		writeError(w, serr.New(serr.ErrCodeResourceNotFound, "resource not found").WithTarget(name), c.devMode)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c resourceCRUD[T]) load(name string) (T, bool, error) {
	var v T
	bytes, _, ok, err := c.store.Get(c.kind, name)
	if err != nil {
		return v, false, serr.Wrap(serr.ErrCodeInternal, err, "failed to read resource")
	}
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal(bytes, &v); err != nil {
		return v, false, serr.Wrap(serr.ErrCodeInternal, err, "stored resource is corrupt")
	}
	return v, true, nil
}

func (c resourceCRUD[T]) upsert(w http.ResponseWriter, r *http.Request) {
	var v T
	if err := decodeJSON(r, &v); err != nil {
		writeError(w, err, c.devMode)
		return
	}
	if err := c.validate(&v); err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInvalidInput, err, "validation failed"), c.devMode)
		return
	}
	name := c.nameOf(&v)
	if pathName := chi.URLParam(r, "name"); pathName != "" && pathName != name {
		writeError(w, serr.New(serr.ErrCodeInvalidInput, "resource name in body does not match path").WithTarget("name"), c.devMode)
		return
	}

	existed, err := c.store.Exists(c.kind, name)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to check existing resource"), c.devMode)
		return
	}
	bytes, err := json.Marshal(v)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to encode resource"), c.devMode)
		return
	}
	if !existed && c.onCreate != nil {
		if err := c.onCreate(&v); err != nil {
			writeError(w, err, c.devMode)
			return
		}
	}
	if _, err := c.store.Put(c.kind, name, bytes); err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to persist resource"), c.devMode)
		return
	}
	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	writeJSON(w, status, v)
}

func (c resourceCRUD[T]) delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	existed, err := c.store.Delete(c.kind, name)
	if err != nil {
		writeError(w, serr.Wrap(serr.ErrCodeInternal, err, "failed to delete resource"), c.devMode)
		return
	}
	if !existed {
		writeError(w, serr.New(serr.ErrCodeResourceNotFound, "resource not found").WithTarget(name), c.devMode)
		return
	}
	if c.onDeleted != nil {
		if err := c.onDeleted(name); err != nil {
			writeError(w, err, c.devMode)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
