// Package textindex wraps bleve as the persistent inverted-index manager
// (component B): one bleve.Index per searchemu index,
// schema-driven field mapping, and corruption auto-recovery grounded on
// the teacher's BleveBM25Index.
package textindex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/searchemu/searchemu/internal/schema"
)

// Index is the open handle for one searchemu index's inverted index.
type Index struct {
	mu     sync.RWMutex
	name   string
	schema *schema.Index
	bidx   bleve.Index
	path   string
	closed bool
}

// Manager owns one Index per open searchemu index, mirroring the vector
// store manager's lifecycle so the two persistent components (B and C)
// stay structurally parallel.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	indexes map[string]*Index
}

func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir, indexes: make(map[string]*Index)}
}

func (m *Manager) indexPath(name string) string {
	return filepath.Join(m.dataDir, name, "bleve")
}

// Open returns the Index for name, creating its on-disk bleve index (per
// idxSchema's mapping) on first access and auto-recovering from a
// corrupted index directory.
func (m *Manager) Open(name string, idxSchema *schema.Index) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.indexes[name]; ok {
		return idx, nil
	}

	im, err := buildMapping(idxSchema)
	if err != nil {
		return nil, err
	}

	path := m.indexPath(name)
	bidx, err := openOrCreate(path, im)
	if err != nil {
		return nil, err
	}

	idx := &Index{name: name, schema: idxSchema, bidx: bidx, path: path}
	m.indexes[name] = idx
	return idx, nil
}

// Close flushes and releases name's index handle.
func (m *Manager) Close(name string) error {
	m.mu.Lock()
	idx, ok := m.indexes[name]
	delete(m.indexes, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return idx.Close()
}

// Drop permanently deletes an index's inverted-index data.
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	idx, ok := m.indexes[name]
	delete(m.indexes, name)
	m.mu.Unlock()
	if ok {
		_ = idx.Close()
	}
	return os.RemoveAll(filepath.Join(m.dataDir, name))
}

// openOrCreate opens an existing bleve index at path, creates a new one
// with mapping im if none exists, and wipes+recreates on detected
// corruption — the same BUG-049 recovery strategy as the teacher's
// NewBleveBM25Index, generalized to a caller-supplied mapping.
func openOrCreate(path string, im *mapping.IndexMappingImpl) (bleve.Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		slog.Warn("textindex_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original: %v)", path, removeErr, validErr)
		}
		slog.Info("textindex_cleared", slog.String("path", path), slog.String("reason", "corruption detected"))
	}

	bidx, err := bleve.Open(path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		bidx, err = bleve.New(path, im)
	case err != nil && isCorruptionError(err):
		slog.Warn("textindex_open_failed", slog.String("path", path), slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted, cannot clear: %w (original: %v)", removeErr, err)
		}
		bidx, err = bleve.New(path, im)
	}
	if err != nil {
		return nil, fmt.Errorf("open/create index at %s: %w", path, err)
	}
	return bidx, nil
}

// Upsert writes or overwrites one document. fields is a flat map from
// field name to a Go value matching the field's bleve mapping (string,
// float64, bool, time.Time, []interface{}, or a pre-JSON-encoded string
// for Edm.ComplexType).
func (idx *Index) Upsert(key string, fields map[string]interface{}) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index %q is closed", idx.name)
	}
	return idx.bidx.Index(key, fields)
}

// UpsertBatch writes many documents as a single bleve batch, matching the
// commit granularity docops needs for a whole action batch.
func (idx *Index) UpsertBatch(docs map[string]map[string]interface{}) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index %q is closed", idx.name)
	}
	batch := idx.bidx.NewBatch()
	for key, fields := range docs {
		if err := batch.Index(key, fields); err != nil {
			return fmt.Errorf("batch index %s: %w", key, err)
		}
	}
	return idx.bidx.Batch(batch)
}

// Delete removes one document by key. Deleting an absent key is a no-op,
// matching bleve's own semantics.
func (idx *Index) Delete(key string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index %q is closed", idx.name)
	}
	return idx.bidx.Delete(key)
}

// DeleteBatch removes many documents as a single bleve batch.
func (idx *Index) DeleteBatch(keys []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index %q is closed", idx.name)
	}
	batch := idx.bidx.NewBatch()
	for _, k := range keys {
		batch.Delete(k)
	}
	return idx.bidx.Batch(batch)
}

// Commit is a no-op: bleve persists every Index/Batch/Delete call
// synchronously, the same as the teacher's BleveBM25Index.Save. Kept as
// an explicit method so callers following component B's contract
// (upsert/delete/commit) don't need to special-case this implementation.
func (idx *Index) Commit() error {
	return nil
}

// DeleteAll clears every document, used by the indexer reset path and by
// index schema updates that require a full rebuild.
func (idx *Index) DeleteAll() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index %q is closed", idx.name)
	}

	ids, err := idx.allIDsLocked()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	batch := idx.bidx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return idx.bidx.Batch(batch)
}

func (idx *Index) allIDsLocked() ([]string, error) {
	query := bleve.NewMatchAllQuery()
	docCount, _ := idx.bidx.DocCount()
	req := bleve.NewSearchRequest(query)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := idx.bidx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list all ids: %w", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// DocCount returns the number of documents currently in the index.
func (idx *Index) DocCount() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0, fmt.Errorf("index %q is closed", idx.name)
	}
	return idx.bidx.DocCount()
}

// OpenReader returns a Reader over the current state of the index. bleve
// itself is safe for concurrent reads alongside writes (its segments are
// immutable and swapped atomically), so this is a thin wrapper rather
// than a true point-in-time snapshot handle.
func (idx *Index) OpenReader() (*Reader, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index %q is closed", idx.name)
	}
	return &Reader{bidx: idx.bidx, schema: idx.schema}, nil
}

// Close releases the underlying bleve index handle.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.bidx.Close()
}

// Reader is the read-only view handed to internal/queryengine.
type Reader struct {
	bidx   bleve.Index
	schema *schema.Index
}

func (r *Reader) Bleve() bleve.Index   { return r.bidx }
func (r *Reader) Schema() *schema.Index { return r.schema }
