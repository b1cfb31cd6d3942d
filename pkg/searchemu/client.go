package searchemu

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/searchemu/searchemu/internal/docops"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/queryengine"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// Client is an embeddable handle onto one search emulator data
// directory: its control-plane metadata, text indexes, vector stores,
// and indexer runtime, without an HTTP listener in front of them.
//
// Client is safe for concurrent use.
type Client struct {
	dataDir   string
	maxFields int

	store   *metadata.Store
	texts   *textindex.Manager
	vectors *vectorstore.Manager
	runner  *indexerrun.Runner

	mu     sync.RWMutex
	closed bool
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dataDir   string
	maxFields int
}

// WithDataDirectory sets the directory a Client persists its metadata
// store, text indexes, and vector snapshots under.
//
// This is a required option; NewClient returns ErrNoDataDirectory if
// it is never set.
func WithDataDirectory(path string) Option {
	return func(c *clientConfig) {
		c.dataDir = path
	}
}

// WithMaxFieldsPerIndex bounds the field count CreateIndex accepts.
// Defaults to 1000 if unset.
func WithMaxFieldsPerIndex(n int) Option {
	return func(c *clientConfig) {
		c.maxFields = n
	}
}

// NewClient opens a Client rooted at the configured data directory,
// creating it if it doesn't already exist.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &clientConfig{maxFields: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.dataDir == "" {
		return nil, ErrNoDataDirectory
	}

	store, err := metadata.Open(filepath.Join(cfg.dataDir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	texts := textindex.NewManager(cfg.dataDir)
	vectors := vectorstore.NewManager(cfg.dataDir)
	runner := indexerrun.NewRunner(store, texts, vectors, cfg.dataDir)

	return &Client{
		dataDir:   cfg.dataDir,
		maxFields: cfg.maxFields,
		store:     store,
		texts:     texts,
		vectors:   vectors,
		runner:    runner,
	}, nil
}

// Close releases the underlying metadata store. Safe to call multiple
// times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// CreateIndex validates and persists an index definition, then opens
// its on-disk text index so it's ready for document operations.
func (c *Client) CreateIndex(idx *schema.Index) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := idx.Validate(c.maxFields); err != nil {
		return err
	}
	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if _, err := c.store.Put(metadata.KindIndex, idx.Name, payload); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if _, err := c.texts.Open(idx.Name, idx); err != nil {
		return fmt.Errorf("open text index: %w", err)
	}
	return nil
}

// GetIndex returns the persisted definition for name, or ok=false if
// no such index exists.
func (c *Client) GetIndex(name string) (idx *schema.Index, ok bool, err error) {
	if err := c.checkOpen(); err != nil {
		return nil, false, err
	}
	raw, _, exists, err := c.store.Get(metadata.KindIndex, name)
	if err != nil || !exists {
		return nil, false, err
	}
	idx = &schema.Index{}
	if err := json.Unmarshal(raw, idx); err != nil {
		return nil, false, fmt.Errorf("unmarshal index: %w", err)
	}
	return idx, true, nil
}

// ListIndexes returns every persisted index definition.
func (c *Client) ListIndexes() ([]*schema.Index, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	records, err := c.store.List(metadata.KindIndex)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Index, 0, len(records))
	for _, rec := range records {
		idx := &schema.Index{}
		if err := json.Unmarshal(rec.Bytes, idx); err != nil {
			continue
		}
		out = append(out, idx)
	}
	return out, nil
}

// DeleteIndex removes an index's control-plane definition and its
// on-disk text index and vector snapshot.
func (c *Client) DeleteIndex(name string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if _, err := c.store.Delete(metadata.KindIndex, name); err != nil {
		return fmt.Errorf("delete index metadata: %w", err)
	}
	if err := c.texts.Drop(name); err != nil {
		return fmt.Errorf("drop text index: %w", err)
	}
	if err := c.vectors.Drop(name); err != nil {
		return fmt.Errorf("drop vector store: %w", err)
	}
	return nil
}

// Documents executes a batch of document actions against an index.
func (c *Client) Documents(indexName string, actions []docops.DocAction) (*docops.BatchResponse, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	idxSchema, ok, err := c.GetIndex(indexName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("index %q not found", indexName)
	}
	idx, err := c.texts.Open(indexName, idxSchema)
	if err != nil {
		return nil, fmt.Errorf("open text index: %w", err)
	}
	vecStore, err := c.vectors.Open(indexName)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	engine := docops.New(idxSchema, idx, vecStore)
	resp, err := engine.Execute(actions)
	if err != nil {
		return nil, err
	}
	if err := idx.Commit(); err != nil {
		return nil, fmt.Errorf("commit text index: %w", err)
	}
	if err := c.vectors.Save(indexName); err != nil {
		return nil, fmt.Errorf("save vector store: %w", err)
	}
	return resp, nil
}

// Search runs a query engine request against an index.
func (c *Client) Search(indexName string, req queryengine.Request) (*queryengine.Response, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	idxSchema, ok, err := c.GetIndex(indexName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("index %q not found", indexName)
	}
	idx, err := c.texts.Open(indexName, idxSchema)
	if err != nil {
		return nil, fmt.Errorf("open text index: %w", err)
	}
	reader, err := idx.OpenReader()
	if err != nil {
		return nil, fmt.Errorf("open text index reader: %w", err)
	}

	vecStore, err := c.vectors.Open(indexName)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	engine := queryengine.New(reader, vecStore)
	return engine.Execute(req)
}

// RunIndexer executes one indexer's pipeline synchronously: crawl,
// crack, enrich, map, write. Prefer the background scheduler for
// scheduled runs; this is for one-shot/manual invocation.
func (c *Client) RunIndexer(indexerName string) (*schema.ExecutionResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.runner.Run(context.Background(), indexerName)
}

// IndexerStatus returns an indexer's last-known run state.
func (c *Client) IndexerStatus(indexerName string) (*schema.IndexerState, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.runner.Status(indexerName)
}
