// Package indexerrun implements component I, the indexer runtime:
// orchestrating connectors (F), crackers (G), the skill
// pipeline (H) and document operations (E) for one indexer definition per
// invocation, guarded by the idle -> inProgress -> {success,
// transientFailure, reset} -> idle state machine.
package indexerrun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/searchemu/searchemu/internal/connector"
	"github.com/searchemu/searchemu/internal/cracker"
	"github.com/searchemu/searchemu/internal/docops"
	"github.com/searchemu/searchemu/internal/enrich"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

const (
	defaultBatchSize      = 100
	defaultMaxFailedItems = -1 // negative means unlimited
)

// Runner executes indexer runs to completion. One Runner
// serves every indexer; per-indexer mutual exclusion is enforced by the
// metadata-store CAS plus an OS file lock, not by Runner state.
type Runner struct {
	store   *metadata.Store
	texts   *textindex.Manager
	vectors *vectorstore.Manager
	dataDir string
	cracks  *cracker.Registry
}

func NewRunner(store *metadata.Store, texts *textindex.Manager, vectors *vectorstore.Manager, dataDir string) *Runner {
	return &Runner{store: store, texts: texts, vectors: vectors, dataDir: dataDir, cracks: cracker.NewRegistry()}
}

func (r *Runner) lockPath(name string) string {
	return filepath.Join(r.dataDir, "indexers", name+".lock")
}

// Run executes one complete indexer run. The OS
// file lock is acquired before the metadata CAS is inspected: since the OS
// releases an advisory lock automatically when its holding process dies,
// successfully acquiring it here is proof that no other process is really
// running this indexer, even if a prior crash left the persisted status
// stuck at inProgress (grounded on the teacher's indexing.lock marker in
// internal/async/indexer.go, generalized from a single global lock file to
// one lock file per indexer).
func (r *Runner) Run(ctx context.Context, indexerName string) (*schema.ExecutionResult, error) {
	if err := os.MkdirAll(filepath.Join(r.dataDir, "indexers"), 0o755); err != nil {
		return nil, fmt.Errorf("create indexer lock directory: %w", err)
	}
	fl := flock.New(r.lockPath(indexerName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for indexer %q: %w", indexerName, err)
	}
	if !locked {
		return nil, fmt.Errorf("indexer %q is already running", indexerName)
	}
	defer func() { _ = fl.Unlock() }()

	st, err := r.beginRun(indexerName)
	if err != nil {
		return nil, err
	}

	result, runErr := r.execute(ctx, indexerName, st)
	if runErr != nil {
		// A setup failure (bad definition, missing data source, etc.)
		// before any document was processed: record it and release back
		// to idle rather than leaving the indexer stuck inProgress.
		failed := &schema.ExecutionResult{
			Status:    schema.IndexerStatusTransientFailure,
			StartTime: st.StartedAt,
			EndTime:   time.Now().UTC().Format(time.RFC3339),
			Errors:    []schema.ItemError{{ErrorMessage: runErr.Error()}},
		}
		st.RecordResult(*failed)
		st.Status = schema.IndexerStatusIdle
		if saveErr := r.saveState(indexerName, st); saveErr != nil {
			return nil, fmt.Errorf("%w (and failed to persist run state: %v)", runErr, saveErr)
		}
		return nil, runErr
	}
	return result, nil
}

// RunAsync starts an indexer run in a detached goroutine and returns as
// soon as the run is admitted, without waiting for it to finish: the
// caller's only synchronous feedback is whether the run was accepted
// (lock won, status transition legal) or rejected (already running, bad
// definition). Progress and the final result are available only via
// Status, which reads the same persisted schema.IndexerState the
// synchronous Run path writes. Adapted from the teacher's
// internal/async.BackgroundIndexer (launch work in a goroutine, expose
// progress through a separate poll-able accessor) but backed by the
// durable per-indexer state already maintained by Run/Status/Reset
// instead of an in-memory-only snapshot, since indexer status here must
// survive the calling process restarting.
func (r *Runner) RunAsync(logger *slog.Logger, indexerName string) error {
	if err := os.MkdirAll(filepath.Join(r.dataDir, "indexers"), 0o755); err != nil {
		return fmt.Errorf("create indexer lock directory: %w", err)
	}
	fl := flock.New(r.lockPath(indexerName))
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock for indexer %q: %w", indexerName, err)
	}
	if !locked {
		return fmt.Errorf("indexer %q is already running", indexerName)
	}

	st, err := r.beginRun(indexerName)
	if err != nil {
		_ = fl.Unlock()
		return err
	}

	go func() {
		defer func() { _ = fl.Unlock() }()

		result, runErr := r.execute(context.Background(), indexerName, st)
		if runErr != nil {
			failed := &schema.ExecutionResult{
				Status:    schema.IndexerStatusTransientFailure,
				StartTime: st.StartedAt,
				EndTime:   time.Now().UTC().Format(time.RFC3339),
				Errors:    []schema.ItemError{{ErrorMessage: runErr.Error()}},
			}
			st.RecordResult(*failed)
			st.Status = schema.IndexerStatusIdle
			if saveErr := r.saveState(indexerName, st); saveErr != nil {
				logger.Error("indexer async run: failed to persist failure state", "indexer", indexerName, "run_error", runErr, "save_error", saveErr)
			}
			return
		}
		logger.Info("indexer async run completed", "indexer", indexerName, "status", result.Status)
	}()

	return nil
}

// beginRun atomically transitions an indexer's persisted status to
// inProgress. A status stuck at inProgress from a
// prior crash is treated as idle, since Run only reaches this point after
// winning the OS lock.
func (r *Runner) beginRun(name string) (*schema.IndexerState, error) {
	st, err := r.loadState(name)
	if err != nil {
		return nil, err
	}
	if st.Status == schema.IndexerStatusInProgress {
		st.Status = schema.IndexerStatusIdle
	}
	if !st.Status.CanTransitionTo(schema.IndexerStatusInProgress) {
		return nil, fmt.Errorf("indexer %q cannot start from status %s", name, st.Status)
	}
	st.Status = schema.IndexerStatusInProgress
	st.StartedAt = time.Now().UTC().Format(time.RFC3339)
	if err := r.saveState(name, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *Runner) loadState(name string) (*schema.IndexerState, error) {
	raw, _, ok, err := r.store.Get(metadata.KindIndexerState, name)
	if err != nil {
		return nil, fmt.Errorf("load indexer state %q: %w", name, err)
	}
	st := &schema.IndexerState{Status: schema.IndexerStatusIdle}
	if ok {
		if err := json.Unmarshal(raw, st); err != nil {
			return nil, fmt.Errorf("decode indexer state %q: %w", name, err)
		}
	}
	return st, nil
}

func (r *Runner) saveState(name string, st *schema.IndexerState) error {
	bytes, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode indexer state %q: %w", name, err)
	}
	if _, err := r.store.Put(metadata.KindIndexerState, name, bytes); err != nil {
		return fmt.Errorf("save indexer state %q: %w", name, err)
	}
	return nil
}

// Status returns an indexer's persisted run state, for the
// /indexers/{n}/status surface.
func (r *Runner) Status(name string) (*schema.IndexerState, error) {
	return r.loadState(name)
}

// Reset clears an indexer's persisted tracking state so the next run
// re-processes every source item. Rejected while
// a run is actually inProgress, since clearing tracking state out from
// under a live run would race its own end-of-run tracking-state write.
func (r *Runner) Reset(name string) error {
	st, err := r.loadState(name)
	if err != nil {
		return err
	}
	if st.Status == schema.IndexerStatusInProgress {
		return fmt.Errorf("indexer %q is currently running", name)
	}
	st.TrackingState = ""
	return r.saveState(name, st)
}

func (r *Runner) loadDefinition(name string) (*schema.Indexer, error) {
	raw, _, ok, err := r.store.Get(metadata.KindIndexer, name)
	if err != nil {
		return nil, fmt.Errorf("load indexer %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("indexer %q not found", name)
	}
	var ix schema.Indexer
	if err := json.Unmarshal(raw, &ix); err != nil {
		return nil, fmt.Errorf("decode indexer %q: %w", name, err)
	}
	return &ix, nil
}

func (r *Runner) loadDataSource(name string) (*schema.DataSource, error) {
	raw, _, ok, err := r.store.Get(metadata.KindDataSource, name)
	if err != nil {
		return nil, fmt.Errorf("load data source %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("data source %q not found", name)
	}
	var ds schema.DataSource
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode data source %q: %w", name, err)
	}
	return &ds, nil
}

func (r *Runner) loadSkillset(name string) (*schema.Skillset, error) {
	if name == "" {
		return nil, nil
	}
	raw, _, ok, err := r.store.Get(metadata.KindSkillset, name)
	if err != nil {
		return nil, fmt.Errorf("load skillset %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("skillset %q not found", name)
	}
	var ss schema.Skillset
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("decode skillset %q: %w", name, err)
	}
	return &ss, nil
}

func (r *Runner) loadIndexSchema(name string) (*schema.Index, error) {
	raw, _, ok, err := r.store.Get(metadata.KindIndex, name)
	if err != nil {
		return nil, fmt.Errorf("load index %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("index %q not found", name)
	}
	var idx schema.Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("decode index %q: %w", name, err)
	}
	return &idx, nil
}

// execute runs the crawl-crack-enrich-map-write steps once the run's status has
// already been set to inProgress.
func (r *Runner) execute(ctx context.Context, indexerName string, st *schema.IndexerState) (*schema.ExecutionResult, error) {
	ix, err := r.loadDefinition(indexerName)
	if err != nil {
		return nil, err
	}
	ds, err := r.loadDataSource(ix.DataSourceName)
	if err != nil {
		return nil, err
	}
	skillset, err := r.loadSkillset(ix.SkillsetName)
	if err != nil {
		return nil, err
	}
	idxSchema, err := r.loadIndexSchema(ix.TargetIndexName)
	if err != nil {
		return nil, err
	}
	keyField, err := idxSchema.KeyField()
	if err != nil {
		return nil, err
	}

	textIdx, err := r.texts.Open(idxSchema.Name, idxSchema)
	if err != nil {
		return nil, fmt.Errorf("open text index %q: %w", idxSchema.Name, err)
	}
	vecStore, err := r.vectors.Open(idxSchema.Name)
	if err != nil {
		return nil, fmt.Errorf("open vector store %q: %w", idxSchema.Name, err)
	}
	EnsureVectorFields(vecStore, idxSchema)
	engine := docops.New(idxSchema, textIdx, vecStore)

	conn, err := connector.New(ds.Type)
	if err != nil {
		return nil, err
	}

	batchSize := ix.Parameters.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxFailedItems := ix.Parameters.MaxFailedItems
	if maxFailedItems == 0 {
		maxFailedItems = defaultMaxFailedItems
	}

	var trackingState *time.Time
	if st.TrackingState != "" {
		if t, err := time.Parse(time.RFC3339, st.TrackingState); err == nil {
			trackingState = &t
		}
	}

	docs, err := conn.ListDocuments(ctx, ds, trackingState)
	if err != nil {
		return nil, fmt.Errorf("list documents for data source %q: %w", ds.Name, err)
	}

	fieldMappings := make([]schema.FieldMapping, 0, len(ix.FieldMappings)+len(ix.OutputFieldMappings))
	fieldMappings = append(fieldMappings, ix.FieldMappings...)
	fieldMappings = append(fieldMappings, ix.OutputFieldMappings...)

	run := &runState{
		exec:          enrich.NewExecutor(),
		conn:          conn,
		ds:            ds,
		skillset:      skillset,
		cracks:        r.cracks,
		idxSchema:     idxSchema,
		keyFieldName:  keyField.Name,
		fieldMappings: fieldMappings,
	}

	startTime := st.StartedAt
	var batch []docops.DocAction
	var itemErrors []schema.ItemError
	var itemWarnings []schema.ItemError
	itemsProcessed := 0
	itemsFailed := 0
	stopped := false

	flush := func() {
		if len(batch) == 0 {
			return
		}
		resp, err := engine.Execute(batch)
		if err != nil {
			itemsFailed += len(batch)
			itemErrors = append(itemErrors, schema.ItemError{ErrorMessage: fmt.Sprintf("batch flush: %v", err)})
		} else {
			for _, item := range resp.Items {
				itemsProcessed++
				if !item.Succeeded {
					itemsFailed++
					itemErrors = append(itemErrors, schema.ItemError{Key: item.Key, ErrorMessage: item.ErrorMessage})
				}
			}
		}
		batch = batch[:0]
	}

docLoop:
	for _, d := range docs {
		select {
		case <-ctx.Done():
			itemErrors = append(itemErrors, schema.ItemError{Key: d.Key, ErrorMessage: ctx.Err().Error()})
			stopped = true
			break docLoop
		default:
		}

		if run.trackingHighWater == nil || d.LastModified.After(*run.trackingHighWater) {
			t := d.LastModified
			run.trackingHighWater = &t
		}

		action, warnings, err := run.project(ctx, d)
		if err != nil {
			itemsFailed++
			itemErrors = append(itemErrors, schema.ItemError{Key: d.Key, ErrorMessage: err.Error()})
			if maxFailedItems >= 0 && itemsFailed > maxFailedItems {
				stopped = true
				break docLoop
			}
			continue
		}
		for _, w := range warnings {
			itemWarnings = append(itemWarnings, schema.ItemError{Key: d.Key, ErrorMessage: w})
		}
		batch = append(batch, *action)
		if len(batch) >= batchSize {
			flush()
			if maxFailedItems >= 0 && itemsFailed > maxFailedItems {
				stopped = true
				break docLoop
			}
		}
	}
	if !stopped {
		flush()
	}

	if err := r.vectors.Save(idxSchema.Name); err != nil {
		itemErrors = append(itemErrors, schema.ItemError{ErrorMessage: fmt.Sprintf("persist vector snapshot: %v", err)})
	}

	finalStatus := schema.IndexerStatusSuccess
	if stopped || (maxFailedItems >= 0 && itemsFailed > maxFailedItems) {
		finalStatus = schema.IndexerStatusTransientFailure
	}

	result := schema.ExecutionResult{
		Status:         finalStatus,
		StartTime:      startTime,
		EndTime:        time.Now().UTC().Format(time.RFC3339),
		ItemsProcessed: itemsProcessed,
		ItemsFailed:    itemsFailed,
		Errors:         itemErrors,
		Warnings:       itemWarnings,
	}

	if run.trackingHighWater != nil {
		result.FinalTrackingState = run.trackingHighWater.UTC().Format(time.RFC3339Nano)
		st.TrackingState = result.FinalTrackingState
	}
	st.RecordResult(result)
	st.Status = schema.IndexerStatusIdle
	if err := r.saveState(indexerName, st); err != nil {
		return nil, fmt.Errorf("persist run result: %w", err)
	}

	return &result, nil
}

// EnsureVectorFields registers every vector field an index schema defines
// against a vector store, so index creation and indexer runs agree on
// field configuration without duplicating this mapping.
func EnsureVectorFields(store *vectorstore.Store, idxSchema *schema.Index) {
	for _, f := range idxSchema.Fields {
		if !f.Type.IsVector() {
			continue
		}
		cfg := vectorstore.FieldConfig{Dimensions: f.Dimensions}
		if f.VectorSearchProfile != "" {
			if p, ok := idxSchema.VectorSearch.Profiles[f.VectorSearchProfile]; ok {
				cfg.Algorithm = p.Algorithm
				cfg.Similarity = p.Similarity
				cfg.M = p.M
				cfg.EfConstruction = p.EfConstruction
				cfg.EfSearch = p.EfSearch
				cfg.OversampleMultiplier = p.OversampleMultiplier
			}
		}
		store.EnsureField(f.Name, cfg)
	}
}
