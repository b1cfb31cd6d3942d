package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

func TestParseIntervalAcceptsGoAndISO8601(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1h30m", 90 * time.Minute},
		{"PT1H", time.Hour},
		{"PT30M", 30 * time.Minute},
		{"PT1H30M", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"P1DT2H", 26 * time.Hour},
		{"PT10S", 10 * time.Second},
	}
	for _, c := range cases {
		got, err := ParseInterval(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseIntervalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a duration", "P"} {
		_, err := ParseInterval(in)
		assert.Error(t, err, in)
	}
}

func putJSON(t *testing.T, store *metadata.Store, kind metadata.Kind, name string, v interface{}) {
	t.Helper()
	bytes, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = store.Put(kind, name, bytes)
	require.NoError(t, err)
}

func newTestScheduler(t *testing.T, tick time.Duration) (*Scheduler, *metadata.Store, string) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := metadata.Open(filepath.Join(dataDir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	texts := textindex.NewManager(filepath.Join(dataDir, "indexes"))
	vectors := vectorstore.NewManager(filepath.Join(dataDir, "indexes"))
	runner := indexerrun.NewRunner(store, texts, vectors, dataDir)
	return New(store, runner, nil, tick, 2), store, dataDir
}

func docsIndex() *schema.Index {
	return &schema.Index{
		Name: "docs",
		Fields: []schema.Field{
			{Name: "id", Type: schema.EDMString, Key: true, Retrievable: true},
			{Name: "content", Type: schema.EDMString, Searchable: true, Retrievable: true},
		},
	}
}

func setupRunnableIndexer(t *testing.T, store *metadata.Store, dataDir string, schedule *schema.IndexerSchedule, disabled bool) {
	t.Helper()
	root := filepath.Join(dataDir, "source")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello scheduler"), 0o644))

	putJSON(t, store, metadata.KindIndex, "docs", docsIndex())
	putJSON(t, store, metadata.KindDataSource, "docs-ds", &schema.DataSource{
		Name:             "docs-ds",
		Type:             schema.DataSourceFile,
		ConnectionString: filepath.Dir(root),
		Container:        filepath.Base(root),
	})
	putJSON(t, store, metadata.KindIndexer, "docs-ix", &schema.Indexer{
		Name:            "docs-ix",
		DataSourceName:  "docs-ds",
		TargetIndexName: "docs",
		Schedule:        schedule,
		Disabled:        disabled,
	})
}

func TestSchedulerRunsDueIndexerOnTick(t *testing.T) {
	s, store, dataDir := newTestScheduler(t, 15*time.Millisecond)
	setupRunnableIndexer(t, store, dataDir, &schema.IndexerSchedule{Interval: "10ms"}, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := s.runner.Status("docs-ix")
		require.NoError(t, err)
		if st.LastResult != nil {
			assert.Equal(t, schema.IndexerStatusSuccess, st.LastResult.Status)
			assert.Equal(t, 1, st.LastResult.ItemsProcessed)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduler never ran the due indexer")
}

func TestSchedulerSkipsDisabledIndexer(t *testing.T) {
	s, store, dataDir := newTestScheduler(t, time.Second)
	setupRunnableIndexer(t, store, dataDir, &schema.IndexerSchedule{Interval: "1ms"}, true)

	s.tickOnce(context.Background())
	_ = s.g.Wait()

	st, err := s.runner.Status("docs-ix")
	require.NoError(t, err)
	assert.Nil(t, st.LastResult)
}

func TestSchedulerSkipsIndexerWithoutSchedule(t *testing.T) {
	s, store, dataDir := newTestScheduler(t, time.Second)
	setupRunnableIndexer(t, store, dataDir, nil, false)

	s.tickOnce(context.Background())
	_ = s.g.Wait()

	st, err := s.runner.Status("docs-ix")
	require.NoError(t, err)
	assert.Nil(t, st.LastResult)
}

func TestDueNowRespectsLastEndTimePlusInterval(t *testing.T) {
	s, store, _ := newTestScheduler(t, time.Second)
	now := time.Now().UTC()
	ix := schema.Indexer{Name: "recent", Schedule: &schema.IndexerSchedule{Interval: "1h"}}

	due, err := s.dueNow(ix, now)
	require.NoError(t, err)
	assert.True(t, due, "never run before: due immediately")

	putJSON(t, store, metadata.KindIndexerState, "recent", &schema.IndexerState{
		Status:     schema.IndexerStatusIdle,
		LastResult: &schema.ExecutionResult{Status: schema.IndexerStatusSuccess, EndTime: now.Add(-30 * time.Minute).Format(time.RFC3339)},
	})
	due, err = s.dueNow(ix, now)
	require.NoError(t, err)
	assert.False(t, due, "ran 30m ago, interval is 1h")

	putJSON(t, store, metadata.KindIndexerState, "recent", &schema.IndexerState{
		Status:     schema.IndexerStatusIdle,
		LastResult: &schema.ExecutionResult{Status: schema.IndexerStatusSuccess, EndTime: now.Add(-2 * time.Hour).Format(time.RFC3339)},
	})
	due, err = s.dueNow(ix, now)
	require.NoError(t, err)
	assert.True(t, due, "ran 2h ago, interval is 1h")
}

func TestDueNowFalseWhileInProgress(t *testing.T) {
	s, store, _ := newTestScheduler(t, time.Second)
	putJSON(t, store, metadata.KindIndexerState, "busy-ix", &schema.IndexerState{Status: schema.IndexerStatusInProgress})

	ix := schema.Indexer{Name: "busy-ix", Schedule: &schema.IndexerSchedule{Interval: "1ms"}}
	due, err := s.dueNow(ix, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, due)
}

func TestStopIsSafeWithNoInFlightRuns(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop(time.Second)
}
