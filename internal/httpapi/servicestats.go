package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
	"github.com/searchemu/searchemu/internal/telemetry"
)

// wireIndexStats is one index's entry in the /servicestats counters
// block.
type wireIndexStats struct {
	Name          string `json:"name"`
	DocumentCount uint64 `json:"documentCount"`
	VectorFields  int    `json:"vectorFieldCount"`
}

type wireServiceStats struct {
	Counters struct {
		IndexCount       int               `json:"indexesCount"`
		DataSourceCount  int               `json:"dataSourcesCount"`
		SkillsetCount    int               `json:"skillsetsCount"`
		IndexerCount     int               `json:"indexersCount"`
		SynonymMapCount  int               `json:"synonymMapsCount"`
		Indexes          []wireIndexStats  `json:"indexes"`
	} `json:"counters"`
	Limits struct {
		MaxIndexes           int `json:"maxIndexesPerService"`
		MaxFieldsPerIndex    int `json:"maxFieldsPerIndex"`
		MaxDocumentsPerIndex int `json:"maxDocumentsPerIndex"`
	} `json:"limits"`
	UptimeSeconds float64                         `json:"uptimeSeconds"`
	QueryMetrics  *telemetry.QueryMetricsSnapshot `json:"queryMetrics,omitempty"`
}

// handleServiceStats reports storage counters, configured limits, and a
// query-telemetry snapshot.
// QueryMetrics is omitted entirely rather than zero-valued if telemetry
// recording was never wired in (s.metrics is always non-nil once New
// constructs a Server, so in practice it's always present).
func (s *Server) handleServiceStats(w http.ResponseWriter, r *http.Request) {
	var stats wireServiceStats
	stats.Limits.MaxIndexes = s.cfg.Limits.MaxIndexes
	stats.Limits.MaxFieldsPerIndex = s.cfg.Limits.MaxFieldsPerIndex
	stats.Limits.MaxDocumentsPerIndex = s.cfg.Limits.MaxDocumentsPerIndex
	if !s.started.IsZero() {
		stats.UptimeSeconds = time.Since(s.started).Seconds()
	}
	if s.metrics != nil {
		stats.QueryMetrics = s.metrics.Snapshot()
	}

	if records, err := s.store.List(metadata.KindIndex); err == nil {
		stats.Counters.IndexCount = len(records)
		for _, rec := range records {
			var idxSchema schema.Index
			if json.Unmarshal(rec.Bytes, &idxSchema) != nil {
				continue
			}
			entry := wireIndexStats{Name: idxSchema.Name}
			if textIdx, err := s.texts.Open(idxSchema.Name, &idxSchema); err == nil {
				if count, err := textIdx.DocCount(); err == nil {
					entry.DocumentCount = count
				}
			}
			for _, f := range idxSchema.Fields {
				if f.Type.IsVector() {
					entry.VectorFields++
				}
			}
			stats.Counters.Indexes = append(stats.Counters.Indexes, entry)
		}
	}
	if records, err := s.store.List(metadata.KindDataSource); err == nil {
		stats.Counters.DataSourceCount = len(records)
	}
	if records, err := s.store.List(metadata.KindSkillset); err == nil {
		stats.Counters.SkillsetCount = len(records)
	}
	if records, err := s.store.List(metadata.KindIndexer); err == nil {
		stats.Counters.IndexerCount = len(records)
	}
	if records, err := s.store.List(metadata.KindSynonymMap); err == nil {
		stats.Counters.SynonymMapCount = len(records)
	}

	writeJSON(w, http.StatusOK, stats)
}
