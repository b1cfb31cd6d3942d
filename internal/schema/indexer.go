package schema

import "fmt"

// FieldMapping copies a cracked/enriched document path onto an index
// field, with an optional mapping function name.
type FieldMapping struct {
	SourceFieldName string `json:"sourceFieldName"`
	TargetFieldName string `json:"targetFieldName,omitempty"` // defaults to SourceFieldName
	MappingFunction string `json:"mappingFunction,omitempty"` // e.g. "base64Encode"
}

// IndexerSchedule configures the background scheduler's tick cadence for
// one indexer. Interval is a Go duration string ("PT1H"
// style upstream intervals are translated to Go duration syntax at load
// time by internal/scheduler).
type IndexerSchedule struct {
	Interval  string `json:"interval"`
	StartTime string `json:"startTime,omitempty"` // RFC3339, optional
}

// IndexerParameters carries the tunables an indexer run honors.
type IndexerParameters struct {
	BatchSize           int `json:"batchSize,omitempty"`
	MaxFailedItems       int `json:"maxFailedItems,omitempty"`
	MaxFailedItemsPerBatch int `json:"maxFailedItemsPerBatch,omitempty"`
	TimeoutMinutes       int `json:"timeoutMinutes,omitempty"`
}

// Indexer wires a data source through an optional skillset into a target
// index.
type Indexer struct {
	Name                 string             `json:"name"`
	DataSourceName       string             `json:"dataSourceName"`
	SkillsetName         string             `json:"skillsetName,omitempty"`
	TargetIndexName      string             `json:"targetIndexName"`
	FieldMappings        []FieldMapping     `json:"fieldMappings,omitempty"`
	OutputFieldMappings  []FieldMapping     `json:"outputFieldMappings,omitempty"`
	Schedule             *IndexerSchedule   `json:"schedule,omitempty"`
	Parameters           IndexerParameters  `json:"parameters,omitempty"`
	Disabled             bool               `json:"disabled,omitempty"`
}

func (ix *Indexer) Validate() error {
	if !ValidName(ix.Name) {
		return fmt.Errorf("invalid indexer name %q", ix.Name)
	}
	if !ValidName(ix.DataSourceName) {
		return fmt.Errorf("indexer %q references invalid data source name %q", ix.Name, ix.DataSourceName)
	}
	if !ValidName(ix.TargetIndexName) {
		return fmt.Errorf("indexer %q references invalid target index name %q", ix.Name, ix.TargetIndexName)
	}
	if ix.SkillsetName != "" && !ValidName(ix.SkillsetName) {
		return fmt.Errorf("indexer %q references invalid skillset name %q", ix.Name, ix.SkillsetName)
	}
	return nil
}

// IndexerStatus is the indexer run-state machine:
// idle -> inProgress -> {success, transientFailure, reset} -> idle.
type IndexerStatus string

const (
	IndexerStatusIdle             IndexerStatus = "idle"
	IndexerStatusInProgress       IndexerStatus = "inProgress"
	IndexerStatusSuccess          IndexerStatus = "success"
	IndexerStatusTransientFailure IndexerStatus = "transientFailure"
	IndexerStatusReset            IndexerStatus = "reset"
)

// CanTransitionTo enforces the state machine's legal edges.
func (s IndexerStatus) CanTransitionTo(next IndexerStatus) bool {
	switch s {
	case IndexerStatusIdle, "":
		return next == IndexerStatusInProgress
	case IndexerStatusInProgress:
		switch next {
		case IndexerStatusSuccess, IndexerStatusTransientFailure, IndexerStatusReset:
			return true
		}
		return false
	case IndexerStatusSuccess, IndexerStatusTransientFailure, IndexerStatusReset:
		return next == IndexerStatusInProgress || next == IndexerStatusIdle
	default:
		return false
	}
}

// ItemError records one document's failure within a run.
type ItemError struct {
	Key          string `json:"key,omitempty"`
	ErrorMessage string `json:"errorMessage"`
}

// ExecutionResult is one completed (or failed) indexer run, appended to
// run history.
type ExecutionResult struct {
	Status           IndexerStatus `json:"status"`
	StartTime        string        `json:"startTime"`
	EndTime          string        `json:"endTime,omitempty"`
	ItemsProcessed   int           `json:"itemsProcessed"`
	ItemsFailed      int           `json:"itemsFailed"`
	Errors           []ItemError   `json:"errors,omitempty"`
	Warnings         []ItemError   `json:"warnings,omitempty"`
	FinalTrackingState string      `json:"-"` // not serialized in history; stored separately
}

// IndexerState is the persisted run/tracking state for one indexer,
// stored under its own metadata kind so it can be updated independently
// of the indexer definition document.
type IndexerState struct {
	Status         IndexerStatus     `json:"status"`
	LastResult     *ExecutionResult  `json:"lastResult,omitempty"`
	ExecutionHistory []ExecutionResult `json:"executionHistory,omitempty"`
	TrackingState  string            `json:"trackingState,omitempty"`
	StartedAt      string            `json:"startedAt,omitempty"`
}

const maxExecutionHistory = 50

// RecordResult appends a completed run to history, trimming to the most
// recent maxExecutionHistory entries, and sets it as LastResult.
func (st *IndexerState) RecordResult(result ExecutionResult) {
	st.LastResult = &result
	st.ExecutionHistory = append(st.ExecutionHistory, result)
	if len(st.ExecutionHistory) > maxExecutionHistory {
		st.ExecutionHistory = st.ExecutionHistory[len(st.ExecutionHistory)-maxExecutionHistory:]
	}
}
