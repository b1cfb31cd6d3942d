package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/searchemu/searchemu/internal/schema"
)

// webAPIRecord is one entry of a custom-web-API request/response batch,
// correlated by recordId.
type webAPIRecord struct {
	RecordID string                 `json:"recordId"`
	Data     map[string]interface{} `json:"data"`
	Errors   []webAPIError          `json:"errors,omitempty"`
	Warnings []webAPIError          `json:"warnings,omitempty"`
}

type webAPIError struct {
	Message string `json:"message"`
}

type webAPIRequest struct {
	Values []webAPIRecord `json:"values"`
}

type webAPIResponse struct {
	Values []webAPIRecord `json:"values"`
}

// callCustomWebAPI executes the custom-web-API skill over every binding's
// resolved inputs, batched by params.BatchSize and fanned out up to
// params.DegreeOfParallelism concurrent HTTP requests (grounded on the
// teacher's context-timeout HTTP-client pattern in internal/embed/ollama.go,
// generalized from a single embedding endpoint to an arbitrary record
// batch). A failing batch or per-record error produces a warning rather
// than aborting the pipeline.
func (e *Executor) callCustomWebAPI(ctx context.Context, params *schema.CustomWebAPIParams, records []webAPIRecord) (map[string]map[string]interface{}, []string) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	parallelism := int64(params.DegreeOfParallelism)
	if parallelism <= 0 {
		parallelism = 1
	}
	timeout := 30 * time.Second
	if params.Timeout != "" {
		if d, err := time.ParseDuration(params.Timeout); err == nil {
			timeout = d
		}
	}

	var batches [][]webAPIRecord
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}

	results := make(map[string]map[string]interface{}, len(records))
	var warnings []string
	var mu sync.Mutex

	sem := semaphore.NewWeighted(parallelism)
	var wg sync.WaitGroup
	for _, batch := range batches {
		batch := batch
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			warnings = append(warnings, fmt.Sprintf("custom web api: %v", err))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			resp, err := e.postWebAPI(reqCtx, params, batch)
			batchResults, batchWarnings := collectWebAPIResults(batch, resp, err)
			mu.Lock()
			for k, v := range batchResults {
				results[k] = v
			}
			warnings = append(warnings, batchWarnings...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results, warnings
}

func collectWebAPIResults(batch []webAPIRecord, resp *webAPIResponse, err error) (map[string]map[string]interface{}, []string) {
	results := make(map[string]map[string]interface{})
	var warnings []string
	if err != nil {
		for _, rec := range batch {
			warnings = append(warnings, fmt.Sprintf("custom web api record %s: %v", rec.RecordID, err))
		}
		return results, warnings
	}
	byID := make(map[string]webAPIRecord, len(resp.Values))
	for _, v := range resp.Values {
		byID[v.RecordID] = v
	}
	for _, rec := range batch {
		out, ok := byID[rec.RecordID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("custom web api record %s: no response", rec.RecordID))
			continue
		}
		for _, e := range out.Errors {
			warnings = append(warnings, fmt.Sprintf("custom web api record %s: %s", rec.RecordID, e.Message))
		}
		results[rec.RecordID] = out.Data
	}
	return results, warnings
}

func (e *Executor) postWebAPI(ctx context.Context, params *schema.CustomWebAPIParams, batch []webAPIRecord) (*webAPIResponse, error) {
	body, err := json.Marshal(webAPIRequest{Values: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	method := params.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, params.URI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range params.HTTPHeaders {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	var out webAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func newRecordID() string {
	return uuid.NewString()
}
