package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] current/total - message or file
	var msg string
	if event.Message != "" {
		msg = event.Message
	} else if event.CurrentItem != "" {
		msg = event.CurrentItem
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Item != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Item, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents, %d enriched in %s",
		stats.Items, stats.Enriched, stats.Duration.Round(100*millisecond))

	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}

	_, _ = fmt.Fprintln(r.out)

	// Show detailed stage breakdown if available
	if stats.Stages.Crawl > 0 || stats.Stages.Enrich > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Crawl:  %s (documents listed)\n", stats.Stages.Crawl.Round(100*millisecond))
		_, _ = fmt.Fprintf(r.out, "  Crack:  %s (content extracted)\n", stats.Stages.Crack.Round(100*millisecond))
		if stats.Stages.Enrich > 0 {
			_, _ = fmt.Fprintf(r.out, "  Enrich: %s (skillset enrichment)\n", stats.Stages.Enrich.Round(100*millisecond))
		}
		if stats.Stages.Map > 0 && stats.Enriched > 0 {
			perSec := float64(stats.Enriched) / stats.Stages.Map.Seconds()
			_, _ = fmt.Fprintf(r.out, "  Map:    %s (%d documents @ %.1f/sec)\n",
				stats.Stages.Map.Round(100*millisecond), stats.Enriched, perSec)
		}
		_, _ = fmt.Fprintf(r.out, "  Write:  %s (text index + vector store)\n", stats.Stages.Write.Round(100*millisecond))
	}

	// Show enrichment skill backend info if available
	if stats.Skill.Endpoint != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "Skill: %s (%s, %d dims)\n",
			stats.Skill.Endpoint, stats.Skill.Model, stats.Skill.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

const millisecond = 1000000 // nanoseconds
