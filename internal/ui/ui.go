// Package ui provides terminal UI components for progress and status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a stage of a single indexer run: connect, crack,
// enrich, map, write.
type Stage int

const (
	// StageCrawl is listing documents from the data source connector.
	StageCrawl Stage = iota
	// StageCrack is document cracking (extracting structured content).
	StageCrack
	// StageEnrich is skillset enrichment.
	StageEnrich
	// StageMap is output field mapping onto the target index schema.
	StageMap
	// StageWrite is writing documents into the text index and vector store.
	StageWrite
	// StageComplete indicates the run is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageCrawl:
		return "Crawling"
	case StageCrack:
		return "Cracking"
	case StageEnrich:
		return "Enriching"
	case StageMap:
		return "Mapping"
	case StageWrite:
		return "Writing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage icon for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageCrawl:
		return "CRAWL"
	case StageCrack:
		return "CRACK"
	case StageEnrich:
		return "ENRICH"
	case StageMap:
		return "MAP"
	case StageWrite:
		return "WRITE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentItem string
	Message     string
}

// ErrorEvent represents an error during processing.
type ErrorEvent struct {
	Item   string // document key the error relates to
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each stage of an indexer run.
type StageTimings struct {
	Crawl  time.Duration // data source document listing
	Crack  time.Duration // document cracking
	Enrich time.Duration // skillset enrichment
	Map    time.Duration // output field mapping
	Write  time.Duration // text index + vector store write
}

// SkillInfo describes the enrichment skill backend that produced vector
// embeddings during a run, for display alongside completion stats.
type SkillInfo struct {
	Endpoint   string // skill URI, e.g. "/skillsets/enrich#1"
	Model      string // model label reported by the skill, if any
	Dimensions int    // output vector dimensions
}

// CompletionStats contains final statistics for a completed indexer run.
type CompletionStats struct {
	Items    int
	Enriched int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings // per-stage timing breakdown
	Skill    SkillInfo    // enrichment skill backend info
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	ProjectDir   string // Project directory path to display in header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithSpinnerStyle sets the spinner style.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) {
		c.SpinnerStyle = style
	}
}

// WithProjectDir sets the project directory path to display in header.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) {
		c.ProjectDir = dir
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		ForcePlain:   false,
		NoColor:      false,
		SpinnerStyle: "dots",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when ForcePlain is set.
func NewRenderer(cfg Config) Renderer {
	// Force plain mode if requested
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}

	// Use plain mode for non-TTY outputs
	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}

	// Use plain mode in CI environments
	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	// Try TUI mode, fall back to plain on failure
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}

	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	// Check if it's a file that's a terminal
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
