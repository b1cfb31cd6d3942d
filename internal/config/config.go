package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete searchemu configuration. It mirrors the
// recognized configuration keys.
type Config struct {
	Server         ServerConfig         `yaml:"server" json:"server"`
	Auth           AuthConfig           `yaml:"authentication" json:"authentication"`
	DataDirectory  string               `yaml:"data_directory" json:"data_directory"`
	Limits         LimitsConfig         `yaml:"limits" json:"limits"`
	Vector         VectorConfig         `yaml:"vector" json:"vector"`
	Indexer        IndexerConfig        `yaml:"indexer" json:"indexer"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	DevMode bool   `yaml:"dev_mode" json:"dev_mode"` // when true, error responses include innererror detail
}

// AuthConfig configures the pluggable authentication chain (component auth).
type AuthConfig struct {
	AdminAPIKey           string   `yaml:"admin_api_key" json:"-"`
	QueryAPIKey           string   `yaml:"query_api_key" json:"-"`
	EntraIDSharedSecret   string   `yaml:"entra_id_shared_secret" json:"-"`
	EnabledModes          []string `yaml:"enabled_modes" json:"enabled_modes"` // "api_key", "entra_id", "simulated"
	APIKeyTakesPrecedence bool     `yaml:"api_key_takes_precedence" json:"api_key_takes_precedence"`
}

// LimitsConfig holds admission caps.
type LimitsConfig struct {
	MaxIndexes           int `yaml:"max_indexes" json:"max_indexes"`
	MaxDocumentsPerIndex int `yaml:"max_documents_per_index" json:"max_documents_per_index"`
	MaxFieldsPerIndex    int `yaml:"max_fields_per_index" json:"max_fields_per_index"`
	DefaultPageSize      int `yaml:"default_page_size" json:"default_page_size"`
	MaxPageSize          int `yaml:"max_page_size" json:"max_page_size"`
}

// VectorConfig tunes the HNSW vector index and hybrid fusion.
type VectorConfig struct {
	UseHNSW bool            `yaml:"use_hnsw" json:"use_hnsw"`
	HNSW    HNSWConfig      `yaml:"hnsw" json:"hnsw"`
	Hybrid  HybridConfig    `yaml:"hybrid" json:"hybrid"`
}

// HNSWConfig tunes the coder/hnsw graph.
type HNSWConfig struct {
	M                    int `yaml:"M" json:"m"`
	EfConstruction       int `yaml:"efConstruction" json:"ef_construction"`
	EfSearch             int `yaml:"efSearch" json:"ef_search"`
	OversampleMultiplier int `yaml:"oversampleMultiplier" json:"oversample_multiplier"`
}

// HybridConfig tunes text+vector fusion.
type HybridConfig struct {
	Fusion      string  `yaml:"fusion" json:"fusion"` // "rrf" or "weighted"
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`
	TextWeight   float64 `yaml:"text_weight" json:"text_weight"`
	RRFConstant  int     `yaml:"rrf_k" json:"rrf_k"`
}

// IndexerConfig tunes the scheduler and indexer runtime.
type IndexerConfig struct {
	EnableScheduler       bool `yaml:"enable_scheduler" json:"enable_scheduler"`
	DefaultBatchSize      int  `yaml:"default_batch_size" json:"default_batch_size"`
	DefaultTimeoutMinutes int  `yaml:"default_timeout_minutes" json:"default_timeout_minutes"`
	TickInterval          string `yaml:"tick_interval" json:"tick_interval"` // scheduler poll tick, e.g. "10s"
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Debug bool   `yaml:"debug" json:"debug"` // loaded and merged only; no code reads it (file logging is turned on by the --debug flag)
}

// NewConfig returns a Config populated with its documented defaults.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			DevMode: false,
		},
		Auth: AuthConfig{
			EnabledModes:          []string{"api_key"},
			APIKeyTakesPrecedence: true,
		},
		DataDirectory: defaultDataDirectory(),
		Limits: LimitsConfig{
			MaxIndexes:           50,
			MaxDocumentsPerIndex: 1_000_000,
			MaxFieldsPerIndex:    1000,
			DefaultPageSize:      50,
			MaxPageSize:          1000,
		},
		Vector: VectorConfig{
			UseHNSW: true,
			HNSW: HNSWConfig{
				M:                    16,
				EfConstruction:       200,
				EfSearch:             64,
				OversampleMultiplier: 3,
			},
			Hybrid: HybridConfig{
				Fusion:       "rrf",
				VectorWeight: 0.7,
				TextWeight:   0.3,
				RRFConstant:  60,
			},
		},
		Indexer: IndexerConfig{
			EnableScheduler:       true,
			DefaultBatchSize:      100,
			DefaultTimeoutMinutes: 30,
			TickInterval:          "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
			Debug: false,
		},
	}
}

// defaultDataDirectory returns ~/.searchemu/data, falling back to a temp dir.
func defaultDataDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".searchemu", "data")
	}
	return filepath.Join(home, ".searchemu", "data")
}

// Load builds a Config from (in order of increasing precedence): hardcoded
// defaults, the YAML file at path (if non-empty and present), and
// SEARCHEMU_* environment variable overrides. It then validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero-value fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	c.Server.DevMode = c.Server.DevMode || other.Server.DevMode

	if other.Auth.AdminAPIKey != "" {
		c.Auth.AdminAPIKey = other.Auth.AdminAPIKey
	}
	if other.Auth.QueryAPIKey != "" {
		c.Auth.QueryAPIKey = other.Auth.QueryAPIKey
	}
	if other.Auth.EntraIDSharedSecret != "" {
		c.Auth.EntraIDSharedSecret = other.Auth.EntraIDSharedSecret
	}
	if len(other.Auth.EnabledModes) > 0 {
		c.Auth.EnabledModes = other.Auth.EnabledModes
	}

	if other.DataDirectory != "" {
		c.DataDirectory = other.DataDirectory
	}

	if other.Limits.MaxIndexes != 0 {
		c.Limits.MaxIndexes = other.Limits.MaxIndexes
	}
	if other.Limits.MaxDocumentsPerIndex != 0 {
		c.Limits.MaxDocumentsPerIndex = other.Limits.MaxDocumentsPerIndex
	}
	if other.Limits.MaxFieldsPerIndex != 0 {
		c.Limits.MaxFieldsPerIndex = other.Limits.MaxFieldsPerIndex
	}
	if other.Limits.DefaultPageSize != 0 {
		c.Limits.DefaultPageSize = other.Limits.DefaultPageSize
	}
	if other.Limits.MaxPageSize != 0 {
		c.Limits.MaxPageSize = other.Limits.MaxPageSize
	}

	if other.Vector.HNSW.M != 0 {
		c.Vector.HNSW.M = other.Vector.HNSW.M
	}
	if other.Vector.HNSW.EfConstruction != 0 {
		c.Vector.HNSW.EfConstruction = other.Vector.HNSW.EfConstruction
	}
	if other.Vector.HNSW.EfSearch != 0 {
		c.Vector.HNSW.EfSearch = other.Vector.HNSW.EfSearch
	}
	if other.Vector.HNSW.OversampleMultiplier != 0 {
		c.Vector.HNSW.OversampleMultiplier = other.Vector.HNSW.OversampleMultiplier
	}
	if other.Vector.Hybrid.Fusion != "" {
		c.Vector.Hybrid.Fusion = other.Vector.Hybrid.Fusion
	}
	if other.Vector.Hybrid.VectorWeight != 0 {
		c.Vector.Hybrid.VectorWeight = other.Vector.Hybrid.VectorWeight
	}
	if other.Vector.Hybrid.TextWeight != 0 {
		c.Vector.Hybrid.TextWeight = other.Vector.Hybrid.TextWeight
	}
	if other.Vector.Hybrid.RRFConstant != 0 {
		c.Vector.Hybrid.RRFConstant = other.Vector.Hybrid.RRFConstant
	}

	if other.Indexer.DefaultBatchSize != 0 {
		c.Indexer.DefaultBatchSize = other.Indexer.DefaultBatchSize
	}
	if other.Indexer.DefaultTimeoutMinutes != 0 {
		c.Indexer.DefaultTimeoutMinutes = other.Indexer.DefaultTimeoutMinutes
	}
	if other.Indexer.TickInterval != "" {
		c.Indexer.TickInterval = other.Indexer.TickInterval
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	c.Logging.Debug = c.Logging.Debug || other.Logging.Debug
}

// applyEnvOverrides applies SEARCHEMU_* environment variable overrides,
// which take precedence over file-based configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEARCHEMU_ADMIN_API_KEY"); v != "" {
		c.Auth.AdminAPIKey = v
	}
	if v := os.Getenv("SEARCHEMU_QUERY_API_KEY"); v != "" {
		c.Auth.QueryAPIKey = v
	}
	if v := os.Getenv("SEARCHEMU_ENTRA_SHARED_SECRET"); v != "" {
		c.Auth.EntraIDSharedSecret = v
	}
	if v := os.Getenv("SEARCHEMU_DATA_DIRECTORY"); v != "" {
		c.DataDirectory = v
	}
	if v := os.Getenv("SEARCHEMU_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SEARCHEMU_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("SEARCHEMU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEARCHEMU_DEV_MODE"); v != "" {
		c.Server.DevMode = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks invariants that the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.DataDirectory == "" {
		return fmt.Errorf("data_directory must not be empty")
	}
	if c.Limits.DefaultPageSize <= 0 {
		return fmt.Errorf("limits.default_page_size must be positive, got %d", c.Limits.DefaultPageSize)
	}
	if c.Limits.MaxPageSize < c.Limits.DefaultPageSize {
		return fmt.Errorf("limits.max_page_size (%d) must be >= limits.default_page_size (%d)", c.Limits.MaxPageSize, c.Limits.DefaultPageSize)
	}
	if c.Limits.MaxFieldsPerIndex <= 0 {
		return fmt.Errorf("limits.max_fields_per_index must be positive, got %d", c.Limits.MaxFieldsPerIndex)
	}
	switch strings.ToLower(c.Vector.Hybrid.Fusion) {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("vector.hybrid.fusion must be 'rrf' or 'weighted', got %s", c.Vector.Hybrid.Fusion)
	}
	if c.Vector.Hybrid.RRFConstant <= 0 {
		return fmt.Errorf("vector.hybrid.rrf_k must be positive, got %d", c.Vector.Hybrid.RRFConstant)
	}
	for _, mode := range c.Auth.EnabledModes {
		switch mode {
		case "api_key", "entra_id", "simulated":
		default:
			return fmt.Errorf("authentication.enabled_modes contains unknown mode %q", mode)
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
