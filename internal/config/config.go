// Package config provides YAML-backed configuration for vectorcore:
// embedding provider settings and per-index-kind defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// Config is the complete vectorcore configuration.
type Config struct {
	Embeddings    EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	IndexDefaults IndexDefaults    `yaml:"index_defaults" json:"index_defaults"`
	Logging       LoggingConfig    `yaml:"logging" json:"logging"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// APIKeyEnv names the environment variable holding the provider's
	// credential. RequireAPIKey raises ConfigError when it is unset.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	// CacheSize is the number of embeddings the LRU cache keeps in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// CircuitBreaker guards a flaky provider behind fail-fast semantics.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

// CircuitBreakerConfig configures the Embedder circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int    `yaml:"max_failures" json:"max_failures"`
	ResetTimeout string `yaml:"reset_timeout" json:"reset_timeout"`
}

// IndexDefaults holds per-kind parameter defaults, applied when a
// library's index_params omits a field. Library-level params always
// take precedence.
type IndexDefaults struct {
	Linear LinearDefaults `yaml:"linear" json:"linear"`
	IVF    IVFDefaults    `yaml:"ivf" json:"ivf"`
	NSW    NSWDefaults    `yaml:"nsw" json:"nsw"`
}

// LinearDefaults is empty today but kept so IndexDefaults has a
// uniform shape across kinds as the set of tunables grows.
type LinearDefaults struct{}

// IVFDefaults mirrors the IVF index's construction parameters.
type IVFDefaults struct {
	NClusters    int     `yaml:"n_clusters" json:"n_clusters"`
	ClusterRatio float64 `yaml:"cluster_ratio" json:"cluster_ratio"`
	NProbes      int     `yaml:"n_probes" json:"n_probes"`
	MaxIter      int     `yaml:"max_iter" json:"max_iter"`
	Tolerance    float64 `yaml:"tolerance" json:"tolerance"`
	Seed         int64   `yaml:"seed" json:"seed"`
}

// NSWDefaults mirrors the NSW index's construction parameters.
type NSWDefaults struct {
	M              int   `yaml:"m" json:"m"`
	EfConstruction int   `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int   `yaml:"ef_search" json:"ef_search"`
	Seed           int64 `yaml:"seed" json:"seed"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Dimensions: 256,
			APIKeyEnv:  "VECTORCORE_EMBEDDER_API_KEY",
			CacheSize:  1000,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:  5,
				ResetTimeout: "30s",
			},
		},
		IndexDefaults: IndexDefaults{
			IVF: IVFDefaults{
				NClusters:    0,
				ClusterRatio: 0.05,
				NProbes:      1,
				MaxIter:      25,
				Tolerance:    1e-4,
				Seed:         1,
			},
			NSW: NSWDefaults{
				M:              16,
				EfConstruction: 100,
				EfSearch:       50,
				Seed:           1,
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			WriteToStderr: true,
		},
	}
}

// Load reads YAML configuration from path and merges it over Default().
// A missing file is not an error; the defaults are used as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if verr := cfg.Validate(); verr != nil {
				return nil, verr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks c for internally inconsistent values. It does not
// check that APIKeyEnv is set in the environment; RequireAPIKey does
// that lookup separately.
func (c *Config) Validate() error {
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if c.Embeddings.APIKeyEnv == "" {
		return fmt.Errorf("embeddings.api_key_env must be set")
	}

	if c.IndexDefaults.IVF.NClusters < 0 {
		return fmt.Errorf("index_defaults.ivf.n_clusters must be non-negative, got %d", c.IndexDefaults.IVF.NClusters)
	}
	if c.IndexDefaults.IVF.NProbes < 1 {
		return fmt.Errorf("index_defaults.ivf.n_probes must be at least 1, got %d", c.IndexDefaults.IVF.NProbes)
	}
	if c.IndexDefaults.IVF.MaxIter < 1 {
		return fmt.Errorf("index_defaults.ivf.max_iter must be at least 1, got %d", c.IndexDefaults.IVF.MaxIter)
	}

	if c.IndexDefaults.NSW.M < 1 {
		return fmt.Errorf("index_defaults.nsw.m must be at least 1, got %d", c.IndexDefaults.NSW.M)
	}
	if c.IndexDefaults.NSW.EfConstruction < c.IndexDefaults.NSW.M {
		return fmt.Errorf("index_defaults.nsw.ef_construction must be >= m")
	}
	if c.IndexDefaults.NSW.EfSearch < 1 {
		return fmt.Errorf("index_defaults.nsw.ef_search must be at least 1, got %d", c.IndexDefaults.NSW.EfSearch)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// RequireAPIKey reads the embedder credential from the environment
// variable named by APIKeyEnv. Absence raises ConfigError, per the
// external interfaces clause on startup credential lookup.
func (c *EmbeddingsConfig) RequireAPIKey() (string, error) {
	val, ok := os.LookupEnv(c.APIKeyEnv)
	if !ok || val == "" {
		return "", vdberrors.ConfigError(fmt.Sprintf("environment variable %s is not set", c.APIKeyEnv), nil)
	}
	return val, nil
}
