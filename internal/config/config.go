// Package config loads wordrank's configuration via viper: defaults, an
// optional config file, and WORDRANK_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults mirror spec.md §6 plus the meaningful-pool size tunable. The
// meaningful POS allow-list is not configurable; it is fixed in
// oracle.PartOfSpeech.Meaningful.
const (
	DefaultBackendBindAddr    = ":8000"
	DefaultMeaningfulPoolSize = 2000
	DefaultMemoryLimitBytes   = 1 << 30 // 1GiB, same order as the teacher's default
	DefaultHintAuthor         = "hint"
)

// Config holds every recognized option from spec.md §6 plus the ambient
// additions SPEC_FULL.md §3.2 calls for.
type Config struct {
	BackendBindAddr    string   `mapstructure:"backend_bind_addr"`
	CORSAllowOrigins   []string `mapstructure:"cors_allow_origins"`
	VocabPath          string   `mapstructure:"vocab_path"`
	EmbeddingModelName string   `mapstructure:"embedding_model_name"`
	VocabRankSize      int      `mapstructure:"vocab_rank_size"`
	MeaningfulPoolSize int      `mapstructure:"meaningful_pool_size"`
	MemoryLimitBytes   int64    `mapstructure:"memory_limit_bytes"`
	WorkerPoolSize     int      `mapstructure:"worker_pool_size"`
	HintAuthor         string   `mapstructure:"hint_author"`
}

// Load builds a Config from defaults, an optional file at path (if
// non-empty), and environment variables prefixed WORDRANK_. An empty path
// is not an error in itself — defaults plus environment produce the
// Config, the same tolerant posture as the teacher's DefaultConfig() —
// but Validate still rejects it unless vocab_path is set somewhere.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("backend_bind_addr", DefaultBackendBindAddr)
	v.SetDefault("cors_allow_origins", []string{})
	// Registered with empty defaults so Unmarshal sees them when they come
	// only from the environment.
	v.SetDefault("vocab_path", "")
	v.SetDefault("embedding_model_name", "")
	v.SetDefault("vocab_rank_size", 0)
	v.SetDefault("meaningful_pool_size", DefaultMeaningfulPoolSize)
	v.SetDefault("memory_limit_bytes", DefaultMemoryLimitBytes)
	v.SetDefault("worker_pool_size", 0) // 0 = runtime.NumCPU() at call site
	v.SetDefault("hint_author", DefaultHintAuthor)

	v.SetEnvPrefix("wordrank")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("wordrank: reading config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("wordrank: decoding config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that a Config is usable.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrInvalidConfiguration
	}
	if cfg.VocabPath == "" {
		return errors.New("wordrank: vocab_path is required")
	}
	if cfg.MeaningfulPoolSize <= 0 {
		return ErrInvalidConfiguration
	}
	if cfg.MemoryLimitBytes <= 0 {
		return ErrInvalidConfiguration
	}
	if cfg.VocabRankSize < 0 {
		return ErrInvalidConfiguration
	}
	return nil
}
