// Package config provides configuration loading and structs for the kotae server and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Completion CompletionConfig `yaml:"completion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=0,lte=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// StorageConfig holds the SQLite database path (embedding cache and query log).
// An empty path disables persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// KnowledgeConfig locates the knowledge base file and the dataset it is generated from.
type KnowledgeConfig struct {
	Path        string `yaml:"path" validate:"required"`
	DatasetPath string `yaml:"dataset_path"`
	Watch       *bool  `yaml:"watch"`
}

// WatchOrDefault returns whether to reload on file changes; defaults to true when unset.
func (k *KnowledgeConfig) WatchOrDefault() bool {
	if k.Watch != nil {
		return *k.Watch
	}
	return true
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Backend           string `yaml:"backend" validate:"oneof=onnx ollama hashing"`
	Model             string `yaml:"model" validate:"required"`
	ModelPath         string `yaml:"model_path"`
	VocabPath         string `yaml:"vocab_path"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	Dimensions        int    `yaml:"dimensions" validate:"gt=0"`
	MaxTokens         int    `yaml:"max_tokens" validate:"gt=2"`
	Pooling           string `yaml:"pooling" validate:"oneof=none mean"`
	OutputName        string `yaml:"output_name"`
	CacheSize         int    `yaml:"cache_size" validate:"gte=0"`
	OllamaURL         string `yaml:"ollama_url" validate:"omitempty,url"`
	Concurrency       int    `yaml:"concurrency" validate:"gte=0"`
}

// RetrievalConfig holds the similarity threshold and no-match suggestion settings.
type RetrievalConfig struct {
	// Threshold is the minimum cosine similarity for a match. Nil means the default (0.4).
	Threshold   *float64 `yaml:"threshold" validate:"required,gte=-1,lte=1"`
	Suggestions int      `yaml:"suggestions" validate:"gte=0"`
}

// ThresholdOrDefault returns the configured threshold or DefaultThreshold when unset.
func (r *RetrievalConfig) ThresholdOrDefault() float64 {
	if r.Threshold != nil {
		return *r.Threshold
	}
	return DefaultThreshold
}

// CompletionConfig holds the external completion service settings.
type CompletionConfig struct {
	Mode             string        `yaml:"mode" validate:"oneof=direct augmented"`
	Endpoint         string        `yaml:"endpoint" validate:"omitempty,url"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"api_key"`
	MaxTokens        int           `yaml:"max_tokens" validate:"gt=0"`
	Temperature      float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries       int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RateLimit        float64       `yaml:"rate_limit" validate:"gte=0"`
	RateBurst        int           `yaml:"rate_burst" validate:"gte=0"`
	SystemPrompt     string        `yaml:"system_prompt"`
	FallbackToDirect *bool         `yaml:"fallback_to_direct"`
}

// FallbackOrDefault returns whether a failed augmented answer falls back to the stored
// answer; defaults to true when unset.
func (c *CompletionConfig) FallbackOrDefault() bool {
	if c.FallbackToDirect != nil {
		return *c.FallbackToDirect
	}
	return true
}

var validate = validator.New()

// Load reads and parses the config file at path, applies .env and KOTAE_* environment
// overrides, expands paths, applies defaults, and validates the result.
// Returns an error if the file cannot be read, parsed, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	// Values already in the environment win over the .env file.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Knowledge.Path = expandPath(cfg.Knowledge.Path, configDir)
	cfg.Knowledge.DatasetPath = expandPath(cfg.Knowledge.DatasetPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Embedding.SharedLibraryPath = expandPath(cfg.Embedding.SharedLibraryPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and returns one error listing every violation.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if c.Completion.Mode == "augmented" && c.Completion.Endpoint == "" {
		return errors.New("invalid config: completion.endpoint is required in augmented mode")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
