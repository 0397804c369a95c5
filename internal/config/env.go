package config

import (
	"fmt"
	"strconv"
)

// Environment variables that override file values. Secrets such as the API key are
// expected to come from here (or a .env file next to the config) rather than the YAML.
const (
	EnvCompletionEndpoint = "KOTAE_COMPLETION_ENDPOINT"
	EnvCompletionAPIKey   = "KOTAE_COMPLETION_API_KEY"
	EnvCompletionMode     = "KOTAE_COMPLETION_MODE"
	EnvThreshold          = "KOTAE_THRESHOLD"
	EnvEmbeddingModel     = "KOTAE_EMBEDDING_MODEL"
	EnvKnowledgePath      = "KOTAE_KNOWLEDGE_PATH"
)

// ApplyEnv overrides cfg fields from environment variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvCompletionEndpoint); ok && v != "" {
		cfg.Completion.Endpoint = v
	}
	if v, ok := lookup(EnvCompletionAPIKey); ok && v != "" {
		cfg.Completion.APIKey = v
	}
	if v, ok := lookup(EnvCompletionMode); ok && v != "" {
		cfg.Completion.Mode = v
	}
	if v, ok := lookup(EnvEmbeddingModel); ok && v != "" {
		cfg.Embedding.Model = v
	}
	if v, ok := lookup(EnvKnowledgePath); ok && v != "" {
		cfg.Knowledge.Path = v
	}
	if v, ok := lookup(EnvThreshold); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvThreshold, v, err)
		}
		cfg.Retrieval.Threshold = &f
	}
	return nil
}
