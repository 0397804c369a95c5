package config

import "time"

// DefaultThreshold is the minimum cosine similarity for accepting a match.
const DefaultThreshold = 0.4

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:*"}
	}
	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = "/usr/local/var/kotae/outputs/generated_qa.json"
	}
	if cfg.Knowledge.Watch == nil {
		t := true
		cfg.Knowledge.Watch = &t
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Backend == "onnx" {
		cfg.Embedding.ModelPath = "/usr/local/var/kotae/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 128
	}
	if cfg.Embedding.Pooling == "" {
		cfg.Embedding.Pooling = "mean"
	}
	if cfg.Embedding.OutputName == "" {
		if cfg.Embedding.Pooling == "mean" {
			cfg.Embedding.OutputName = "last_hidden_state"
		} else {
			cfg.Embedding.OutputName = "output"
		}
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OllamaURL == "" && cfg.Embedding.Backend == "ollama" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Retrieval.Threshold == nil {
		t := DefaultThreshold
		cfg.Retrieval.Threshold = &t
	}
	if cfg.Retrieval.Suggestions == 0 {
		cfg.Retrieval.Suggestions = 3
	}
	if cfg.Completion.Mode == "" {
		cfg.Completion.Mode = "direct"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "local-model"
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 300
	}
	if cfg.Completion.Timeout == 0 {
		cfg.Completion.Timeout = 30 * time.Second
	}
	if cfg.Completion.MaxRetries == 0 {
		cfg.Completion.MaxRetries = 2
	}
	if cfg.Completion.RetryBaseDelay == 0 {
		cfg.Completion.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Completion.FallbackToDirect == nil {
		t := true
		cfg.Completion.FallbackToDirect = &t
	}
}
