package embedding

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"go.uber.org/zap"
)

// Option configures New.
type Option func(*factoryOptions)

type factoryOptions struct {
	logger *zap.Logger
	store  VectorStore
}

// WithLogger sets the logger for the embedder and its cache.
func WithLogger(logger *zap.Logger) Option {
	return func(o *factoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStore enables the persistent embedding cache.
func WithStore(store VectorStore) Option {
	return func(o *factoryOptions) {
		o.store = store
	}
}

// New constructs the backend named by cfg.Backend wrapped in a CachingEmbedder.
// Any construction failure is returned as *InitializationError; there is no fallback backend.
func New(cfg config.EmbeddingConfig, opts ...Option) (Embedder, error) {
	o := &factoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	var (
		inner Embedder
		err   error
	)
	switch cfg.Backend {
	case "onnx":
		inner, err = NewONNXEmbedder(ONNXOptions{
			Model:             cfg.Model,
			ModelPath:         cfg.ModelPath,
			VocabPath:         cfg.VocabPath,
			SharedLibraryPath: cfg.SharedLibraryPath,
			Dimensions:        cfg.Dimensions,
			MaxTokens:         cfg.MaxTokens,
			Pooling:           cfg.Pooling,
			OutputName:        cfg.OutputName,
		})
	case "ollama":
		inner, err = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions, cfg.Concurrency)
	case "hashing":
		inner = NewHashingEmbedder(cfg.Dimensions)
	default:
		err = fmt.Errorf("unknown backend")
	}
	if err != nil {
		return nil, &InitializationError{Backend: cfg.Backend, Model: cfg.Model, Err: err}
	}

	o.logger.Info("embedding backend ready",
		zap.String("backend", cfg.Backend),
		zap.String("model_id", inner.ModelID()),
		zap.Int("dimensions", inner.Dimensions()))

	cacheOpts := []CacheOption{WithCacheLogger(o.logger)}
	if o.store != nil {
		cacheOpts = append(cacheOpts, WithVectorStore(o.store))
	}
	return NewCachingEmbedder(inner, cfg.CacheSize, cacheOpts...), nil
}
