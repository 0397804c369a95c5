package main

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/completion"
	"github.com/hyperjump/kotae/internal/compose"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Components holds all initialized dependencies.
type Components struct {
	Storage  *storage.SQLiteStorage
	Embedder embedding.Embedder
	Engine   *retrieval.Engine
	Service  *assistant.Service
}

// Close releases all resources.
func (c *Components) Close() error {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	embedding.Shutdown()
	return nil
}

// initializeComponents wires storage, the embedder, retrieval and composition from cfg.
// The knowledge base is not loaded; call Service.Reload.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	embedOpts := []embedding.Option{embedding.WithLogger(logger)}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
		embedOpts = append(embedOpts, embedding.WithStore(store))
	}

	embedder, err := embedding.New(cfg.Embedding, embedOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Embedder = embedder

	engineOpts := []retrieval.Option{retrieval.WithLogger(logger)}
	if cfg.Retrieval.Suggestions > 0 {
		engineOpts = append(engineOpts, retrieval.WithSuggester(keyword.Builder))
	}
	c.Engine = retrieval.NewEngine(embedder, cfg.Retrieval.ThresholdOrDefault(), engineOpts...)

	mode, err := compose.ParseMode(cfg.Completion.Mode)
	if err != nil {
		c.Close()
		return nil, err
	}
	svcOpts := []assistant.Option{
		assistant.WithLogger(logger),
		assistant.WithFallback(cfg.Completion.FallbackOrDefault()),
		assistant.WithSuggestions(cfg.Retrieval.Suggestions),
	}
	if c.Storage != nil {
		svcOpts = append(svcOpts, assistant.WithStorage(c.Storage))
	}
	if cfg.Completion.Endpoint != "" {
		client, err := completion.NewClient(cfg.Completion, completion.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize completion client: %w", err)
		}
		svcOpts = append(svcOpts, assistant.WithComposer(compose.NewAugmented(client,
			compose.WithSystemPrompt(cfg.Completion.SystemPrompt),
			compose.WithMaxTokens(cfg.Completion.MaxTokens),
			compose.WithTemperature(cfg.Completion.Temperature),
			compose.WithLogger(logger),
		)))
	}

	loader := knowledge.NewFileLoader(cfg.Knowledge.Path, knowledge.WithLogger(logger))
	c.Service = assistant.NewService(loader, c.Engine, mode, svcOpts...)
	return c, nil
}

func newGenerator(logger *zap.Logger) *generate.Generator {
	return generate.NewGenerator(generate.WithLogger(logger))
}
