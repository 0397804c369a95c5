// Package embedding turns text into fixed-length vectors for cosine similarity.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text. The same text embedded by the same
// model always yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the model and dimensionality; vectors from different IDs are not comparable.
	ModelID() string
	Close() error
}

// InitializationError reports that an embedding backend could not be constructed.
// Callers treat it as fatal at startup.
type InitializationError struct {
	Backend string
	Model   string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("embedding: init %s backend (model %q): %v", e.Backend, e.Model, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed [%d]: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
