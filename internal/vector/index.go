// Package vector holds the in-memory similarity index over corpus question embeddings.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrEmptyIndex is returned when selecting from an index with no vectors.
var ErrEmptyIndex = errors.New("vector: index is empty")

// Index stores one L2-normalized vector per corpus record; position i is record i.
// It is immutable after Build and safe for concurrent readers.
type Index struct {
	dimensions int
	modelID    string
	vectors    [][]float32
}

// Hit is one scored position in the index.
type Hit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Build embeds every question of corpus in one batch and stores normalized copies in corpus order.
func Build(ctx context.Context, corpus *models.Corpus, embedder embedding.Embedder) (*Index, error) {
	questions := corpus.Questions()
	vectors, err := embedder.EmbedBatch(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	idx, err := New(embedder.Dimensions(), vectors)
	if err != nil {
		return nil, err
	}
	if idx.Size() != len(questions) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d records", idx.Size(), len(questions))
	}
	idx.modelID = embedder.ModelID()
	return idx, nil
}

// New builds an index from precomputed vectors, which must all have the given dimension.
func New(dimensions int, vectors [][]float32) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	idx := &Index{dimensions: dimensions, vectors: make([][]float32, len(vectors))}
	for i, v := range vectors {
		if len(v) != dimensions {
			return nil, fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dimensions)
		}
		idx.vectors[i] = utils.Normalized(v)
	}
	return idx, nil
}

// Size returns the number of vectors in the index.
func (x *Index) Size() int {
	return len(x.vectors)
}

// Dimensions returns the vector dimension.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// ModelID returns the embedding model the index was built with, if known.
func (x *Index) ModelID() string {
	return x.modelID
}

// Score returns the cosine similarity of query against every stored vector, in index order.
// A zero query vector scores 0 everywhere.
func (x *Index) Score(query []float32) ([]float64, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	q := utils.Normalized(query)
	scores := make([]float64, len(x.vectors))
	for i, v := range x.vectors {
		scores[i] = clamp(utils.Dot(q, v))
	}
	return scores, nil
}

// Best returns the position and score of the most similar vector. Ties go to the lowest position.
func (x *Index) Best(query []float32) (int, float64, error) {
	if len(x.vectors) == 0 {
		return -1, 0, ErrEmptyIndex
	}
	scores, err := x.Score(query)
	if err != nil {
		return -1, 0, err
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, scores[best], nil
}

// Search returns up to k hits ordered by descending score, ties by ascending position.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	scores, err := x.Score(query)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(scores))
	for i, s := range scores {
		hits[i] = Hit{Index: i, Score: s}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:max(k, 0)]
	}
	return hits, nil
}
