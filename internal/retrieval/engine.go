// Package retrieval selects the best-matching knowledge record for a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrEmptyQuery is returned for queries that are empty after trimming.
	ErrEmptyQuery = errors.New("retrieval: query is empty")
	// ErrNotReady is returned before the first successful Build.
	ErrNotReady = errors.New("retrieval: no knowledge base loaded")
)

// Suggester proposes related questions for a query that found no semantic match.
type Suggester interface {
	Suggest(ctx context.Context, query string, n int) ([]string, error)
	Close() error
}

// SuggesterBuilder creates a Suggester over a corpus. It runs on every Build.
type SuggesterBuilder func(ctx context.Context, corpus *models.Corpus) (Suggester, error)

// Snapshot is a corpus and the index built from it. Index position i is record i.
// Snapshots are never modified; Build replaces the whole snapshot.
type Snapshot struct {
	Corpus    *models.Corpus
	Index     *vector.Index
	BuiltAt   time.Time
	suggester Suggester
}

// Engine answers queries against the current snapshot.
type Engine struct {
	embedder  embedding.Embedder
	threshold float64
	logger    *zap.Logger
	suggest   SuggesterBuilder

	mu   sync.RWMutex
	snap *Snapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSuggester builds a Suggester alongside each snapshot.
func WithSuggester(builder SuggesterBuilder) Option {
	return func(e *Engine) {
		e.suggest = builder
	}
}

// NewEngine returns an engine that accepts matches scoring at least threshold.
func NewEngine(embedder embedding.Embedder, threshold float64, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		threshold: threshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the minimum score for a match.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Build embeds corpus and atomically replaces the current snapshot. On error the
// previous snapshot stays in place.
func (e *Engine) Build(ctx context.Context, corpus *models.Corpus) error {
	if corpus.Len() == 0 {
		return fmt.Errorf("retrieval: cannot build from an empty corpus")
	}
	start := time.Now()
	idx, err := vector.Build(ctx, corpus, e.embedder)
	if err != nil {
		return fmt.Errorf("retrieval: build index: %w", err)
	}
	snap := &Snapshot{Corpus: corpus, Index: idx, BuiltAt: time.Now()}
	if e.suggest != nil {
		s, err := e.suggest(ctx, corpus)
		if err != nil {
			// Suggestions are optional; serve the new index without them.
			e.logger.Warn("suggestion index build failed", zap.Error(err))
		} else {
			snap.suggester = s
		}
	}

	e.mu.Lock()
	old := e.snap
	e.snap = snap
	e.mu.Unlock()

	if old != nil && old.suggester != nil {
		if err := old.suggester.Close(); err != nil {
			e.logger.Warn("failed to close previous suggestion index", zap.Error(err))
		}
	}
	e.logger.Info("knowledge index built",
		zap.Int("records", corpus.Len()),
		zap.String("fingerprint", corpus.Fingerprint),
		zap.String("model", idx.ModelID()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Build.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

func (e *Engine) current() (*Snapshot, error) {
	snap := e.Snapshot()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	return vec, nil
}

// Retrieve embeds query, finds the most similar record and applies the threshold.
// A best score below the threshold is reported as Matched=false with no record.
func (e *Engine) Retrieve(ctx context.Context, query string) (models.MatchResult, error) {
	snap, err := e.current()
	if err != nil {
		return models.MatchResult{}, err
	}
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return models.MatchResult{}, err
	}
	best, score, err := snap.Index.Best(vec)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("retrieval: %w", err)
	}
	if score < e.threshold {
		e.logger.Debug("no match above threshold",
			zap.String("query", query), zap.Float64("best_score", score), zap.Float64("threshold", e.threshold))
		return models.NoMatch(score, e.threshold), nil
	}
	return models.MatchResult{
		Record:    &snap.Corpus.Records[best],
		Index:     best,
		Score:     score,
		Matched:   true,
		Threshold: e.threshold,
	}, nil
}

// Candidates returns the k most similar records with their scores, best first.
// Matched reflects the threshold for each candidate; records are included either way.
func (e *Engine) Candidates(ctx context.Context, query string, k int) ([]models.MatchResult, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := snap.Index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	out := make([]models.MatchResult, len(hits))
	for i, h := range hits {
		out[i] = models.MatchResult{
			Record:    &snap.Corpus.Records[h.Index],
			Index:     h.Index,
			Score:     h.Score,
			Matched:   h.Score >= e.threshold,
			Threshold: e.threshold,
		}
	}
	return out, nil
}

// Suggest returns up to n related questions from the keyword index. It returns nil
// when no suggester is configured.
func (e *Engine) Suggest(ctx context.Context, query string, n int) ([]string, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	if snap.suggester == nil || n <= 0 {
		return nil, nil
	}
	return snap.suggester.Suggest(ctx, query, n)
}

// Close releases the current snapshot's suggester.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil && e.snap.suggester != nil {
		return e.snap.suggester.Close()
	}
	return nil
}
