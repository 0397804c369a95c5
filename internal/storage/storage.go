// Package storage persists the embedding cache and the query log.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage is the persistence used by the assistant.
type Storage interface {
	// Embedding cache, keyed by model ID and sha256 of the text.
	GetEmbeddings(ctx context.Context, modelID string, textHashes []string) (map[string][]float32, error)
	PutEmbeddings(ctx context.Context, modelID string, vectors map[string][]float32) error
	CountEmbeddings(ctx context.Context, modelID string) (int64, error)

	// Query log
	RecordQuery(ctx context.Context, q *models.QueryLog) error
	RecentQueries(ctx context.Context, limit int) ([]*models.QueryLog, error)
	QueryStats(ctx context.Context) (*QueryStats, error)

	Close() error
}

// QueryStats summarizes the query log by answer status.
type QueryStats struct {
	Total    int64                         `json:"total"`
	ByStatus map[models.AnswerStatus]int64 `json:"by_status"`
}
