package assistant

import (
	"context"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Status describes the loaded knowledge base and service health.
type Status struct {
	Ready            bool                `json:"ready"`
	Records          int                 `json:"records"`
	Source           string              `json:"source,omitempty"`
	Fingerprint      string              `json:"fingerprint,omitempty"`
	BuiltAt          *time.Time          `json:"built_at,omitempty"`
	Model            string              `json:"model,omitempty"`
	Dimensions       int                 `json:"dimensions,omitempty"`
	Threshold        float64             `json:"threshold"`
	Mode             string              `json:"mode"`
	LastReload       *time.Time          `json:"last_reload,omitempty"`
	LastReloadError  string              `json:"last_reload_error,omitempty"`
	CachedEmbeddings int64               `json:"cached_embeddings"`
	Queries          *storage.QueryStats `json:"queries,omitempty"`
	DatabaseBytes    int64               `json:"database_bytes,omitempty"`
	RecentQueries    []*models.QueryLog  `json:"recent_queries,omitempty"`
}

const recentQueryLimit = 5

// Status reports the current snapshot and, when storage is configured, query log counts.
func (s *Service) Status(ctx context.Context) *Status {
	st := &Status{
		Threshold: s.engine.Threshold(),
		Mode:      string(s.mode),
	}
	if snap := s.engine.Snapshot(); snap != nil {
		built := snap.BuiltAt
		st.Ready = true
		st.Records = snap.Corpus.Len()
		st.Source = snap.Corpus.Source
		st.Fingerprint = snap.Corpus.Fingerprint
		st.BuiltAt = &built
		st.Model = snap.Index.ModelID()
		st.Dimensions = snap.Index.Dimensions()
	}

	s.statusMu.RLock()
	if !s.lastReload.IsZero() {
		last := s.lastReload
		st.LastReload = &last
	}
	if s.lastErr != nil {
		st.LastReloadError = s.lastErr.Error()
	}
	s.statusMu.RUnlock()

	if s.store == nil {
		return st
	}
	if stats, err := s.store.QueryStats(ctx); err != nil {
		s.logger.Warn("failed to read query stats", zap.Error(err))
	} else {
		st.Queries = stats
	}
	if recent, err := s.store.RecentQueries(ctx, recentQueryLimit); err != nil {
		s.logger.Warn("failed to read recent queries", zap.Error(err))
	} else {
		st.RecentQueries = recent
	}
	if st.Model != "" {
		if n, err := s.store.CountEmbeddings(ctx, st.Model); err != nil {
			s.logger.Warn("failed to count cached embeddings", zap.Error(err))
		} else {
			st.CachedEmbeddings = n
		}
	}
	if p, ok := s.store.(interface{ Path() string }); ok {
		if n, err := storage.DatabaseBytes(p.Path()); err == nil {
			st.DatabaseBytes = n
		}
	}
	return st
}
