// Package assistant answers user questions from the knowledge base and reports service status.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/compose"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// UnavailableMessage is shown when an internal failure prevented answering.
const UnavailableMessage = "Something went wrong while answering your question. Please try again later."

// DegradedWarning accompanies a stored answer returned after augmented composition failed.
const DegradedWarning = "The answer service is unavailable right now; showing the stored answer instead."

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrModeUnavailable is returned when a request asks for a mode that is not configured.
	ErrModeUnavailable = errors.New("composition mode not configured")
)

// Service answers questions against the current knowledge snapshot.
type Service struct {
	loader      knowledge.Loader
	engine      *retrieval.Engine
	composers   map[compose.Mode]compose.Composer
	mode        compose.Mode
	fallback    bool
	suggestions int
	store       storage.Storage
	logger      *zap.Logger

	reloadMu   sync.Mutex
	statusMu   sync.RWMutex
	lastReload time.Time
	lastErr    error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithComposer registers the composer used for its mode.
func WithComposer(c compose.Composer) Option {
	return func(s *Service) {
		if c != nil {
			s.composers[c.Mode()] = c
		}
	}
}

// WithFallback controls whether a failed augmented composition falls back to the stored answer.
func WithFallback(enabled bool) Option {
	return func(s *Service) {
		s.fallback = enabled
	}
}

// WithSuggestions sets how many related questions accompany a no-match answer.
func WithSuggestions(n int) Option {
	return func(s *Service) {
		s.suggestions = n
	}
}

// WithStorage enables the query log.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) {
		s.store = store
	}
}

// NewService returns a service that composes answers in mode unless a request overrides it.
// The direct composer is always available.
func NewService(loader knowledge.Loader, engine *retrieval.Engine, mode compose.Mode, opts ...Option) *Service {
	s := &Service{
		loader:    loader,
		engine:    engine,
		composers: map[compose.Mode]compose.Composer{compose.ModeDirect: compose.Direct{}},
		mode:      mode,
		fallback:  true,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the default composition mode.
func (s *Service) Mode() compose.Mode {
	return s.mode
}

// Engine returns the retrieval engine.
func (s *Service) Engine() *retrieval.Engine {
	return s.engine
}

// Reload loads the knowledge base and swaps in a freshly built index. On failure the
// previous snapshot keeps serving and the error is returned.
func (s *Service) Reload(ctx context.Context) (int, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	n, err := s.reload(ctx)
	s.statusMu.Lock()
	s.lastReload = time.Now()
	s.lastErr = err
	s.statusMu.Unlock()
	if err != nil {
		s.logger.Error("knowledge reload failed; keeping previous snapshot", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *Service) reload(ctx context.Context) (int, error) {
	corpus, err := s.loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.engine.Build(ctx, corpus); err != nil {
		return 0, err
	}
	return corpus.Len(), nil
}

// Ask answers one question. Invalid requests return an error wrapping ErrInvalidRequest
// and no answer. Internal failures return an answer with StatusUnavailable together
// with the cause, so callers always have something to show.
func (s *Service) Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	mode := s.mode
	if req.Mode != "" {
		mode = compose.Mode(req.Mode)
	}
	composer, ok := s.composers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
	}

	answer := &models.Answer{
		ID:    uuid.New().String(),
		Query: req.Query,
		Mode:  string(mode),
	}
	answer, err := s.answer(ctx, answer, composer)
	if errors.Is(err, ErrInvalidRequest) {
		return nil, err
	}
	answer.QueryTime = time.Since(start).Milliseconds()
	s.record(ctx, answer)
	return answer, err
}

func (s *Service) answer(ctx context.Context, answer *models.Answer, composer compose.Composer) (*models.Answer, error) {
	match, err := s.engine.Retrieve(ctx, answer.Query)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return answer, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		s.logger.Error("retrieval failed", zap.String("query", answer.Query), zap.Error(err))
		return unavailable(answer), err
	}
	answer.Match = match

	if !match.Matched {
		answer.Status = models.StatusNoMatch
		answer.Text = compose.NoMatchMessage
		answer.Suggestions = s.suggest(ctx, answer.Query)
		return answer, nil
	}

	text, err := composer.Compose(ctx, match, answer.Query)
	if err != nil {
		var ce *compose.CompositionError
		if s.fallback && errors.As(err, &ce) {
			s.logger.Warn("falling back to stored answer",
				zap.String("query", answer.Query), zap.Int("record", match.Index), zap.Error(err))
			direct, _ := compose.Direct{}.Compose(ctx, match, answer.Query)
			answer.Status = models.StatusDegraded
			answer.Text = direct
			answer.Warning = DegradedWarning
			return answer, nil
		}
		s.logger.Error("composition failed", zap.String("query", answer.Query), zap.Error(err))
		return unavailable(answer), err
	}
	answer.Status = models.StatusAnswered
	answer.Text = text
	return answer, nil
}

func unavailable(answer *models.Answer) *models.Answer {
	answer.Status = models.StatusUnavailable
	answer.Text = UnavailableMessage
	return answer
}

func (s *Service) suggest(ctx context.Context, query string) []string {
	if s.suggestions <= 0 {
		return nil
	}
	out, err := s.engine.Suggest(ctx, query, s.suggestions)
	if err != nil {
		s.logger.Warn("suggestions failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return out
}

func (s *Service) record(ctx context.Context, a *models.Answer) {
	if s.store == nil {
		return
	}
	q := &models.QueryLog{
		ID:          a.ID,
		Query:       a.Query,
		Status:      a.Status,
		Matched:     a.Match.Matched,
		Score:       a.Match.Score,
		RecordIndex: a.Match.Index,
		Mode:        a.Mode,
		LatencyMS:   a.QueryTime,
	}
	// The request context may already be cancelled; the log entry should still be written.
	if err := s.store.RecordQuery(context.WithoutCancel(ctx), q); err != nil {
		s.logger.Warn("failed to record query", zap.Error(err))
	}
}

// Retrieve returns the raw retrieval result without composing an answer.
func (s *Service) Retrieve(ctx context.Context, query string) (models.MatchResult, error) {
	return s.engine.Retrieve(ctx, query)
}
