// Package compose turns a retrieval result into the text shown to the user.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/completion"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// NoMatchMessage is returned when no record cleared the similarity threshold.
const NoMatchMessage = "I couldn't find a relevant answer in the knowledge base. Try rephrasing your question."

// Mode selects how answers are composed.
type Mode string

const (
	// ModeDirect returns the stored answer verbatim.
	ModeDirect Mode = "direct"
	// ModeAugmented rewrites the stored answer through a completion service.
	ModeAugmented Mode = "augmented"
)

// ParseMode converts a config or request value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDirect, ModeAugmented:
		return m, nil
	default:
		return "", fmt.Errorf("unknown composition mode %q", s)
	}
}

// Composer produces answer text for a match.
type Composer interface {
	Compose(ctx context.Context, match models.MatchResult, query string) (string, error)
	Mode() Mode
}

// Completer is the part of the completion client the augmented composer needs.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// CompositionError reports that augmented composition failed for a matched record.
// The match is kept so the caller can fall back to the stored answer.
type CompositionError struct {
	Mode  Mode
	Query string
	Match models.MatchResult
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s answer: %v", e.Mode, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// Retryable reports whether trying again later might succeed.
func (e *CompositionError) Retryable() bool {
	return completion.IsRetryable(e.Err)
}

// Direct returns stored answers unchanged.
type Direct struct{}

// Compose returns the matched record's answer, or NoMatchMessage.
func (Direct) Compose(_ context.Context, match models.MatchResult, _ string) (string, error) {
	if !match.Matched || match.Record == nil {
		return NoMatchMessage, nil
	}
	return match.Record.Answer, nil
}

func (Direct) Mode() Mode { return ModeDirect }

// Augmented asks a completion service to answer the query from the matched record only.
type Augmented struct {
	client       Completer
	systemPrompt string
	maxTokens    int
	temperature  float64
	logger       *zap.Logger
}

// Option configures an Augmented composer.
type Option func(*Augmented)

// WithSystemPrompt sets the system instruction sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(a *Augmented) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(a *Augmented) {
		a.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature (default 0).
func WithTemperature(t float64) Option {
	return func(a *Augmented) {
		a.temperature = t
	}
}

// WithLogger sets the logger for the composer.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Augmented) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// DefaultSystemPrompt fixes the assistant's persona and grounding rules.
const DefaultSystemPrompt = "You are a B2B lead assistant for a sales team. " +
	"Answer the user's question using only the provided context. " +
	"Be concise and factual, and never invent names, companies, numbers or links."

// NewAugmented returns an augmented composer backed by client.
func NewAugmented(client Completer, opts ...Option) *Augmented {
	a := &Augmented{
		client:       client,
		systemPrompt: DefaultSystemPrompt,
		maxTokens:    300,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compose returns NoMatchMessage without calling the service when nothing matched.
// Otherwise it sends the matched pair as context and returns the completion text.
// Failures are returned as *CompositionError.
func (a *Augmented) Compose(ctx context.Context, match models.MatchResult, query string) (string, error) {
	if !match.Matched || match.Record == nil {
		return NoMatchMessage, nil
	}
	req := completion.Request{
		Messages: []completion.Message{
			{Role: "system", Content: a.systemPrompt},
			{Role: "user", Content: UserPrompt(match.Record, query)},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	text, err := a.client.Complete(ctx, req)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("%w: empty content", completion.ErrMalformedResponse)
	}
	if err != nil {
		a.logger.Warn("augmented composition failed",
			zap.String("query", query), zap.Int("record", match.Index), zap.Error(err))
		return "", &CompositionError{Mode: ModeAugmented, Query: query, Match: match, Err: err}
	}
	return text, nil
}

func (a *Augmented) Mode() Mode { return ModeAugmented }

// UserPrompt renders the matched record and the user's question as one message.
func UserPrompt(record *models.QARecord, query string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString("Q: ")
	b.WriteString(record.Question)
	b.WriteString("\nA: ")
	b.WriteString(record.Answer)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// New returns the composer for mode. Augmented mode requires client.
func New(mode Mode, client Completer, opts ...Option) (Composer, error) {
	switch mode {
	case ModeDirect:
		return Direct{}, nil
	case ModeAugmented:
		if client == nil {
			return nil, fmt.Errorf("augmented mode requires a completion client")
		}
		return NewAugmented(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown composition mode %q", mode)
	}
}
