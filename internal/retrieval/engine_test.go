package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCorpus(pairs ...string) *models.Corpus {
	var records []models.QARecord
	for i := 0; i+1 < len(pairs); i += 2 {
		records = append(records, models.QARecord{Question: pairs[i], Answer: pairs[i+1]})
	}
	return models.NewCorpus("test", records)
}

func builtEngine(t *testing.T, threshold float64, c *models.Corpus, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(embedding.NewHashingEmbedder(1024), threshold, opts...)
	require.NoError(t, e.Build(context.Background(), c))
	return e
}

func TestRetrieve_overlappingQueryMatches(t *testing.T) {
	e := builtEngine(t, 0.4, newCorpus("What is the capital of France?", "Paris."))

	res, err := e.Retrieve(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.NotNil(t, res.Record)
	assert.Equal(t, "Paris.", res.Record.Answer)
	assert.Equal(t, 0, res.Index)
	assert.InDelta(t, 3/math.Sqrt(18), res.Score, 1e-4)
	assert.Equal(t, 0.4, res.Threshold)
}

func TestRetrieve_unrelatedQueryIsNoMatch(t *testing.T) {
	e := builtEngine(t, 0.4, newCorpus("What is the capital of France?", "Paris."))

	res, err := e.Retrieve(context.Background(), "best pizza topping")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Nil(t, res.Record)
	assert.Equal(t, -1, res.Index)
	assert.Less(t, res.Score, 0.4)
}

func TestRetrieve_picksClosestRecord(t *testing.T) {
	e := builtEngine(t, 0.4, newCorpus(
		"What is 2+2?", "4",
		"What is the capital of France?", "Paris.",
		"Who wrote Hamlet?", "Shakespeare.",
	))
	res, err := e.Retrieve(context.Background(), "capital of France")
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, "Paris.", res.Record.Answer)
}

func TestRetrieve_exactQuestionScoresOne(t *testing.T) {
	c := newCorpus("What is 2+2?", "4", "Who wrote Hamlet?", "Shakespeare.")
	e := builtEngine(t, 0.99, c)
	for i, q := range c.Questions() {
		res, err := e.Retrieve(context.Background(), q)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.Equal(t, i, res.Index)
		assert.InDelta(t, 1.0, res.Score, 1e-6)
	}
}

func TestRetrieve_thresholdBoundary(t *testing.T) {
	c := newCorpus("What is the capital of France?", "Paris.")
	score := 3 / math.Sqrt(18)

	at := builtEngine(t, score-1e-6, c)
	res, err := at.Retrieve(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.True(t, res.Matched, "score equal to threshold should match")

	above := builtEngine(t, score+1e-3, c)
	res, err = above.Retrieve(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestRetrieve_deterministic(t *testing.T) {
	e := builtEngine(t, 0.4, newCorpus("What is the capital of France?", "Paris.", "Who wrote Hamlet?", "Shakespeare."))
	first, err := e.Retrieve(context.Background(), "who wrote it")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Retrieve(context.Background(), "who wrote it")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieve_errors(t *testing.T) {
	e := NewEngine(embedding.NewHashingEmbedder(64), 0.4)
	_, err := e.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, e.Build(context.Background(), newCorpus("q", "a")))
	_, err = e.Retrieve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	assert.Error(t, e.Build(context.Background(), models.NewCorpus("empty", nil)))
}

type brokenEmbedder struct{ *embedding.HashingEmbedder }

func (brokenEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model crashed")
}

func TestBuild_failureKeepsPreviousSnapshot(t *testing.T) {
	inner := embedding.NewHashingEmbedder(64)
	e := NewEngine(inner, 0.4)
	first := newCorpus("What is 2+2?", "4")
	require.NoError(t, e.Build(context.Background(), first))

	e.embedder = brokenEmbedder{inner}
	err := e.Build(context.Background(), newCorpus("Who wrote Hamlet?", "Shakespeare."))
	require.Error(t, err)
	assert.Same(t, first, e.Snapshot().Corpus)
}

func TestCandidates(t *testing.T) {
	e := builtEngine(t, 0.4, newCorpus(
		"What is 2+2?", "4",
		"What is the capital of France?", "Paris.",
		"Who wrote Hamlet?", "Shakespeare.",
	))
	got, err := e.Candidates(context.Background(), "capital of France", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.True(t, got[0].Matched)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.NotNil(t, got[1].Record)
}

type stubSuggester struct {
	questions []string
	closed    bool
}

func (s *stubSuggester) Suggest(_ context.Context, _ string, n int) ([]string, error) {
	if n < len(s.questions) {
		return s.questions[:n], nil
	}
	return s.questions, nil
}

func (s *stubSuggester) Close() error {
	s.closed = true
	return nil
}

func TestSuggest_rebuiltWithSnapshot(t *testing.T) {
	var built []*stubSuggester
	builder := func(_ context.Context, c *models.Corpus) (Suggester, error) {
		s := &stubSuggester{questions: c.Questions()}
		built = append(built, s)
		return s, nil
	}
	e := builtEngine(t, 0.4, newCorpus("q1", "a1", "q2", "a2"), WithSuggester(builder))

	got, err := e.Suggest(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, got)

	require.NoError(t, e.Build(context.Background(), newCorpus("q3", "a3")))
	require.Len(t, built, 2)
	assert.True(t, built[0].closed)

	got, err = e.Suggest(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"q3"}, got)

	require.NoError(t, e.Close())
	assert.True(t, built[1].closed)
}

func TestSuggest_builderFailureIsNotFatal(t *testing.T) {
	builder := func(context.Context, *models.Corpus) (Suggester, error) {
		return nil, errors.New("no index")
	}
	e := builtEngine(t, 0.4, newCorpus("q", "a"), WithSuggester(builder))
	got, err := e.Suggest(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}
