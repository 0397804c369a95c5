// Package keyword suggests related knowledge base questions by keyword match.
package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
)

const questionField = "question"

// minFuzzyLen keeps short words (and stop words) out of fuzzy matching.
const minFuzzyLen = 4

type questionDoc struct {
	Question string `json:"question"`
}

// Suggester is an in-memory Bleve index over corpus questions. It only ever returns
// question text, never answers.
type Suggester struct {
	index     bleve.Index
	questions []string
	fuzziness int
}

// NewSuggester indexes every question of corpus.
func NewSuggester(corpus *models.Corpus) (*Suggester, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(questionField, textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}

	questions := corpus.Questions()
	batch := index.NewBatch()
	for i, q := range questions {
		if err := batch.Index(docID(i), questionDoc{Question: q}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index question %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index questions: %w", err)
	}
	return &Suggester{index: index, questions: questions, fuzziness: 1}, nil
}

// Builder adapts NewSuggester for retrieval.WithSuggester.
func Builder(_ context.Context, corpus *models.Corpus) (retrieval.Suggester, error) {
	return NewSuggester(corpus)
}

// docID pads positions so that ID order equals corpus order.
func docID(i int) string {
	return fmt.Sprintf("%08d", i)
}

// Suggest returns up to n distinct questions sharing words with query, best first.
// Words of four or more letters also match with one typo.
func (s *Suggester) Suggest(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	req := bleve.NewSearchRequest(s.buildQuery(query))
	req.Size = n * 2
	req.SortBy([]string{"-_score", "_id"})
	results, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(s.questions) {
			continue
		}
		q := s.questions[pos]
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (s *Suggester) buildQuery(query string) blevequery.Query {
	match := bleve.NewMatchQuery(query)
	match.SetField(questionField)
	queries := []blevequery.Query{match}
	for _, term := range tokenizeQuery(query) {
		if len([]rune(term)) < minFuzzyLen {
			continue
		}
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(s.fuzziness)
		fq.SetField(questionField)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery lowercases query and splits it on anything that is not a letter or digit.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// DocCount returns the number of indexed questions.
func (s *Suggester) DocCount() (uint64, error) {
	return s.index.DocCount()
}

// Close closes the Bleve index.
func (s *Suggester) Close() error {
	return s.index.Close()
}
