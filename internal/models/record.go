// Package models defines core data structures for knowledge records, queries, and answers.
package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// QARecord is one precomputed question/answer pair from the knowledge base.
type QARecord struct {
	Question string         `json:"question" yaml:"question" validate:"required"`
	Answer   string         `json:"answer" yaml:"answer" validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Corpus is the ordered set of records loaded from one knowledge base file.
// Positions are stable: the similarity index refers to records by position.
type Corpus struct {
	Records     []QARecord `json:"records"`
	Source      string     `json:"source"`
	Fingerprint string     `json:"fingerprint"`
}

// NewCorpus builds a corpus from records and computes its fingerprint.
func NewCorpus(source string, records []QARecord) *Corpus {
	return &Corpus{
		Records:     records,
		Source:      source,
		Fingerprint: Fingerprint(records),
	}
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Questions returns the question text of every record, in corpus order.
func (c *Corpus) Questions() []string {
	out := make([]string, len(c.Records))
	for i := range c.Records {
		out[i] = c.Records[i].Question
	}
	return out
}

// Fingerprint returns a content hash over the question and answer text of records in order.
// Two corpora with the same fingerprint index identically.
func Fingerprint(records []QARecord) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.Question))
		h.Write([]byte{0})
		h.Write([]byte(r.Answer))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
