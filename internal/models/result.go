package models

import "time"

// MatchResult is the outcome of retrieving one query against the corpus.
// Matched is true iff Score >= threshold; when false, Record is nil and Index is -1.
type MatchResult struct {
	Record    *QARecord `json:"record,omitempty"`
	Index     int       `json:"index"`
	Score     float64   `json:"score"`
	Matched   bool      `json:"matched"`
	Threshold float64   `json:"threshold"`
}

// NoMatch returns a result for a best score that did not clear the threshold.
func NoMatch(score, threshold float64) MatchResult {
	return MatchResult{Index: -1, Score: score, Threshold: threshold}
}

// AnswerStatus tells the caller what kind of answer was produced.
type AnswerStatus string

const (
	// StatusAnswered means a record matched and the answer was composed normally.
	StatusAnswered AnswerStatus = "answered"
	// StatusNoMatch means nothing in the knowledge base cleared the threshold.
	StatusNoMatch AnswerStatus = "no_match"
	// StatusDegraded means augmented composition failed and the stored answer was returned instead.
	StatusDegraded AnswerStatus = "degraded"
	// StatusUnavailable means an internal failure prevented answering.
	StatusUnavailable AnswerStatus = "unavailable"
)

// Answer is the user-facing response for one query.
type Answer struct {
	ID          string       `json:"id"`
	Query       string       `json:"query"`
	Text        string       `json:"text"`
	Status      AnswerStatus `json:"status"`
	Mode        string       `json:"mode"`
	Match       MatchResult  `json:"match"`
	Suggestions []string     `json:"suggestions,omitempty"`
	// Warning explains a degraded answer (e.g. the completion service failed).
	Warning   string `json:"warning,omitempty"`
	QueryTime int64  `json:"query_time_ms"`
}

// QueryLog is one persisted row of the query history.
type QueryLog struct {
	ID          string       `json:"id"`
	Query       string       `json:"query"`
	Status      AnswerStatus `json:"status"`
	Matched     bool         `json:"matched"`
	Score       float64      `json:"score"`
	RecordIndex int          `json:"record_index"`
	Mode        string       `json:"mode"`
	LatencyMS   int64        `json:"latency_ms"`
	CreatedAt   time.Time    `json:"created_at"`
}
