package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

func sampleAnswer() *models.Answer {
	return &models.Answer{
		ID:     "a-1",
		Query:  "capital of France",
		Text:   "Paris.",
		Status: models.StatusAnswered,
		Mode:   "direct",
		Match: models.MatchResult{
			Record:    &models.QARecord{Question: "What is the capital of France?", Answer: "Paris."},
			Index:     0,
			Score:     0.7071,
			Matched:   true,
			Threshold: 0.4,
		},
		QueryTime: 12,
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded models.Answer
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Text != "Paris." || decoded.Status != models.StatusAnswered || decoded.Match.Index != 0 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Paris.", "Status: answered", "Mode: direct", "Score: 0.7071", "12ms", "Matched: What is the capital of France?"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnswer_textNoMatchWithSuggestions(t *testing.T) {
	a := &models.Answer{
		Text:        "nothing found",
		Status:      models.StatusNoMatch,
		Match:       models.NoMatch(0.1, 0.4),
		Suggestions: []string{"Who wrote Hamlet?"},
		Warning:     "",
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, a, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "Matched:") {
		t.Errorf("no-match output should not show a matched record:\n%s", out)
	}
	if !strings.Contains(out, "Did you mean:") || !strings.Contains(out, "Who wrote Hamlet?") {
		t.Errorf("expected suggestions:\n%s", out)
	}
}

func TestWriteAnswer_compact(t *testing.T) {
	a := sampleAnswer()
	a.Text = "Paris\nis the   capital."
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, a, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Paris is the capital.\n" {
		t.Errorf("compact = %q", got)
	}
}

func TestWriteStatus(t *testing.T) {
	st := &assistant.Status{
		Ready:       true,
		Records:     2,
		Source:      "/tmp/kb.json",
		Fingerprint: "0123456789abcdef0123",
		Model:       "hashing-1024",
		Dimensions:  1024,
		Threshold:   0.4,
		Mode:        "direct",
		Queries: &storage.QueryStats{
			Total:    3,
			ByStatus: map[models.AnswerStatus]int64{models.StatusAnswered: 2, models.StatusNoMatch: 1},
		},
		DatabaseBytes: 2048,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"/tmp/kb.json", "Records:        2", "hashing-1024 (1024 dims)", "answered=2", "no_match=1", "2.0 KiB"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, &assistant.Status{}, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "ready=false records=0 model=\n" {
		t.Errorf("compact status = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
