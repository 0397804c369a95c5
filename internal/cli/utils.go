// Package cli provides output formatting and a remote client for the kotae command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for answer and status output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints only the answer text, one line per answer.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q (supported: text, compact, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, answer)
	case OutputCompact:
		_, err := fmt.Fprintln(w, utils.CollapseSpace(answer.Text))
		return err
	default:
		writeAnswerText(w, answer)
		return nil
	}
}

func writeAnswerText(w io.Writer, a *models.Answer) {
	fmt.Fprintf(w, "\n%s\n\n", a.Text)
	if a.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", a.Warning)
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Status: %s | Mode: %s | Score: %.4f (threshold %.2f) | %dms\n",
		a.Status, a.Mode, a.Match.Score, a.Match.Threshold, a.QueryTime)
	if a.Match.Record != nil {
		fmt.Fprintf(w, "Matched: %s\n", utils.Truncate(a.Match.Record.Question, 120))
	}
	if len(a.Suggestions) > 0 {
		fmt.Fprintln(w, "Did you mean:")
		for _, s := range a.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

// WriteStatus writes service status to w in the given format.
func WriteStatus(w io.Writer, st *assistant.Status, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, st)
	case OutputCompact:
		_, err := fmt.Fprintf(w, "ready=%t records=%d model=%s\n", st.Ready, st.Records, st.Model)
		return err
	}
	if !st.Ready {
		fmt.Fprintln(w, "Knowledge base: not loaded")
	} else {
		fmt.Fprintf(w, "Knowledge base: %s\n", st.Source)
		fmt.Fprintf(w, "Records:        %d\n", st.Records)
		fmt.Fprintf(w, "Fingerprint:    %s\n", utils.Truncate(st.Fingerprint, 16))
		fmt.Fprintf(w, "Model:          %s (%d dims)\n", st.Model, st.Dimensions)
	}
	fmt.Fprintf(w, "Threshold:      %.2f\n", st.Threshold)
	fmt.Fprintf(w, "Mode:           %s\n", st.Mode)
	if st.LastReloadError != "" {
		fmt.Fprintf(w, "Last reload:    failed: %s\n", st.LastReloadError)
	}
	if st.Queries != nil {
		fmt.Fprintf(w, "Queries:        %d", st.Queries.Total)
		for _, status := range []models.AnswerStatus{models.StatusAnswered, models.StatusNoMatch, models.StatusDegraded, models.StatusUnavailable} {
			if n := st.Queries.ByStatus[status]; n > 0 {
				fmt.Fprintf(w, " %s=%d", status, n)
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Cached vectors: %d\n", st.CachedEmbeddings)
	}
	for i, q := range st.RecentQueries {
		label := ""
		if i == 0 {
			label = "Recent:"
		}
		fmt.Fprintf(w, "%-15s [%s] %s (%.3f)\n", label, q.Status, utils.Truncate(q.Query, 50), q.Score)
	}
	if st.DatabaseBytes > 0 {
		fmt.Fprintf(w, "Database size:  %s\n", FormatBytes(st.DatabaseBytes))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
