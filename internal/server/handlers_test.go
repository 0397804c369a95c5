package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/completion"
	"github.com/hyperjump/kotae/internal/compose"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

const testKB = `[
  {"question": "What is the capital of France?", "answer": "Paris."},
  {"question": "Who wrote Hamlet?", "answer": "Shakespeare."}
]`

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, completion.Request) (string, error) {
	return "", &completion.StatusError{StatusCode: http.StatusInternalServerError, Body: "down"}
}

func newTestServer(t *testing.T, load bool, opts ...assistant.Option) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(path, []byte(testKB), 0644); err != nil {
		t.Fatal(err)
	}
	engine := retrieval.NewEngine(embedding.NewHashingEmbedder(1024), 0.4)
	svc := assistant.NewService(knowledge.NewFileLoader(path), engine, compose.ModeDirect, opts...)
	if load {
		if _, err := svc.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(svc, &config.ServerConfig{Port: 8080}, zap.NewNop()), path
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleAsk(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "capital of France"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.StatusAnswered || ans.Text != "Paris." {
		t.Errorf("answer = %+v", ans)
	}

	w = do(t, h, http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "best pizza topping"})
	if w.Code != http.StatusOK {
		t.Fatalf("no match status: got %d", w.Code)
	}
	ans = models.Answer{}
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.StatusNoMatch || ans.Text != compose.NoMatchMessage {
		t.Errorf("no match answer = %+v", ans)
	}
}

func TestHandleAsk_badRequests(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Handler()

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed body", "{not json"},
		{"empty query", models.AskRequest{Query: "  "}},
		{"unknown mode", models.AskRequest{Query: "x", Mode: "poetic"}},
		{"unconfigured mode", models.AskRequest{Query: "x", Mode: "augmented"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/ask", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleAsk_notReady(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "capital of France"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.StatusUnavailable || ans.Text != assistant.UnavailableMessage {
		t.Errorf("answer = %+v", ans)
	}
}

func TestHandleAsk_compositionFailure(t *testing.T) {
	augmented := assistant.WithComposer(compose.NewAugmented(failingCompleter{}))

	srv, _ := newTestServer(t, true, augmented)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "capital of France", Mode: "augmented"})
	if w.Code != http.StatusOK {
		t.Fatalf("fallback status: got %d", w.Code)
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.StatusDegraded || ans.Text != "Paris." || ans.Warning == "" {
		t.Errorf("degraded answer = %+v", ans)
	}

	srv, _ = newTestServer(t, true, augmented, assistant.WithFallback(false))
	w = do(t, srv.Handler(), http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "capital of France", Mode: "augmented"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("no-fallback status: got %d, want 502", w.Code)
	}
}

func TestHandleRetrieve(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/retrieve", map[string]interface{}{"query": "Who wrote Hamlet?", "limit": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out retrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Match.Matched || out.Match.Index != 1 || out.Match.Score < 0.999 {
		t.Errorf("match = %+v", out.Match)
	}
	if len(out.Candidates) != 2 || out.Candidates[0].Index != 1 {
		t.Errorf("candidates = %+v", out.Candidates)
	}

	w = do(t, h, http.MethodPost, "/api/v1/retrieve", map[string]string{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d", w.Code)
	}
}

func TestHandleReload(t *testing.T) {
	srv, path := newTestServer(t, true)
	h := srv.Handler()

	if err := os.WriteFile(path, []byte(`[]`), 0644); err != nil {
		t.Fatal(err)
	}
	w := do(t, h, http.MethodPost, "/api/v1/knowledge/reload", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty knowledge base reload: got %d", w.Code)
	}
	// Previous snapshot still answers.
	w = do(t, h, http.MethodPost, "/api/v1/ask", models.AskRequest{Query: "capital of France"})
	if w.Code != http.StatusOK {
		t.Errorf("ask after failed reload: got %d", w.Code)
	}

	if err := os.WriteFile(path, []byte(testKB), 0644); err != nil {
		t.Fatal(err)
	}
	w = do(t, h, http.MethodPost, "/api/v1/knowledge/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Records int `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Records != 2 {
		t.Errorf("records = %d", out.Records)
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st assistant.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Ready || st.Records != 2 || st.Model != "hashing-1024" || st.Mode != "direct" {
		t.Errorf("status = %+v", st)
	}

	w = do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, true)
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
