package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"who works at acme", "-mode", "augmented"},
			expected: []string{"-mode", "augmented", "who works at acme"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "who works at acme"},
			expected: []string{"-output", "json", "who works at acme"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"who works at acme"},
			expected: []string{"who works at acme"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"industry", "of", "acme", "-output", "compact"},
			expected: []string{"-output", "compact", "industry", "of", "acme"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"acme"}, "acme"},
		{"multiple words", []string{"industry", "of", "acme"}, "industry of acme"},
		{"single quoted phrase", []string{"industry of acme"}, "industry of acme"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func writeTestConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
knowledge:
  path: "./kb.json"
  watch: false
embedding:
  backend: hashing
  dimensions: 1024
retrieval:
  threshold: 0.4
` + extra
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "debug: true\n")
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "server:\n  host: \"127.0.0.1\"\n  port: 9000\n")

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Knowledge.Path != filepath.Join(dir, "kb.json") {
		t.Errorf("knowledge path = %s", cfg.Knowledge.Path)
	}
}

func TestInitializeComponents_generateThenAsk(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "leads.csv")
	csv := "Name,Company,Conversion Probability,Job title,Industry,Region\n" +
		"Jane Doe,Acme,0.82,CTO,Software,Europe\n" +
		"John Roe,Globex,0.31,Buyer,Retail,Asia\n"
	if err := os.WriteFile(dataset, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := writeTestConfig(t, dir, "storage:\n  database_path: \"./kotae.db\"\n")
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Knowledge.DatasetPath = dataset

	ctx := context.Background()
	logger := zap.NewNop()
	if err := bootstrapKnowledge(ctx, cfg, logger); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Knowledge.Path); err != nil {
		t.Fatalf("knowledge base not generated: %v", err)
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	n, err := components.Service.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected records after reload")
	}

	ans, err := components.Service.Ask(ctx, models.AskRequest{Query: "Which company does Jane Doe work for?"})
	if err != nil {
		t.Fatal(err)
	}
	want := "Jane Doe is currently working at Acme. Use this knowledge to build a targeted and relevant outreach strategy."
	if ans.Status != models.StatusAnswered || ans.Text != want {
		t.Errorf("answer = %+v", ans)
	}

	st := components.Service.Status(ctx)
	if !st.Ready || st.Records != n {
		t.Errorf("status = %+v", st)
	}
	if st.Queries == nil || st.Queries.Total != 1 {
		t.Errorf("query log not recorded: %+v", st.Queries)
	}
}

func TestBootstrapKnowledge_skipsExistingKnowledgeBase(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := loadConfig(writeTestConfig(t, dir, ""))
	if err != nil {
		t.Fatal(err)
	}
	existing := `[{"question": "q", "answer": "a"}]`
	if err := os.WriteFile(cfg.Knowledge.Path, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Knowledge.DatasetPath = filepath.Join(dir, "missing.csv")
	if err := bootstrapKnowledge(context.Background(), cfg, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(cfg.Knowledge.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != existing {
		t.Errorf("existing knowledge base was overwritten: %s", got)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Retrieval.ThresholdOrDefault() != config.DefaultThreshold {
		t.Errorf("unexpected defaults: server=%+v retrieval=%+v", cfg.Server, cfg.Retrieval)
	}

	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}

func TestDescribeLoadError(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "kb.json")
	_, err := knowledge.NewFileLoader(missing).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing knowledge base")
	}

	msg := describeLoadError(err, "leads.csv")
	want := "kotae generate --dataset leads.csv --out " + missing
	if !strings.Contains(msg, want) {
		t.Errorf("message %q does not contain %q", msg, want)
	}
	if msg := describeLoadError(err, ""); !strings.Contains(msg, "--dataset <leads.csv|leads.xlsx>") {
		t.Errorf("message without dataset: %q", msg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = knowledge.NewFileLoader(bad).Load(context.Background())
	if msg := describeLoadError(err, ""); !strings.HasPrefix(msg, "Knowledge base is invalid") {
		t.Errorf("malformed message: %q", msg)
	}
}
