package integration

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/test/e2e"
)

// countingEmbedder counts texts that reach the underlying model.
type countingEmbedder struct {
	embedding.Embedder
	texts atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.texts.Add(1)
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int64(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestIntegration_GenerateLoadRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "leads.csv")
	kbPath := filepath.Join(dir, "knowledge.json")
	dbPath := filepath.Join(dir, "kotae.db")

	leads := e2e.BuildCorpus()
	if err := e2e.WriteDataset(dataset, leads); err != nil {
		t.Fatal(err)
	}
	if _, err := generate.NewGenerator().Run(ctx, dataset, kbPath); err != nil {
		t.Fatal(err)
	}
	corpus, err := knowledge.NewFileLoader(kbPath).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := &countingEmbedder{Embedder: embedding.NewHashingEmbedder(0)}
	engine := retrieval.NewEngine(embedding.NewCachingEmbedder(first, 100, embedding.WithVectorStore(store)), 0.4)
	if err := engine.Build(ctx, corpus); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.texts.Load() == 0 {
		t.Fatal("first build embedded nothing")
	}

	cached, err := store.CountEmbeddings(ctx, first.ModelID())
	if err != nil {
		t.Fatal(err)
	}
	if cached == 0 || cached > int64(corpus.Len()) {
		t.Errorf("cached embeddings = %d, corpus = %d", cached, corpus.Len())
	}

	lead := leads[3]
	res, err := engine.Retrieve(ctx, "Which company does "+lead.Name+" work for?")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched || res.Record == nil {
		t.Fatalf("expected a match, got %+v", res)
	}
	if got := res.Record.Metadata["company"]; got != lead.Company {
		t.Errorf("matched company = %v, want %s", got, lead.Company)
	}

	// A fresh engine over the same store finds every corpus vector already persisted.
	second := &countingEmbedder{Embedder: embedding.NewHashingEmbedder(0)}
	rebuilt := retrieval.NewEngine(embedding.NewCachingEmbedder(second, 100, embedding.WithVectorStore(store)), 0.4)
	if err := rebuilt.Build(ctx, corpus); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if n := second.texts.Load(); n != 0 {
		t.Errorf("second build embedded %d texts, want 0", n)
	}
	if rebuilt.Snapshot().Index.Size() != corpus.Len() {
		t.Errorf("index size = %d, want %d", rebuilt.Snapshot().Index.Size(), corpus.Len())
	}
}
