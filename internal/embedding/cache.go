package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present and marks it recently used.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.cache, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// VectorStore persists embeddings across restarts, keyed by model ID and text hash.
type VectorStore interface {
	GetEmbeddings(ctx context.Context, modelID string, textHashes []string) (map[string][]float32, error)
	PutEmbeddings(ctx context.Context, modelID string, vectors map[string][]float32) error
}

// TextHash returns the hex sha256 of text, the key used by VectorStore.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CachingEmbedder fronts an Embedder with an in-memory LRU and an optional VectorStore.
// Only texts missing from both are sent to the underlying model.
type CachingEmbedder struct {
	inner  Embedder
	cache  *EmbeddingCache
	store  VectorStore
	logger *zap.Logger
}

// CacheOption configures a CachingEmbedder.
type CacheOption func(*CachingEmbedder)

// WithVectorStore persists embeddings in store.
func WithVectorStore(store VectorStore) CacheOption {
	return func(c *CachingEmbedder) {
		c.store = store
	}
}

// WithCacheLogger sets the logger used for store failures.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachingEmbedder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachingEmbedder wraps inner with an LRU of cacheSize entries.
func NewCachingEmbedder(inner Embedder, cacheSize int, opts ...CacheOption) *CachingEmbedder {
	c := &CachingEmbedder{
		inner:  inner,
		cache:  NewEmbeddingCache(cacheSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns the embedding for text, using cache when available.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch resolves texts from the LRU, then the store, then the model, in that order.
// Store errors are logged and treated as misses.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missing[text] = append(missing[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	modelID := c.inner.ModelID()
	if c.store != nil {
		hashes := make([]string, 0, len(missing))
		byHash := make(map[string]string, len(missing))
		for text := range missing {
			h := TextHash(text)
			hashes = append(hashes, h)
			byHash[h] = text
		}
		found, err := c.store.GetEmbeddings(ctx, modelID, hashes)
		if err != nil {
			c.logger.Warn("embedding store lookup failed", zap.Error(err))
		}
		for h, vec := range found {
			text := byHash[h]
			if len(vec) != c.inner.Dimensions() {
				continue
			}
			c.fill(out, missing[text], text, vec)
			delete(missing, text)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, 0, len(missing))
	for i, text := range texts {
		if idx, ok := missing[text]; ok && idx[0] == i {
			pending = append(pending, text)
		}
	}
	vecs, err := c.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(pending) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(pending))
	}
	toStore := make(map[string][]float32, len(pending))
	for i, text := range pending {
		c.fill(out, missing[text], text, vecs[i])
		toStore[TextHash(text)] = vecs[i]
	}
	if c.store != nil {
		if err := c.store.PutEmbeddings(ctx, modelID, toStore); err != nil {
			c.logger.Warn("embedding store write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (c *CachingEmbedder) fill(out [][]float32, positions []int, text string, vec []float32) {
	for _, i := range positions {
		out[i] = vec
	}
	c.cache.Set(text, vec)
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachingEmbedder) ModelID() string {
	return c.inner.ModelID()
}

// Close closes the wrapped embedder.
func (c *CachingEmbedder) Close() error {
	return c.inner.Close()
}
