package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

// DefaultK is the number of results returned when the caller asks for none.
const DefaultK = 4

var (
	ErrEmptyIndex  = errors.New("vector store is empty")
	ErrNoEmbedder  = errors.New("vector store has no embedder")
	ErrDimMismatch = errors.New("embedding dimension mismatch")
	ErrVectorCount = errors.New("embedder returned wrong number of vectors")
)

// embedTexts embeds texts and checks that one vector came back per text.
func embedTexts(ctx context.Context, e embeddings.Embedder, texts []string) ([][]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d documents", ErrVectorCount, len(vectors), len(texts))
	}
	return vectors, nil
}

type entry struct {
	id        string
	embedding []float32
	doc       models.Document
}

// MemoryStore keeps (embedding, chunk) pairs in process memory and answers
// queries by exhaustive cosine similarity. Entries are never deduplicated or evicted.
type MemoryStore struct {
	embedder embeddings.Embedder
	log      *zap.Logger

	mu      sync.RWMutex
	entries []entry
}

var _ vectorstores.VectorStore = (*MemoryStore)(nil)

func NewMemory(embedder embeddings.Embedder, log *zap.Logger) *MemoryStore {
	return &MemoryStore{embedder: embedder, log: logging.OrNop(log)}
}

// AddDocuments embeds every chunk and appends it to the index.
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []models.Document, options ...vectorstores.Option) ([]string, error) {
	opts := s.options(options)
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}

	vectors, err := embedTexts(ctx, opts.Embedder, texts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := len(vectors[0])
	if len(s.entries) > 0 {
		dim = len(s.entries[0].embedding)
	}
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(v), dim)
		}
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = uuid.NewString()
		s.entries = append(s.entries, entry{id: ids[i], embedding: vectors[i], doc: d})
	}

	s.log.Debug("documents added", zap.Int("count", len(docs)), zap.Int("size", len(s.entries)))
	return ids, nil
}

// SimilaritySearch returns up to numDocuments chunks ordered by decreasing
// cosine similarity to query. Ties keep insertion order.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]models.Document, error) {
	opts := s.options(options)
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if numDocuments <= 0 {
		numDocuments = DefaultK
	}

	s.mu.RLock()
	empty := len(s.entries) == 0
	s.mu.RUnlock()
	if empty {
		return nil, ErrEmptyIndex
	}

	q, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		doc   models.Document
		score float32
	}
	hits := make([]hit, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.embedding) != len(q) {
			return nil, fmt.Errorf("%w: query has %d, index holds %d", ErrDimMismatch, len(q), len(e.embedding))
		}
		score := cosine(q, e.embedding)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{doc: e.doc, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}

	docs := make([]models.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
		docs[i].Score = h.score
	}
	return docs, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) options(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{Embedder: s.embedder}
	for _, o := range options {
		o(&opts)
	}
	return opts
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
