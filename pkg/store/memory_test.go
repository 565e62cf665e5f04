package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/llm/llmtest"
	"github.com/xhad/ragdemo/pkg/store"
)

func recipeChunks() []models.Document {
	return []models.Document{
		{PageContent: "Carbonara needs eggs, cheese, pasta, and pepper.", Metadata: map[string]any{"n": 0}},
		{PageContent: "Toss the pasta off the heat so the eggs turn into a creamy sauce.", Metadata: map[string]any{"n": 1}},
		{PageContent: "Guanciale is cured pork cheek.", Metadata: map[string]any{"n": 2}},
		{PageContent: "Serve immediately with extra cheese.", Metadata: map[string]any{"n": 3}},
		{PageContent: "The weather in Rome is mild in spring.", Metadata: map[string]any{"n": 4}},
		{PageContent: "Pepper should be freshly cracked.", Metadata: map[string]any{"n": 5}},
	}
}

func TestMemoryStore_EmptyIndex(t *testing.T) {
	s := store.NewMemory(&llmtest.Embedder{}, nil)

	_, err := s.SimilaritySearch(context.Background(), "eggs", 4)
	assert.True(t, errors.Is(err, store.ErrEmptyIndex))
}

func TestMemoryStore_NoEmbedder(t *testing.T) {
	s := store.NewMemory(nil, nil)

	_, err := s.AddDocuments(context.Background(), recipeChunks())
	assert.True(t, errors.Is(err, store.ErrNoEmbedder))
}

func TestMemoryStore_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(&llmtest.Embedder{}, nil)

	ids, err := s.AddDocuments(ctx, recipeChunks())
	require.NoError(t, err)
	assert.Len(t, ids, 6)
	assert.Equal(t, 6, s.Len())

	tests := []struct {
		name  string
		query string
		k     int
		want  int
		top   string
	}{
		{"top one", "which cheese and eggs for carbonara", 1, 1, "Carbonara needs eggs, cheese, pasta, and pepper."},
		{"default k", "creamy sauce", 0, store.DefaultK, "Toss the pasta off the heat so the eggs turn into a creamy sauce."},
		{"k beyond size", "rome weather", 10, 6, "The weather in Rome is mild in spring."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.SimilaritySearch(ctx, tt.query, tt.k)
			require.NoError(t, err)
			require.Len(t, docs, tt.want)
			assert.Equal(t, tt.top, docs[0].PageContent)
			for i := 1; i < len(docs); i++ {
				assert.GreaterOrEqual(t, docs[i-1].Score, docs[i].Score)
			}
		})
	}
}

func TestMemoryStore_DuplicatesAccumulate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(&llmtest.Embedder{}, nil)
	chunks := recipeChunks()[:1]

	_, err := s.AddDocuments(ctx, chunks)
	require.NoError(t, err)
	_, err = s.AddDocuments(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	docs, err := s.SimilaritySearch(ctx, "eggs", 4)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0].PageContent, docs[1].PageContent)
}

func TestMemoryStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(&llmtest.Embedder{}, nil)

	_, err := s.AddDocuments(ctx, []models.Document{
		{PageContent: "same text", Metadata: map[string]any{"n": "first"}},
		{PageContent: "same text", Metadata: map[string]any{"n": "second"}},
	})
	require.NoError(t, err)

	docs, err := s.SimilaritySearch(ctx, "same text", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Metadata["n"])
	assert.Equal(t, "second", docs[1].Metadata["n"])
}

func TestMemoryStore_ScoreThreshold(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(&llmtest.Embedder{}, nil)
	_, err := s.AddDocuments(ctx, recipeChunks())
	require.NoError(t, err)

	docs, err := s.SimilaritySearch(ctx, "guanciale pork cheek", 4, vectorstores.WithScoreThreshold(0.5))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Guanciale is cured pork cheek.", docs[0].PageContent)
}

func TestMemoryStore_EmbedderErrors(t *testing.T) {
	ctx := context.Background()
	failing := &llmtest.Embedder{Err: llmtest.ErrModelDown}
	s := store.NewMemory(failing, nil)

	_, err := s.AddDocuments(ctx, recipeChunks())
	assert.True(t, errors.Is(err, llmtest.ErrModelDown))
	assert.Equal(t, 0, s.Len())

	// The store embedder can be swapped per call.
	_, err = s.AddDocuments(ctx, recipeChunks(), vectorstores.WithEmbedder(&llmtest.Embedder{}))
	require.NoError(t, err)

	_, err = s.SimilaritySearch(ctx, "eggs", 1)
	assert.True(t, errors.Is(err, llmtest.ErrModelDown))
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(&llmtest.Embedder{Dim: 8}, nil)
	_, err := s.AddDocuments(ctx, recipeChunks())
	require.NoError(t, err)

	_, err = s.AddDocuments(ctx, recipeChunks(), vectorstores.WithEmbedder(&llmtest.Embedder{Dim: 16}))
	assert.True(t, errors.Is(err, store.ErrDimMismatch))
	assert.Equal(t, 6, s.Len())
}
