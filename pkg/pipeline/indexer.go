package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/ragdemo/internal/types"
	"github.com/xhad/ragdemo/pkg/loader"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Characters int
	Chunks     int
	IDs        []string
}

// Indexer loads one page, splits it and adds the chunks to a vector store.
type Indexer struct {
	loader   types.Loader
	splitter types.Splitter
	store    vectorstores.VectorStore
	log      *zap.Logger
}

func NewIndexer(l types.Loader, s types.Splitter, store vectorstores.VectorStore, log *zap.Logger) *Indexer {
	return &Indexer{loader: l, splitter: s, store: store, log: logging.OrNop(log)}
}

// Index fails with loader.ErrShapeMismatch unless the page yields exactly one document.
func (ix *Indexer) Index(ctx context.Context, url string) (IndexStats, error) {
	docs, err := ix.loader.Load(ctx, url)
	if err != nil {
		return IndexStats{}, err
	}
	if err := loader.ExpectCount(url, docs, 1); err != nil {
		return IndexStats{}, err
	}

	stats := IndexStats{Characters: utf8.RuneCountInString(docs[0].PageContent)}

	chunks, err := ix.splitter.Split(docs)
	if err != nil {
		return stats, err
	}
	stats.Chunks = len(chunks)

	ids, err := ix.store.AddDocuments(ctx, chunks)
	if err != nil {
		return stats, fmt.Errorf("failed to store chunks: %w", err)
	}
	stats.IDs = ids

	ix.log.Info("page indexed",
		zap.String("url", url),
		zap.Int("characters", stats.Characters),
		zap.Int("chunks", stats.Chunks),
	)
	return stats, nil
}
