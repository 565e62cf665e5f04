package main

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/vectorstores"
	cfgPkg "github.com/xhad/ragdemo/pkg/config"
	"github.com/xhad/ragdemo/pkg/llm"
	"github.com/xhad/ragdemo/pkg/loader"
	"github.com/xhad/ragdemo/pkg/pipeline"
	"github.com/xhad/ragdemo/pkg/processor"
	"github.com/xhad/ragdemo/pkg/prompt"
	"github.com/xhad/ragdemo/pkg/store"
	"go.uber.org/zap"
)

// app holds the explicitly constructed service handles of one process.
type app struct {
	indexer    *pipeline.Indexer
	controller *pipeline.Controller
	close      func()
}

func newApp(ctx context.Context, cfg *cfgPkg.Config, log *zap.Logger) (*app, error) {
	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.EmbeddingModel,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		BatchSize: cfg.Store.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	var (
		vectorStore vectorstores.VectorStore
		closeStore  = func() {}
	)
	switch cfg.Store.Backend {
	case "pgvector":
		pg, err := store.NewPGVector(ctx, store.PGVectorConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
			BatchSize:  cfg.Store.BatchSize,
			Embedder:   embedder,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		vectorStore, closeStore = pg, pg.Close
	default:
		vectorStore = store.NewMemory(embedder, log)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      log,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	ld := loader.NewWithConfig(loader.LoaderConfig{
		Selector:  cfg.Loader.Selector,
		Merge:     cfg.MergeEnabled(),
		RateLimit: cfg.Loader.RateLimit,
		Timeout:   cfg.Loader.Timeout,
		Logger:    log,
	})

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Overlap(),
	})

	registry := prompt.NewRegistry(prompt.RegistryConfig{
		BaseURL: cfg.Prompt.RegistryURL,
		Logger:  log,
	})

	controller, err := pipeline.NewController(
		vectorstores.ToRetriever(vectorStore, cfg.Store.TopK),
		prompt.NewAssembler(registry, cfg.Prompt.Name),
		chatEngine,
		pipeline.WithLogger(log),
	)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &app{
		indexer:    pipeline.NewIndexer(ld, &proc, vectorStore, log),
		controller: controller,
		close:      closeStore,
	}, nil
}
