package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig selects the embedding provider and model.
type EmbedderConfig struct {
	Provider  string // openai or ollama
	Model     string
	APIKey    string
	BaseURL   string
	BatchSize int
}

// NewEmbedder builds the embedding provider used by the vector store.
func NewEmbedder(config EmbedderConfig) (embeddings.Embedder, error) {
	if config.BatchSize == 0 {
		config.BatchSize = 512
	}

	var client embeddings.EmbedderClient
	switch config.Provider {
	case "", "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-large"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		c, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		client = c
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		c, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}
