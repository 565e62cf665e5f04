package types

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/ragdemo/internal/models"
)

// Core interfaces
type Loader interface {
	Load(ctx context.Context, url string) ([]models.Document, error)
}

type Splitter interface {
	Split(docs []models.Document) ([]models.Document, error)
}

type Assembler interface {
	Assemble(ctx context.Context, question, contextText string) ([]llms.ChatMessage, error)
}

type Generator interface {
	Generate(ctx context.Context, messages []llms.ChatMessage) (string, error)
}

// StreamGenerator is implemented by generators that can emit partial output.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, messages []llms.ChatMessage, onChunk func(chunk string) error) (string, error)
}
