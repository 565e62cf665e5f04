package processor

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/ragdemo/internal/models"
)

// Metadata key holding a chunk's position within its source document.
const MetaChunkIndex = "chunk_index"

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// Separators are tried in order, coarsest first. Defaults to
	// paragraph, line, word, character.
	Separators []string
}

type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	// Overlap defaults only alongside the size, so an explicit
	// ChunkSize with ChunkOverlap 0 splits without overlap.
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 200
		}
	}
	if len(config.Separators) == 0 {
		config.Separators = []string{"\n\n", "\n", " ", ""}
	}

	return Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithSeparators(config.Separators),
		),
	}
}

// Split breaks every document into overlapping chunks. Each chunk gets its
// own copy of the source metadata plus its index within the source.
func (p *Processor) Split(docs []models.Document) ([]models.Document, error) {
	var chunks []models.Document

	for _, doc := range docs {
		texts, err := p.splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("failed to split document: %w", err)
		}

		for i, text := range texts {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta[MetaChunkIndex] = i

			chunks = append(chunks, models.Document{
				PageContent: text,
				Metadata:    meta,
			})
		}
	}

	return chunks, nil
}
