package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/internal/types"
	"go.uber.org/zap"
)

// ErrMissingContext is returned when generation is reached before retrieval.
var ErrMissingContext = errors.New("generate called without retrieved context")

type Option func(*Controller)

// WithObserver registers a callback invoked with each stage before it runs.
func WithObserver(fn func(Stage)) Option {
	return func(c *Controller) { c.observe = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// Controller answers questions by running retrieve then generate.
type Controller struct {
	retriever schema.Retriever
	assembler types.Assembler
	generator types.Generator
	observe   func(Stage)
	log       *zap.Logger
}

func NewController(retriever schema.Retriever, assembler types.Assembler, generator types.Generator, opts ...Option) (*Controller, error) {
	if retriever == nil || assembler == nil || generator == nil {
		return nil, fmt.Errorf("retriever, assembler and generator are required")
	}
	c := &Controller{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.graph(nil, nil).Compile(); err != nil {
		return nil, err
	}
	return c, nil
}

// Invoke runs the pipeline for question and returns the final state.
func (c *Controller) Invoke(ctx context.Context, question string) (models.State, error) {
	return c.run(ctx, question, nil, nil)
}

// InvokeStream is Invoke with the retrieved context handed to onContext before
// generation starts and partial answer chunks delivered to onChunk.
// Either callback may be nil. Generators that cannot stream deliver the whole
// answer as one chunk.
func (c *Controller) InvokeStream(ctx context.Context, question string, onContext func([]models.Document) error, onChunk func(string) error) (models.State, error) {
	return c.run(ctx, question, onContext, onChunk)
}

func (c *Controller) run(ctx context.Context, question string, onContext func([]models.Document) error, onChunk func(string) error) (models.State, error) {
	state := models.State{Question: question}
	if err := c.graph(onContext, onChunk).Run(ctx, &state, c.observe); err != nil {
		return state, err
	}
	c.log.Info("question answered",
		zap.Int("context_chunks", len(state.Context)),
		zap.Int("answer_chars", len(state.Answer)),
	)
	return state, nil
}

func (c *Controller) graph(onContext func([]models.Document) error, onChunk func(string) error) *Graph {
	return NewGraph().
		AddNode(StageRetrieve, func(ctx context.Context, state *models.State) error {
			if err := c.retrieve(ctx, state); err != nil {
				return err
			}
			if onContext != nil {
				return onContext(state.Context)
			}
			return nil
		}).
		AddNode(StageGenerate, func(ctx context.Context, state *models.State) error {
			return c.generate(ctx, state, onChunk)
		}).
		AddEdge(StageStart, StageRetrieve).
		AddEdge(StageRetrieve, StageGenerate).
		AddEdge(StageGenerate, StageEnd)
}

func (c *Controller) retrieve(ctx context.Context, state *models.State) error {
	docs, err := c.retriever.GetRelevantDocuments(ctx, state.Question)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	state.Context = docs
	c.log.Debug("context retrieved", zap.Int("chunks", len(docs)))
	return nil
}

func (c *Controller) generate(ctx context.Context, state *models.State, onChunk func(string) error) error {
	if state.Context == nil {
		return ErrMissingContext
	}

	messages, err := c.assembler.Assemble(ctx, state.Question, state.ContextText())
	if err != nil {
		return err
	}

	var answer string
	sg, canStream := c.generator.(types.StreamGenerator)
	switch {
	case onChunk != nil && canStream:
		answer, err = sg.GenerateStream(ctx, messages, onChunk)
	case onChunk != nil:
		if answer, err = c.generator.Generate(ctx, messages); err == nil {
			err = onChunk(answer)
		}
	default:
		answer, err = c.generator.Generate(ctx, messages)
	}
	if err != nil {
		return err
	}

	state.Answer = answer
	return nil
}
