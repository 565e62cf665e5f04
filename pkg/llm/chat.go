package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("empty response from model")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string // openai or ollama
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
}

// ChatEngine invokes a language model on an assembled prompt.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
	log    *zap.Logger
}

// NewWithConfig creates a new ChatEngine backed by the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}

	model, err := newModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	log := logging.OrNop(config.Logger)
	return &ChatEngine{
		config: config,
		llm:    model,
		log:    log,
	}
}

func newModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}

func (ce *ChatEngine) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

// Generate runs a single blocking model call and returns the first choice.
func (ce *ChatEngine) Generate(ctx context.Context, messages []llms.ChatMessage) (string, error) {
	return ce.generate(ctx, messages, ce.callOptions())
}

// GenerateStream behaves like Generate and also hands every partial chunk to onChunk.
func (ce *ChatEngine) GenerateStream(ctx context.Context, messages []llms.ChatMessage, onChunk func(chunk string) error) (string, error) {
	opts := append(ce.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		return onChunk(string(chunk))
	}))
	return ce.generate(ctx, messages, opts)
}

func (ce *ChatEngine) generate(ctx context.Context, messages []llms.ChatMessage, opts []llms.CallOption) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(m.GetType(), m.GetContent()))
	}

	resp, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}

	ce.log.Debug("model answered",
		zap.Int("messages", len(messages)),
		zap.String("stop_reason", resp.Choices[0].StopReason),
	)
	return resp.Choices[0].Content, nil
}
