package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/ragdemo/pkg/llm"
	"github.com/xhad/ragdemo/pkg/llm/llmtest"
)

func messages() []llms.ChatMessage {
	return []llms.ChatMessage{
		llms.SystemChatMessage{Content: "You are an assistant."},
		llms.HumanChatMessage{Content: "What ingredients are needed?"},
	}
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.ChatConfig
		wantErr bool
	}{
		{"openai", llm.ChatConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}, false},
		{"ollama", llm.ChatConfig{Provider: "ollama", BaseURL: "http://localhost:1234"}, false},
		{"bad temperature", llm.ChatConfig{APIKey: "sk-test", Temperature: 3}, true},
		{"negative tokens", llm.ChatConfig{APIKey: "sk-test", MaxTokens: -1}, true},
		{"unknown provider", llm.ChatConfig{Provider: "mystery"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewWithConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, engine)
		})
	}
}

func TestGenerate(t *testing.T) {
	model := &llmtest.Model{Reply: "Eggs, cheese, pasta and pepper."}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	answer, err := engine.Generate(context.Background(), messages())
	require.NoError(t, err)
	assert.Equal(t, "Eggs, cheese, pasta and pepper.", answer)

	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, calls[0][0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, calls[0][1].Role)
	assert.Contains(t, llmtest.PromptText(calls[0]), "What ingredients are needed?")
}

func TestGenerateError(t *testing.T) {
	model := &llmtest.Model{Respond: func(string) (string, error) { return "", llmtest.ErrModelDown }}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	_, err := engine.Generate(context.Background(), messages())
	require.Error(t, err)
	assert.True(t, errors.Is(err, llmtest.ErrModelDown))
}

func TestGenerateStream(t *testing.T) {
	model := &llmtest.Model{Reply: "use the pasta water"}
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	var chunks []string
	answer, err := engine.GenerateStream(context.Background(), messages(), func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "use the pasta water", answer)
	assert.Len(t, chunks, 4)
	assert.Equal(t, answer, strings.Join(chunks, ""))
}

// silentModel answers every call with a response that has no choices.
type silentModel struct{ resp *llms.ContentResponse }

func (m silentModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return m.resp, nil
}

func (m silentModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *llms.ContentResponse
	}{
		{"nil response", nil},
		{"no choices", &llms.ContentResponse{}},
		{"nil choice", &llms.ContentResponse{Choices: []*llms.ContentChoice{nil}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := llm.NewWithModel(llm.ChatConfig{}, silentModel{resp: tt.resp})

			_, err := engine.Generate(context.Background(), messages())
			assert.ErrorIs(t, err, llm.ErrEmptyResponse)

			_, err = engine.GenerateStream(context.Background(), messages(), func(string) error { return nil })
			assert.ErrorIs(t, err, llm.ErrEmptyResponse)
		})
	}
}
