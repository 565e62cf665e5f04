package prompt_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/ragdemo/pkg/prompt"
)

const qaTemplate = `
input_variables: [question, context]
messages:
  - role: system
    template: "Answer only from the context."
  - role: human
    template: "Context: {{.context}}\nQuestion: {{.question}}"
`

func registryServer(t *testing.T, docs map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestAssembler_Builtin(t *testing.T) {
	a := prompt.NewAssembler(prompt.NewRegistry(prompt.RegistryConfig{}), "")

	messages, err := a.Assemble(context.Background(), "What ingredients are needed?", "Carbonara needs eggs, cheese, pasta, and pepper.")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[0].GetType())
	assert.Contains(t, messages[0].GetContent(), "Question: What ingredients are needed?")
	assert.Contains(t, messages[0].GetContent(), "Context: Carbonara needs eggs, cheese, pasta, and pepper.")
	assert.Contains(t, messages[0].GetContent(), "three sentences maximum")
}

func TestRegistry_PullIsCached(t *testing.T) {
	server, hits := registryServer(t, map[string]string{"/acme/qa.yaml": qaTemplate})
	r := prompt.NewRegistry(prompt.RegistryConfig{BaseURL: server.URL + "/"})

	first, err := r.Pull(context.Background(), "acme/qa")
	require.NoError(t, err)
	second, err := r.Pull(context.Background(), "acme/qa")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
	assert.Equal(t, []string{"question", "context"}, first.InputVariables)

	messages, err := first.Format(map[string]any{"question": "q?", "context": "c."})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].GetType())
	assert.Equal(t, "Context: c.\nQuestion: q?", messages[1].GetContent())
}

func TestRegistry_Errors(t *testing.T) {
	server, _ := registryServer(t, map[string]string{
		"/acme/badrole.yaml": "input_variables: [question]\nmessages:\n  - role: narrator\n    template: hi\n",
		"/acme/empty.yaml":   "input_variables: [question]\n",
		"/acme/broken.yaml":  "messages: [",
	})

	tests := []struct {
		name    string
		base    string
		prompt  string
		wantErr error
	}{
		{"remote missing", server.URL, "acme/none", prompt.ErrTemplateNotFound},
		{"builtin missing", "", "acme/none", prompt.ErrTemplateNotFound},
		{"unknown role", server.URL, "acme/badrole", prompt.ErrInvalidTemplate},
		{"no messages", server.URL, "acme/empty", prompt.ErrInvalidTemplate},
		{"bad yaml", server.URL, "acme/broken", prompt.ErrInvalidTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := prompt.NewRegistry(prompt.RegistryConfig{BaseURL: tt.base})
			_, err := r.Pull(context.Background(), tt.prompt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestAssembler_MissingSlot(t *testing.T) {
	server, _ := registryServer(t, map[string]string{
		"/acme/translated.yaml": `
input_variables: [question, context, language]
messages:
  - role: human
    template: "Answer in {{.language}}: {{.question}} using {{.context}}"
`,
	})
	a := prompt.NewAssembler(prompt.NewRegistry(prompt.RegistryConfig{BaseURL: server.URL}), "acme/translated")

	_, err := a.Assemble(context.Background(), "q", "c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompt.ErrMissingSlot))
	assert.Contains(t, err.Error(), `"language"`)
}
