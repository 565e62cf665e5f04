// Package llmtest provides deterministic stand-ins for the model and
// embedding providers so pipelines can be exercised without network access.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// Model is a fake llms.Model. Respond computes the answer from the prompt text;
// when nil the model echoes Reply.
type Model struct {
	Reply   string
	Respond func(prompt string) (string, error)

	mu    sync.Mutex
	calls [][]llms.MessageContent
}

var _ llms.Model = (*Model)(nil)

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	answer := m.Reply
	if m.Respond != nil {
		var err error
		if answer, err = m.Respond(PromptText(messages)); err != nil {
			return nil, err
		}
	}

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(answer, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answer, StopReason: "stop"}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns every message list the model has received.
func (m *Model) Calls() [][]llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llms.MessageContent(nil), m.calls...)
}

// PromptText flattens the text parts of messages, one message per line.
func PromptText(messages []llms.MessageContent) string {
	var b strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				b.WriteString(t.Text)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Embedder hashes lower-cased words into a fixed number of buckets and
// normalizes the result, so texts sharing words have positive cosine similarity.
type Embedder struct {
	Dim int
	Err error

	mu      sync.Mutex
	queries int
	docs    int
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.docs += len(texts)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.queries++
	e.mu.Unlock()
	return e.vector(text), nil
}

// Counts reports how many documents and queries were embedded.
func (e *Embedder) Counts() (docs, queries int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs, e.queries
}

func (e *Embedder) vector(text string) []float32 {
	dim := e.Dim
	if dim == 0 {
		dim = 256
	}
	v := make([]float32, dim)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range fields {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// ErrModelDown is a canned provider failure for error-path tests.
var ErrModelDown = errors.New("model unavailable")
