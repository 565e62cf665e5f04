package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// ErrMissingSlot is returned when a template variable has no value.
var ErrMissingSlot = errors.New("missing prompt slot")

// Format substitutes values into the template. Every declared input
// variable must be present.
func (t *Template) Format(values map[string]any) ([]llms.ChatMessage, error) {
	for _, v := range t.InputVariables {
		if _, ok := values[v]; !ok {
			return nil, fmt.Errorf("%w: %q in template %s", ErrMissingSlot, v, t.Name)
		}
	}

	messages, err := t.chat.FormatMessages(values)
	if err != nil {
		return nil, fmt.Errorf("failed to format template %s: %w", t.Name, err)
	}
	return messages, nil
}

// Assembler fills the question/context template of a registry.
type Assembler struct {
	registry *Registry
	name     string
}

func NewAssembler(registry *Registry, name string) *Assembler {
	if name == "" {
		name = RAGPromptName
	}
	return &Assembler{registry: registry, name: name}
}

// Assemble pulls the template (cached after the first call) and fills it.
func (a *Assembler) Assemble(ctx context.Context, question, contextText string) ([]llms.ChatMessage, error) {
	t, err := a.registry.Pull(ctx, a.name)
	if err != nil {
		return nil, err
	}
	return t.Format(map[string]any{
		"question": question,
		"context":  contextText,
	})
}
