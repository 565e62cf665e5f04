package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrTemplateNotFound = errors.New("prompt template not found")
	ErrInvalidTemplate  = errors.New("invalid prompt template")
)

// RAGPromptName is the question-answering template served without a registry.
const RAGPromptName = "rlm/rag-prompt"

const ragPrompt = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.
Question: {{.question}} 
Context: {{.context}} 
Answer:`

// Spec is the registry document format.
type Spec struct {
	InputVariables []string      `yaml:"input_variables"`
	Messages       []MessageSpec `yaml:"messages"`
}

type MessageSpec struct {
	Role     string `yaml:"role"`
	Template string `yaml:"template"`
}

var builtin = map[string]Spec{
	RAGPromptName: {
		InputVariables: []string{"question", "context"},
		Messages:       []MessageSpec{{Role: "human", Template: ragPrompt}},
	},
}

// Template is an immutable chat prompt with named slots.
type Template struct {
	Name           string
	InputVariables []string
	chat           prompts.ChatPromptTemplate
}

type RegistryConfig struct {
	BaseURL string // empty serves built-in templates only
	Timeout time.Duration
	Logger  *zap.Logger
}

// Registry pulls named templates and caches them for the process lifetime.
type Registry struct {
	config RegistryConfig
	client *http.Client
	log    *zap.Logger

	mu    sync.Mutex
	cache map[string]*Template
}

func NewRegistry(config RegistryConfig) *Registry {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	log := logging.OrNop(config.Logger)
	return &Registry{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    log,
		cache:  make(map[string]*Template),
	}
}

// Pull returns the named template, fetching it on first use.
func (r *Registry) Pull(ctx context.Context, name string) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[name]; ok {
		return t, nil
	}

	spec, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	t, err := compile(name, spec)
	if err != nil {
		return nil, err
	}
	r.cache[name] = t
	r.log.Debug("prompt template pulled", zap.String("name", name), zap.Strings("inputs", t.InputVariables))
	return t, nil
}

func (r *Registry) fetch(ctx context.Context, name string) (Spec, error) {
	if r.config.BaseURL == "" {
		spec, ok := builtin[name]
		if !ok {
			return Spec{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return spec, nil
	}

	url := strings.TrimRight(r.config.BaseURL, "/") + "/" + strings.TrimLeft(name, "/") + ".yaml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to fetch template %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Spec{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return Spec{}, fmt.Errorf("received status code %d for template: %s", resp.StatusCode, name)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, name, err)
	}
	return spec, nil
}

func compile(name string, spec Spec) (*Template, error) {
	if len(spec.Messages) == 0 {
		return nil, fmt.Errorf("%w: %s has no messages", ErrInvalidTemplate, name)
	}

	formatters := make([]prompts.MessageFormatter, 0, len(spec.Messages))
	for _, m := range spec.Messages {
		switch strings.ToLower(m.Role) {
		case "system":
			formatters = append(formatters, prompts.NewSystemMessagePromptTemplate(m.Template, spec.InputVariables))
		case "human", "user":
			formatters = append(formatters, prompts.NewHumanMessagePromptTemplate(m.Template, spec.InputVariables))
		case "ai", "assistant":
			formatters = append(formatters, prompts.NewAIMessagePromptTemplate(m.Template, spec.InputVariables))
		default:
			return nil, fmt.Errorf("%w: %s has unknown role %q", ErrInvalidTemplate, name, m.Role)
		}
	}

	return &Template{
		Name:           name,
		InputVariables: spec.InputVariables,
		chat:           prompts.NewChatPromptTemplate(formatters),
	}, nil
}
