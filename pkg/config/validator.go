package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OPENAI_API_KEY is required for the openai provider",
			})
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 16384 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 16384",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Loader config
	if u, err := url.Parse(c.Loader.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "loader.url",
			Message: "invalid document URL",
		})
	}

	if c.Loader.Selector == "" {
		errors = append(errors, ValidationError{
			Field:   "loader.selector",
			Message: "selector is required",
		})
	}

	if c.Loader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "loader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if overlap := c.Overlap(); overlap < 0 || overlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Store config
	switch c.Store.Backend {
	case "memory":
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "database URL is required for the pgvector backend",
			})
		}
		if c.Store.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Store.Backend),
		})
	}

	if c.Store.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Prompt.RegistryURL != "" {
		if _, err := url.Parse(c.Prompt.RegistryURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "prompt.registry_url",
				Message: "invalid registry URL",
			})
		}
	}

	return errors
}
