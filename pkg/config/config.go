package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL      = "https://www.recipetineats.com/carbonara/#h-ingredients-in-carbonara-sauce"
	DefaultQuestion = "How to obtain a creamy sauce while making a carbonara?"

	defaultChunkOverlap = 200
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"`
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"-"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Loader struct {
		URL       string        `yaml:"url"`
		Selector  string        `yaml:"selector"`
		Merge     *bool         `yaml:"merge"`
		RateLimit float64       `yaml:"rate_limit"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"loader"`

	Processor struct {
		ChunkSize    int  `yaml:"chunk_size"`
		ChunkOverlap *int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Store struct {
		Backend   string `yaml:"backend"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
		TopK      int    `yaml:"top_k"`
	} `yaml:"store"`

	Prompt struct {
		Name        string `yaml:"name"`
		RegistryURL string `yaml:"registry_url"`
	} `yaml:"prompt"`

	Server struct {
		Addr      string `yaml:"addr"`
		Streaming bool   `yaml:"streaming"`
	} `yaml:"server"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// MergeEnabled reports whether the loader concatenates all matches into one document.
func (c *Config) MergeEnabled() bool {
	return c.Loader.Merge == nil || *c.Loader.Merge
}

// Overlap returns the configured chunk overlap. An unset overlap is 200;
// an explicit 0 disables overlap.
func (c *Config) Overlap() int {
	if c.Processor.ChunkOverlap == nil {
		return defaultChunkOverlap
	}
	return *c.Processor.ChunkOverlap
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragdemo/config.yaml"),
			"/etc/ragdemo/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	Finalize(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	Finalize(config)
	return config
}

// Finalize merges the environment and fills unset values. It is safe to call
// again after overriding fields.
func Finalize(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	mergeWithEnv(config)
	applyDefaults(config)
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.Model = "mistral"
		} else {
			config.LLM.Model = "gpt-4o-mini"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		} else {
			config.LLM.EmbeddingModel = "text-embedding-3-large"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}

	if config.Loader.URL == "" {
		config.Loader.URL = DefaultURL
	}
	if config.Loader.Selector == "" {
		config.Loader.Selector = "p"
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}
	if config.Loader.Timeout == 0 {
		config.Loader.Timeout = 30 * time.Second
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == nil {
		overlap := defaultChunkOverlap
		config.Processor.ChunkOverlap = &overlap
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "memory"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "documents"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 3072
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 100
	}
	if config.Store.TopK == 0 {
		config.Store.TopK = 4
	}

	if config.Prompt.Name == "" {
		config.Prompt.Name = "rlm/rag-prompt"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Env == "" {
		config.Log.Env = "dev"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if registry := os.Getenv("PROMPT_REGISTRY_URL"); registry != "" {
		config.Prompt.RegistryURL = registry
	}
}
