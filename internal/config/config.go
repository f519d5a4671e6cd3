package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig holds connection details for one model endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

// RAGConfig controls chunking and retrieval behaviour. MMRLambda is a
// pointer so an explicit 0 (pure diversity) is distinguishable from unset.
type RAGConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	TopK          int      `yaml:"top_k"`
	FetchK        int      `yaml:"fetch_k"`
	MMRLambda     *float32 `yaml:"mmr_lambda"`
	SearchMode    string   `yaml:"search_mode"`
	EncryptionKey string   `yaml:"encryption_key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	ChatLLM  LLMConfig    `yaml:"chat_llm"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	RAG      RAGConfig    `yaml:"rag"`
}

const (
	// Window and overlap are measured in tokens, not characters.
	DefaultChunkSize    = 900
	DefaultChunkOverlap = 100

	DefaultTopK      = 4
	DefaultFetchK    = 20
	DefaultMMRLambda = 0.5

	SearchModeSimilarity = "similarity"
	SearchModeMMR        = "mmr"
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.ChatLLM.BaseURL == "" {
		cfg.ChatLLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ChatLLM.Model == "" {
		cfg.ChatLLM.Model = "gpt-3.5-turbo"
	}
	if cfg.ChatLLM.Key == "" {
		cfg.ChatLLM.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap <= 0 {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.FetchK <= 0 {
		cfg.RAG.FetchK = DefaultFetchK
	}
	if cfg.RAG.MMRLambda == nil {
		lambda := float32(DefaultMMRLambda)
		cfg.RAG.MMRLambda = &lambda
	}
	if cfg.RAG.SearchMode == "" {
		cfg.RAG.SearchMode = SearchModeMMR
	}
}
