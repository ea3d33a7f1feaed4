package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listen settings.
type ServerConfig struct {
	Address string `yaml:"address"` // Listen address, e.g. ":8000"
}

// StorageConfig holds the on-disk data locations.
type StorageConfig struct {
	DataDir    string `yaml:"dataDir"`    // Base data directory
	UploadsDir string `yaml:"uploadsDir"` // Subdirectory for saved uploads
}

// ChunkingConfig configures how extracted text is split into chunks.
// ChunkOverlap is a pointer because an explicit 0 (no overlap) is a valid
// setting distinct from "not configured".
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunkSize"`    // Maximum chunk length in runes
	ChunkOverlap *int `yaml:"chunkOverlap"` // Overlap between consecutive chunks
}

// EmbeddingConfig configures the Ollama embedding model.
type EmbeddingConfig struct {
	BaseURL string `yaml:"baseURL"` // Ollama base URL
	Model   string `yaml:"model"`   // Embedding model name
	Dim     int    `yaml:"dim"`     // Embedding vector dimension
}

// MilvusConfig configures the vector index backend.
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus service address
	Collection string `yaml:"collection"` // Collection name
}

// OllamaLLMConfig configures the Ollama generation backend. Temperature is
// a pointer because an explicit 0 (greedy decoding) is a valid setting.
type OllamaLLMConfig struct {
	BaseURL     string   `yaml:"baseURL"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"maxTokens"`
	TimeoutSecs int      `yaml:"timeoutSecs"` // Generation request timeout
}

// LocalLLMConfig configures the local HuggingFace generation backend.
type LocalLLMConfig struct {
	BaseURL      string   `yaml:"baseURL"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxNewTokens int      `yaml:"maxNewTokens"`
	TimeoutSecs  int      `yaml:"timeoutSecs"`
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider string          `yaml:"provider"` // "ollama" or "hf"
	Ollama   OllamaLLMConfig `yaml:"ollama"`
	HF       LocalLLMConfig  `yaml:"hf"`
}

// RetrievalConfig configures similarity retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"topK"` // Number of chunks retrieved per query
}

// TimeoutsConfig holds miscellaneous operation timeouts in seconds.
type TimeoutsConfig struct {
	HealthSecs int `yaml:"healthSecs"` // Health probe timeout
	OCRSecs    int `yaml:"ocrSecs"`    // OCR wall-clock timeout
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
}

// LoadConfig reads the yaml configuration from the given path. A missing
// file is not an error: defaults are returned so the backend runs with a
// plain local setup out of the box.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = "uploads"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 800
	}
	if cfg.Chunking.ChunkOverlap == nil {
		v := 200
		cfg.Chunking.ChunkOverlap = &v
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dim == 0 {
		cfg.Embedding.Dim = 768
	}
	if cfg.Milvus.Address == "" {
		cfg.Milvus.Address = "127.0.0.1:19530"
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = "pko_documents"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Ollama.BaseURL == "" {
		cfg.LLM.Ollama.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.LLM.Ollama.Model == "" {
		cfg.LLM.Ollama.Model = "llama3.1:8b"
	}
	if cfg.LLM.Ollama.Temperature == nil {
		v := 0.1
		cfg.LLM.Ollama.Temperature = &v
	}
	if cfg.LLM.Ollama.MaxTokens == 0 {
		cfg.LLM.Ollama.MaxTokens = 512
	}
	if cfg.LLM.Ollama.TimeoutSecs == 0 {
		cfg.LLM.Ollama.TimeoutSecs = 60
	}
	if cfg.LLM.HF.BaseURL == "" {
		cfg.LLM.HF.BaseURL = "http://127.0.0.1:8080"
	}
	if cfg.LLM.HF.Model == "" {
		cfg.LLM.HF.Model = "gpt2"
	}
	if cfg.LLM.HF.Temperature == nil {
		v := 0.7
		cfg.LLM.HF.Temperature = &v
	}
	if cfg.LLM.HF.MaxNewTokens == 0 {
		cfg.LLM.HF.MaxNewTokens = 512
	}
	if cfg.LLM.HF.TimeoutSecs == 0 {
		cfg.LLM.HF.TimeoutSecs = 60
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Timeouts.HealthSecs == 0 {
		cfg.Timeouts.HealthSecs = 5
	}
	if cfg.Timeouts.OCRSecs == 0 {
		cfg.Timeouts.OCRSecs = 30
	}
}

// applyEnvOverrides lets the common knobs be overridden without editing the
// config file. Only simple string values are exposed this way.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PKO_MILVUS_ADDRESS"); v != "" {
		cfg.Milvus.Address = v
	}
	if v := os.Getenv("PKO_OLLAMA_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
		cfg.LLM.Ollama.BaseURL = v
	}
	if v := os.Getenv("PKO_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("PKO_LLM_MODEL"); v != "" {
		cfg.LLM.Ollama.Model = v
	}
	if v := os.Getenv("PKO_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("PKO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
}

// UploadsPath returns the directory where uploaded files are saved.
func (c *AppConfig) UploadsPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.UploadsDir)
}

// EnsureDirectories creates the data directories if they do not exist.
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.UploadsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return nil
}
