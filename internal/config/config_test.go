package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not be an error: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Errorf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Chunking.ChunkSize != 800 || *cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if *cfg.LLM.Ollama.Temperature != 0.1 || *cfg.LLM.HF.Temperature != 0.7 {
		t.Errorf("unexpected temperature defaults: %+v", cfg.LLM)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("unexpected topK default: %d", cfg.Retrieval.TopK)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Ollama.Model != "llama3.1:8b" {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Timeouts.HealthSecs != 5 || cfg.Timeouts.OCRSecs != 30 {
		t.Errorf("unexpected timeout defaults: %+v", cfg.Timeouts)
	}
}

func TestLoadConfigPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  address: \":9000\"\nretrieval:\n  topK: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("explicit value not honored: %s", cfg.Server.Address)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("explicit topK not honored: %d", cfg.Retrieval.TopK)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("unset value must fall back to default: %s", cfg.Embedding.Model)
	}
}

func TestLoadConfigExplicitZerosAreKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunking:\n  chunkOverlap: 0\nllm:\n  ollama:\n    temperature: 0\n  hf:\n    temperature: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("explicit chunkOverlap: 0 replaced by default: %d", *cfg.Chunking.ChunkOverlap)
	}
	if *cfg.LLM.Ollama.Temperature != 0 {
		t.Errorf("explicit ollama temperature: 0 replaced by default: %v", *cfg.LLM.Ollama.Temperature)
	}
	if *cfg.LLM.HF.Temperature != 0 {
		t.Errorf("explicit hf temperature: 0 replaced by default: %v", *cfg.LLM.HF.Temperature)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not: valid"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PKO_MILVUS_ADDRESS", "milvus.internal:19530")
	t.Setenv("PKO_LLM_MODEL", "qwen2:7b")
	t.Setenv("PKO_OLLAMA_BASE_URL", "http://ollama.internal:11434")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Milvus.Address != "milvus.internal:19530" {
		t.Errorf("milvus override not applied: %s", cfg.Milvus.Address)
	}
	if cfg.LLM.Ollama.Model != "qwen2:7b" {
		t.Errorf("model override not applied: %s", cfg.LLM.Ollama.Model)
	}
	if cfg.Embedding.BaseURL != "http://ollama.internal:11434" || cfg.LLM.Ollama.BaseURL != "http://ollama.internal:11434" {
		t.Errorf("base URL override must apply to both embedding and generation: %+v", cfg)
	}
}

func TestUploadsPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/var/lib/pko"
	cfg.Storage.UploadsDir = "uploads"
	if got := cfg.UploadsPath(); got != "/var/lib/pko/uploads" {
		t.Errorf("unexpected uploads path: %s", got)
	}
}
