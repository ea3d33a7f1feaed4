package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"pko/internal/api"
	"pko/internal/config"
	"pko/internal/health"
	"pko/internal/rag/embeddings"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/llms"
	"pko/internal/rag/loaders"
	"pko/internal/rag/pipeline"
	"pko/internal/rag/splitters"
	"pko/internal/rag/vectorstore"
	"pko/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(os.Getenv("PKO_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("pko_backend")
	appLogger.Info("Logger initialized")

	if err := cfg.EnsureDirectories(); err != nil {
		appLogger.Fatal(err.Error())
	}

	healthTimeout := time.Duration(cfg.Timeouts.HealthSecs) * time.Second
	checker, err := health.NewChecker(appLogger, cfg.LLM.Ollama.BaseURL, healthTimeout)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// The backend refuses to start against an unusable Ollama setup: a
	// stopped server or a missing generation model would otherwise fail
	// every query.
	llm := buildLLM(appLogger, cfg, checker)

	embedder := embeddings.NewOllamaProvider(appLogger, cfg.Embedding.BaseURL, cfg.Embedding.Model)
	index := vectorstore.NewMilvusIndex(appLogger, cfg.Milvus.Address, cfg.Milvus.Collection, cfg.Embedding.Dim, embedder)

	registry := loaders.NewRegistry(appLogger, time.Duration(cfg.Timeouts.OCRSecs)*time.Second)
	splitter := splitters.NewRecursiveSplitter(cfg.Chunking.ChunkSize, *cfg.Chunking.ChunkOverlap)

	orchestrator := pipeline.NewOrchestrator(appLogger, registry, splitter, index, cfg.UploadsPath())
	answerer := pipeline.NewPipeline(appLogger, index, llm, cfg.Retrieval.TopK)
	appLogger.Info("Dependencies injected")

	handler := api.NewHandler(appLogger, orchestrator, answerer, index, checker, cfg.UploadsPath(), api.StatusInfo{
		DBPath:      fmt.Sprintf("%s/%s", cfg.Milvus.Address, cfg.Milvus.Collection),
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    llmModel(cfg),
		EmbedModel:  cfg.Embedding.Model,
	})
	router := api.SetupRouter(handler)
	appLogger.Info("Router setup completed")

	appLogger.Info("Starting server on " + cfg.Server.Address)
	if err := router.Run(cfg.Server.Address); err != nil {
		appLogger.Fatal(err.Error())
	}
}

// buildLLM constructs the configured generation backend, exiting when the
// backend cannot possibly serve requests.
func buildLLM(appLogger *logger.Logger, cfg *config.AppConfig, checker *health.Checker) interfaces.LLM {
	switch cfg.LLM.Provider {
	case "hf":
		hf := cfg.LLM.HF
		llm, err := llms.NewLocalLLM(appLogger, hf.BaseURL, hf.Model, *hf.Temperature, hf.MaxNewTokens,
			time.Duration(hf.TimeoutSecs)*time.Second)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		return llm
	case "ollama":
		ol := cfg.LLM.Ollama
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeouts.HealthSecs)*time.Second)
		defer cancel()
		if res := checker.CheckOllama(ctx); !res.OK {
			appLogger.Fatal("Ollama is not running. Start it with: ollama serve")
		}
		if res := checker.CheckModel(ctx, ol.Model); !res.OK {
			appLogger.Fatal(res.Message)
		}
		return llms.NewOllamaLLM(appLogger, checker, ol.BaseURL, ol.Model, *ol.Temperature, ol.MaxTokens,
			time.Duration(ol.TimeoutSecs)*time.Second)
	default:
		appLogger.Fatal(fmt.Sprintf("Unknown LLM provider '%s' (expected 'ollama' or 'hf')", cfg.LLM.Provider))
		return nil
	}
}

func llmModel(cfg *config.AppConfig) string {
	if cfg.LLM.Provider == "hf" {
		return cfg.LLM.HF.Model
	}
	return cfg.LLM.Ollama.Model
}
