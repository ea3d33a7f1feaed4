package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	ollama "github.com/ollama/ollama/api"

	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/pkg/logger"
)

// OllamaProvider generates embeddings through a local Ollama server. The
// client is created and the model verified once, on first use; all later
// calls reuse that client. Where the embeddings actually run (GPU or CPU)
// is the server's one-time decision at model load.
type OllamaProvider struct {
	log     *logger.Logger
	baseURL string
	model   string

	mu     sync.Mutex
	client *ollama.Client
}

// NewOllamaProvider creates a provider for the given Ollama base URL and
// embedding model name. No connection is made until the first Embed call.
func NewOllamaProvider(log *logger.Logger, baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{log: log, baseURL: baseURL, model: model}
}

// getClient returns the shared client, creating it and verifying the model
// on the first successful call. A failed initialization leaves the provider
// uninitialized so the next call probes again; the retry decision itself
// belongs to the caller.
func (p *OllamaProvider) getClient(ctx context.Context) (*ollama.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	parsedURL, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", errs.ErrEmbeddingUnavailable, err)
	}
	client := ollama.NewClient(parsedURL, &http.Client{Timeout: 120 * time.Second})

	start := time.Now()
	p.log.Info(fmt.Sprintf("Verifying embedding model '%s'", p.model))
	list, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingUnavailable, err)
	}
	found := false
	for _, m := range list.Models {
		if m.Name == p.model || m.Model == p.model {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: model '%s' not found, run: ollama pull %s",
			errs.ErrEmbeddingUnavailable, p.model, p.model)
	}
	p.log.Info(fmt.Sprintf("Embedding model '%s' ready in %s", p.model, time.Since(start)))

	p.client = client
	return p.client, nil
}

// Embed returns one vector per input text, in input order. Empty input
// yields empty output without touching the server.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Embed(ctx, &ollama.EmbedRequest{
		Model: p.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			errs.ErrEmbeddingUnavailable, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// compile-time check to ensure OllamaProvider implements the EmbeddingModel interface
var _ interfaces.EmbeddingModel = (*OllamaProvider)(nil)
