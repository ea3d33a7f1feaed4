// Package health probes the external collaborators the backend depends on:
// the Ollama server, the configured models, and the OCR binary. The Ollama
// generation backend reuses VerifyModel before every request.
package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"time"

	ollama "github.com/ollama/ollama/api"

	"pko/internal/rag/errs"
	"pko/pkg/logger"
)

// CheckResult is the outcome of one probe.
type CheckResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Checker runs liveness and model-presence probes against Ollama.
type Checker struct {
	log     *logger.Logger
	client  *ollama.Client
	timeout time.Duration
}

// NewChecker creates a Checker for the given Ollama base URL. timeout
// bounds each individual probe.
func NewChecker(log *logger.Logger, baseURL string, timeout time.Duration) (*Checker, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Checker{
		log:     log,
		client:  ollama.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		timeout: timeout,
	}, nil
}

// CheckOllama reports whether the Ollama server is reachable.
func (c *Checker) CheckOllama(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.Version(ctx); err != nil {
		c.log.Warn(fmt.Sprintf("Ollama health check failed: %v", err))
		return CheckResult{OK: false, Message: "Ollama not running"}
	}
	return CheckResult{OK: true, Message: "reachable"}
}

// CheckModel reports whether the named model is present on the server.
func (c *Checker) CheckModel(ctx context.Context, model string) CheckResult {
	if res := c.CheckOllama(ctx); !res.OK {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.List(ctx)
	if err != nil {
		c.log.Warn(fmt.Sprintf("Ollama model check failed: %v", err))
		return CheckResult{OK: false, Message: fmt.Sprintf("Could not verify model in Ollama: %v", err)}
	}
	for _, m := range list.Models {
		if m.Name == model || m.Model == model {
			return CheckResult{OK: true, Message: model}
		}
	}
	return CheckResult{
		OK:      false,
		Message: fmt.Sprintf("Model not found in Ollama. Please run: ollama pull %s", model),
	}
}

// VerifyModel is the typed-error form of CheckModel used on the generation
// path: unreachable server, missing model, and any other probe failure map
// to their distinct failure kinds.
func (c *Checker) VerifyModel(ctx context.Context, model string) error {
	if res := c.CheckOllama(ctx); !res.OK {
		return fmt.Errorf("%w: %s", errs.ErrServiceUnavailable, res.Message)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list models: %v", errs.ErrRequestFailed, err)
	}
	for _, m := range list.Models {
		if m.Name == model || m.Model == model {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errs.ErrModelMissing, model)
}

// CheckTesseract reports whether the OCR binary is installed.
func CheckTesseract() CheckResult {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return CheckResult{OK: false, Message: "Tesseract not installed"}
	}
	return CheckResult{OK: true, Message: "installed"}
}

// Snapshot collects all dependency probes for the diagnostics endpoint.
func (c *Checker) Snapshot(ctx context.Context, llmModel, embeddingModel string) map[string]CheckResult {
	return map[string]CheckResult{
		"ollama":          c.CheckOllama(ctx),
		"llm_model":       c.CheckModel(ctx, llmModel),
		"embedding_model": c.CheckModel(ctx, embeddingModel),
		"tesseract":       CheckTesseract(),
	}
}
