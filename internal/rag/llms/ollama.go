package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pko/internal/health"
	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// OllamaLLM generates answers through a locally-running Ollama server. It
// verifies reachability and model presence before every request so that a
// stopped server and a missing model surface as their distinct failure
// kinds instead of a generic request error.
type OllamaLLM struct {
	log         *logger.Logger
	checker     *health.Checker
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

// generateRequest is the non-streaming Ollama generation payload.
type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

// NewOllamaLLM creates an OllamaLLM backend. timeout bounds each generation
// request.
func NewOllamaLLM(log *logger.Logger, checker *health.Checker, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *OllamaLLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaLLM{
		log:         log,
		checker:     checker,
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateAnswer builds the shared prompt and issues a non-streaming
// generation request. A malformed (non-JSON) success body is returned
// verbatim as the answer rather than treated as an error.
func (o *OllamaLLM) GenerateAnswer(ctx context.Context, context_, question string, history []schema.HistoryItem) (string, error) {
	if err := o.checker.VerifyModel(ctx, o.model); err != nil {
		return "", err
	}

	payload, err := json.Marshal(generateRequest{
		Model:       o.model,
		Prompt:      BuildPrompt(context_, question, history),
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", errs.ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	o.log.Info(fmt.Sprintf("Sending generation request to Ollama (model=%s)", o.model))
	resp, err := o.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			o.log.Error(fmt.Sprintf("Ollama request timed out after %s", time.Since(start)))
			return "", fmt.Errorf("%w: request timed out", errs.ErrRequestFailed)
		}
		return "", fmt.Errorf("%w: %v", errs.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", errs.ErrRequestFailed, err)
	}
	o.log.Info(fmt.Sprintf("Ollama generation finished in %s (status=%d)", time.Since(start), resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: ollama error %d: %s", errs.ErrRequestFailed, resp.StatusCode, string(body))
	}

	var data struct {
		Response string `json:"response"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return string(body), nil
	}
	if data.Response != "" {
		return data.Response, nil
	}
	return data.Text, nil
}

// isTimeout reports whether the transport error was a timeout rather than,
// e.g., a refused connection.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// compile-time check to ensure OllamaLLM implements the LLM interface
var _ interfaces.LLM = (*OllamaLLM)(nil)
