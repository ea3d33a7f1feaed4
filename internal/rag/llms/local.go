package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// LocalLLM generates answers through a locally-hosted HuggingFace
// text-generation server. The model endpoint is verified once at
// construction; a failure there is fatal and not retried, matching the
// load-once contract of a local model.
type LocalLLM struct {
	log          *logger.Logger
	client       *http.Client
	endpoint     string
	temperature  float64
	maxNewTokens int
}

// localGenerateRequest is the HuggingFace text-generation payload.
type localGenerateRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters localParameters `json:"parameters"`
}

type localParameters struct {
	Temperature  float64 `json:"temperature"`
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
}

// NewLocalLLM creates a LocalLLM backend and verifies the model endpoint is
// up. timeout bounds each generation request.
func NewLocalLLM(log *logger.Logger, baseURL, model string, temperature float64, maxNewTokens int, timeout time.Duration) (*LocalLLM, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/models/" + model

	log.Info(fmt.Sprintf("Verifying local generation model '%s'", model))
	resp, err := (&http.Client{Timeout: timeout}).Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("local model '%s' is not reachable at %s: %w", model, endpoint, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("local model '%s' failed to load: HTTP %d", model, resp.StatusCode)
	}

	return &LocalLLM{
		log:          log,
		client:       &http.Client{Timeout: timeout},
		endpoint:     endpoint,
		temperature:  temperature,
		maxNewTokens: maxNewTokens,
	}, nil
}

// GenerateAnswer builds the shared prompt, samples a bounded completion,
// and returns only the newly generated suffix with surrounding whitespace
// trimmed (the server echoes the prompt in generated_text).
func (l *LocalLLM) GenerateAnswer(ctx context.Context, context_, question string, history []schema.HistoryItem) (string, error) {
	prompt := BuildPrompt(context_, question, history)

	payload, err := json.Marshal(localGenerateRequest{
		Inputs: prompt,
		Parameters: localParameters{
			Temperature:  l.temperature,
			MaxNewTokens: l.maxNewTokens,
			DoSample:     true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", errs.ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: local model error %d", errs.ErrRequestFailed, resp.StatusCode)
	}

	var data []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", errs.ErrRequestFailed, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: no generated text returned", errs.ErrRequestFailed)
	}

	generated := strings.TrimPrefix(data[0].GeneratedText, prompt)
	return strings.TrimSpace(generated), nil
}

// compile-time check to ensure LocalLLM implements the LLM interface
var _ interfaces.LLM = (*LocalLLM)(nil)
