package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pko/pkg/logger"
)

func TestNewLocalLLMVerifiesEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gpt2" {
			t.Errorf("unexpected verification path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, err := NewLocalLLM(logger.New("test"), server.URL, "gpt2", 0.7, 512, time.Second); err != nil {
		t.Fatalf("expected construction to succeed, got %v", err)
	}
}

func TestNewLocalLLMFailsWhenModelCannotLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewLocalLLM(logger.New("test"), server.URL, "gpt2", 0.7, 512, time.Second); err == nil {
		t.Fatal("expected construction to fail against a broken model endpoint")
	}
}

func TestNewLocalLLMFailsWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	if _, err := NewLocalLLM(logger.New("test"), server.URL, "gpt2", 0.7, 512, time.Second); err == nil {
		t.Fatal("expected construction to fail against an unreachable server")
	}
}

func TestLocalLLMStripsEchoedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req localGenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Parameters.DoSample {
			t.Error("expected do_sample=true")
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"generated_text": req.Inputs + "  the generated part  "},
		})
	}))
	defer server.Close()

	llm, err := NewLocalLLM(logger.New("test"), server.URL, "gpt2", 0.7, 512, time.Second)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	answer, err := llm.GenerateAnswer(context.Background(), "some context", "a question", nil)
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if answer != "the generated part" {
		t.Errorf("expected echoed prompt stripped and whitespace trimmed, got %q", answer)
	}
}
