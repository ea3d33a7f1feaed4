package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pko/internal/rag/errs"
	"pko/pkg/logger"
)

func TestEmbedEmptyInputSkipsServer(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := NewOllamaProvider(logger.New("test"), server.URL, "nomic-embed-text")
	vectors, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(vectors))
	}
	if called {
		t.Error("server must not be contacted for empty input")
	}
}

func TestEmbedReturnsOneVectorPerText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]string{{"name": "nomic-embed-text", "model": "nomic-embed-text"}},
			})
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			vectors := make([][]float32, len(req.Input))
			for i := range vectors {
				vectors[i] = []float32{float32(i), 1.0}
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewOllamaProvider(logger.New("test"), server.URL, "nomic-embed-text")
	vectors, err := p.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if vectors[2][0] != 2.0 {
		t.Errorf("vectors out of order: %+v", vectors)
	}
}

func TestEmbedModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{}})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := NewOllamaProvider(logger.New("test"), server.URL, "nomic-embed-text")
	_, err := p.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, errs.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewOllamaProvider(logger.New("test"), server.URL, "nomic-embed-text")
	_, err := p.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, errs.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}
