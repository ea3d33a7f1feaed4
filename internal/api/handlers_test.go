package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pko/internal/health"
	"pko/internal/rag/errs"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

type fakeIngestor struct {
	got    []schema.UploadedFile
	result *schema.IngestResult
}

func (f *fakeIngestor) Ingest(ctx context.Context, files []schema.UploadedFile) *schema.IngestResult {
	f.got = files
	if f.result != nil {
		return f.result
	}
	results := make([]schema.FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, schema.FileResult{Filename: file.Filename, ChunksAdded: 1})
	}
	return &schema.IngestResult{Results: results, TotalChunks: len(files)}
}

type fakeAnswerer struct {
	result *schema.AnswerResult
	err    error

	question string
	history  []schema.HistoryItem
}

func (f *fakeAnswerer) Answer(ctx context.Context, question string, history []schema.HistoryItem) (*schema.AnswerResult, error) {
	f.question = question
	f.history = history
	return f.result, f.err
}

type fakeAPIIndex struct {
	summaries []*schema.FileSummary
	count     int
	clearErr  error
	cleared   bool
}

func (f *fakeAPIIndex) ListSources(ctx context.Context) []*schema.FileSummary { return f.summaries }
func (f *fakeAPIIndex) Count(ctx context.Context) int                         { return f.count }
func (f *fakeAPIIndex) Clear(ctx context.Context) error {
	f.cleared = true
	return f.clearErr
}

func newTestRouter(t *testing.T, ingestor Ingestor, answerer Answerer, index Index, uploadsDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	checker, err := health.NewChecker(log, "http://127.0.0.1:1", time.Second)
	if err != nil {
		t.Fatalf("failed to create checker: %v", err)
	}
	h := NewHandler(log, ingestor, answerer, index, checker, uploadsDir, StatusInfo{
		DBPath:      "127.0.0.1:19530/test_collection",
		LLMProvider: "ollama",
		LLMModel:    "llama3.1:8b",
		EmbedModel:  "nomic-embed-text",
	})
	return SetupRouter(h)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestIngestEndpoint(t *testing.T) {
	ingestor := &fakeIngestor{}
	router := newTestRouter(t, ingestor, &fakeAnswerer{}, &fakeAPIIndex{}, t.TempDir())

	body, contentType := multipartBody(t, map[string]string{
		"notes.txt": "some text",
		"more.md":   "# heading",
	})
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(ingestor.got) != 2 {
		t.Fatalf("expected 2 files passed through, got %d", len(ingestor.got))
	}
	var result schema.IngestResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.TotalChunks != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestIngestEndpointNoFiles(t *testing.T) {
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, &fakeAPIIndex{}, t.TempDir())

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No files uploaded.") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func postQuery(router *gin.Engine, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQueryEndpoint(t *testing.T) {
	answerer := &fakeAnswerer{result: &schema.AnswerResult{
		Answer: "the answer",
		Sources: []schema.Source{
			{SourceFile: "a.txt", FileType: schema.FileTypeTxt, ChunkIndex: 0, Score: 0.2},
		},
	}}
	router := newTestRouter(t, &fakeIngestor{}, answerer, &fakeAPIIndex{}, t.TempDir())

	w := postQuery(router, `{"question":"what?","history":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if answerer.question != "what?" {
		t.Errorf("question not passed through: %q", answerer.question)
	}
	if len(answerer.history) != 1 || answerer.history[0].Content != "hi" {
		t.Errorf("history not passed through: %+v", answerer.history)
	}
	var result schema.AnswerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Answer != "the answer" || len(result.Sources) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestQueryEndpointMissingQuestion(t *testing.T) {
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, &fakeAPIIndex{}, t.TempDir())
	if w := postQuery(router, `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestQueryEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"service unavailable", fmt.Errorf("%w: down", errs.ErrServiceUnavailable), http.StatusServiceUnavailable, "Ollama not running"},
		{"model missing", fmt.Errorf("%w: llama3.1:8b", errs.ErrModelMissing), http.StatusServiceUnavailable, "Model not found: llama3.1:8b"},
		{"embedding unavailable", fmt.Errorf("%w: gone", errs.ErrEmbeddingUnavailable), http.StatusInternalServerError, "Embedding model missing"},
		{"vector store unavailable", fmt.Errorf("%w: gone", errs.ErrVectorStoreUnavailable), http.StatusInternalServerError, "Vector DB error"},
		{"request failed", fmt.Errorf("%w: 500 upstream", errs.ErrRequestFailed), http.StatusBadGateway, "500 upstream"},
		{"unknown", errors.New("something odd"), http.StatusInternalServerError, "RAG pipeline failed."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{err: tc.err}, &fakeAPIIndex{}, t.TempDir())
			w := postQuery(router, `{"question":"q"}`)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tc.wantDetail) {
				t.Errorf("expected detail %q in body: %s", tc.wantDetail, w.Body.String())
			}
		})
	}
}

func TestClearEndpointRemovesUploads(t *testing.T) {
	uploadsDir := t.TempDir()
	stale := filepath.Join(uploadsDir, "old.txt")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("failed to seed upload: %v", err)
	}

	index := &fakeAPIIndex{}
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, index, uploadsDir)

	req := httptest.NewRequest(http.MethodPost, "/clear", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !index.cleared {
		t.Error("index was not cleared")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale upload was not removed")
	}
}

func TestClearEndpointVectorStoreFailure(t *testing.T) {
	index := &fakeAPIIndex{clearErr: fmt.Errorf("%w: gone", errs.ErrVectorStoreUnavailable)}
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, index, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/clear", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	index := &fakeAPIIndex{
		summaries: []*schema.FileSummary{
			{SourceFile: "a.txt", FileType: schema.FileTypeTxt, NumChunks: 3},
			{SourceFile: "b.pdf", FileType: schema.FileTypePdf, NumChunks: 2},
		},
		count: 5,
	}
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, index, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if status.NumFiles != 2 || status.NumChunks != 5 {
		t.Errorf("unexpected counts: %+v", status)
	}
	if status.LLMProvider != "ollama" || status.LLMModel != "llama3.1:8b" {
		t.Errorf("unexpected config echo: %+v", status)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	index := &fakeAPIIndex{summaries: []*schema.FileSummary{
		{SourceFile: "a.txt", FileType: schema.FileTypeTxt, NumChunks: 3},
	}}
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, index, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "a.txt") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &fakeIngestor{}, &fakeAnswerer{}, &fakeAPIIndex{}, t.TempDir())

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow-origin: %q", got)
	}
}
