package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"pko/internal/health"
	"pko/internal/rag/errs"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// Ingestor is the ingestion entry point consumed by the API layer.
type Ingestor interface {
	Ingest(ctx context.Context, files []schema.UploadedFile) *schema.IngestResult
}

// Answerer is the question-answering entry point consumed by the API layer.
type Answerer interface {
	Answer(ctx context.Context, question string, history []schema.HistoryItem) (*schema.AnswerResult, error)
}

// Index is the subset of the vector index the API layer needs for the
// diagnostic and reset endpoints.
type Index interface {
	ListSources(ctx context.Context) []*schema.FileSummary
	Count(ctx context.Context) int
	Clear(ctx context.Context) error
}

// StatusInfo describes the running configuration shown by GET /status.
type StatusInfo struct {
	DBPath      string
	LLMProvider string
	LLMModel    string
	EmbedModel  string
}

// Handler bundles the handler functions for all API endpoints.
type Handler struct {
	log        *logger.Logger
	ingestor   Ingestor
	answerer   Answerer
	index      Index
	checker    *health.Checker
	uploadsDir string
	info       StatusInfo
}

// NewHandler creates a new Handler.
func NewHandler(log *logger.Logger, ingestor Ingestor, answerer Answerer, index Index, checker *health.Checker, uploadsDir string, info StatusInfo) *Handler {
	return &Handler{
		log:        log,
		ingestor:   ingestor,
		answerer:   answerer,
		index:      index,
		checker:    checker,
		uploadsDir: uploadsDir,
		info:       info,
	}
}

// Ingest handles POST /ingest: a multipart batch of files to index.
func (h *Handler) Ingest(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No files uploaded."})
		return
	}

	files := make([]schema.UploadedFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("failed to read upload %s", fh.Filename)})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("failed to read upload %s", fh.Filename)})
			return
		}
		files = append(files, schema.UploadedFile{Filename: fh.Filename, Content: content})
	}

	result := h.ingestor.Ingest(c.Request.Context(), files)
	h.log.WithPayload(map[string]interface{}{
		"files":        len(files),
		"total_chunks": result.TotalChunks,
	}).Info("Ingestion batch finished")
	c.JSON(http.StatusOK, result)
}

// QueryRequest is the JSON body of POST /query.
type QueryRequest struct {
	Question string               `json:"question" binding:"required"`
	History  []schema.HistoryItem `json:"history"`
}

// Query handles POST /query: answer a question over the indexed documents.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	result, err := h.answerer.Answer(c.Request.Context(), req.Question, req.History)
	if err != nil {
		h.writeAnswerError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeAnswerError translates the typed failure kinds into the status codes
// the frontend expects.
func (h *Handler) writeAnswerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ollama not running"})
	case errors.Is(err, errs.ErrModelMissing):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": fmt.Sprintf("Model not found: %s", h.info.LLMModel)})
	case errors.Is(err, errs.ErrEmbeddingUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Embedding model missing"})
	case errors.Is(err, errs.ErrVectorStoreUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Vector DB error"})
	case errors.Is(err, errs.ErrRequestFailed):
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
	default:
		h.log.Error(fmt.Sprintf("RAG pipeline failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "RAG pipeline failed."})
	}
}

// Clear handles POST /clear: wipe the vector store and saved uploads.
func (h *Handler) Clear(c *gin.Context) {
	if err := h.index.Clear(c.Request.Context()); err != nil {
		h.log.Error(fmt.Sprintf("Failed to clear vector store: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Vector DB error"})
		return
	}

	// Uploads are kept only as the source of indexed chunks; once the index
	// is gone they are stale.
	entries, err := os.ReadDir(h.uploadsDir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				os.Remove(filepath.Join(h.uploadsDir, entry.Name()))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusResponse is the JSON body of GET /status.
type StatusResponse struct {
	NumFiles    int    `json:"num_files"`
	NumChunks   int    `json:"num_chunks"`
	DBPath      string `json:"db_path"`
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
}

// Status handles GET /status: a summary of the current index and config.
func (h *Handler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, StatusResponse{
		NumFiles:    len(h.index.ListSources(ctx)),
		NumChunks:   h.index.Count(ctx),
		DBPath:      h.info.DBPath,
		LLMProvider: h.info.LLMProvider,
		LLMModel:    h.info.LLMModel,
	})
}

// Sources handles GET /sources: the per-file chunk statistics.
func (h *Handler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": h.index.ListSources(c.Request.Context())})
}

// Health handles GET /health: a snapshot of all dependency probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.Snapshot(c.Request.Context(), h.info.LLMModel, h.info.EmbedModel))
}
