package interfaces

import (
	"context"

	"pko/internal/rag/schema"
)

// Loader converts a file on disk into zero or more normalized Documents.
// It returns no documents when extraction yields only whitespace.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Splitter splits a list of Documents into ordered, size-bounded Chunks.
type Splitter interface {
	Split(docs []*schema.Document) []*schema.Chunk
}

// EmbeddingModel turns text into dense numeric vectors, one per input, in
// input order. Empty input yields empty output without touching the model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists (vector, text, metadata) triples and supports
// similarity queries over them. Add and Query fail loudly with
// errs.ErrVectorStoreUnavailable; ListSources and Count are diagnostic and
// degrade to empty/zero on transient failure.
type VectorIndex interface {
	Add(ctx context.Context, chunks []*schema.Chunk) (int, error)
	Query(ctx context.Context, text string, topK int) ([]*schema.RetrievedChunk, error)
	ListSources(ctx context.Context) []*schema.FileSummary
	Count(ctx context.Context) int
	Clear(ctx context.Context) error
}

// LLM generates an answer from assembled context, a question, and bounded
// conversation history.
type LLM interface {
	GenerateAnswer(ctx context.Context, context_, question string, history []schema.HistoryItem) (string, error)
}
