package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// NoAnswerFound is returned when nothing relevant is stored for a question.
// The generation backend is not contacted in that case.
const NoAnswerFound = "The answer is not found in the provided documents."

// Pipeline answers questions over the indexed documents: retrieve the most
// similar chunks, assemble them into a context block, and delegate answer
// synthesis to the generation backend. Typed failures from the index or the
// backend propagate unmodified; this component translates nothing.
type Pipeline struct {
	log   *logger.Logger
	index interfaces.VectorIndex
	llm   interfaces.LLM
	topK  int
}

// NewPipeline creates a Pipeline retrieving topK chunks per question.
func NewPipeline(log *logger.Logger, index interfaces.VectorIndex, llm interfaces.LLM, topK int) *Pipeline {
	return &Pipeline{log: log, index: index, llm: llm, topK: topK}
}

// Answer runs the retrieval-augmented flow for one question.
func (p *Pipeline) Answer(ctx context.Context, question string, history []schema.HistoryItem) (*schema.AnswerResult, error) {
	start := time.Now()
	retrieved, err := p.index.Query(ctx, question, p.topK)
	if err != nil {
		return nil, err
	}
	p.log.Info(fmt.Sprintf("Retrieved %d chunks in %s (top_k=%d)", len(retrieved), time.Since(start), p.topK))

	contextBlock, sources := formatContextAndSources(retrieved)
	if strings.TrimSpace(contextBlock) == "" {
		return &schema.AnswerResult{Answer: NoAnswerFound, Sources: []schema.Source{}}, nil
	}

	start = time.Now()
	answer, err := p.llm.GenerateAnswer(ctx, contextBlock, question, history)
	if err != nil {
		return nil, err
	}
	p.log.Info(fmt.Sprintf("Generated answer in %s", time.Since(start)))

	return &schema.AnswerResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}

// formatContextAndSources flattens retrieved chunks into one context string,
// each line tagged with its provenance, plus the parallel source list. The
// sources carry the raw distance as their score.
func formatContextAndSources(retrieved []*schema.RetrievedChunk) (string, []schema.Source) {
	lines := make([]string, 0, len(retrieved))
	sources := make([]schema.Source, 0, len(retrieved))

	for _, chunk := range retrieved {
		lines = append(lines, fmt.Sprintf("[source=%s chunk=%d] %s",
			chunk.Metadata.SourceFile, chunk.Metadata.ChunkIndex, chunk.Text))
		sources = append(sources, schema.Source{
			SourceFile: chunk.Metadata.SourceFile,
			FileType:   chunk.Metadata.FileType,
			ChunkIndex: chunk.Metadata.ChunkIndex,
			Score:      chunk.Distance,
		})
	}
	return strings.Join(lines, "\n\n"), sources
}
