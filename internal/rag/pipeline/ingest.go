package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pko/internal/rag/interfaces"
	"pko/internal/rag/loaders"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// Orchestrator ingests a batch of uploaded files: save, normalize, split,
// and store, with per-file error isolation. One bad file is recorded and
// skipped; the batch never aborts early.
type Orchestrator struct {
	log        *logger.Logger
	registry   *loaders.Registry
	splitter   interfaces.Splitter
	index      interfaces.VectorIndex
	uploadsDir string
}

// NewOrchestrator creates an Orchestrator saving uploads under uploadsDir.
func NewOrchestrator(log *logger.Logger, registry *loaders.Registry, splitter interfaces.Splitter, index interfaces.VectorIndex, uploadsDir string) *Orchestrator {
	return &Orchestrator{
		log:        log,
		registry:   registry,
		splitter:   splitter,
		index:      index,
		uploadsDir: uploadsDir,
	}
}

// Ingest processes each file independently and in order. Per-file results
// record the detected file type (best-effort, re-derived from the filename
// when the pipeline failed), the number of chunks added, and the error
// message if any. TotalChunks sums the successful additions.
func (o *Orchestrator) Ingest(ctx context.Context, files []schema.UploadedFile) *schema.IngestResult {
	out := &schema.IngestResult{Results: make([]schema.FileResult, 0, len(files))}

	for _, file := range files {
		// The client-supplied name is trusted only for its basename.
		filename := filepath.Base(file.Filename)
		result := schema.FileResult{Filename: filename}

		added, ftype, err := o.ingestOne(ctx, filename, file.Content)
		if err != nil {
			o.log.Warn(fmt.Sprintf("Failed to ingest %s: %v", filename, err))
			result.Error = err.Error()
			if derived, ok := loaders.DetectFileType(filename); ok {
				result.FileType = derived
			}
		} else {
			result.ChunksAdded = added
			result.FileType = ftype
			out.TotalChunks += added
		}
		out.Results = append(out.Results, result)
	}
	return out
}

// ingestOne runs the full pipeline for a single file: persist the raw
// bytes, normalize, chunk, and store.
func (o *Orchestrator) ingestOne(ctx context.Context, filename string, content []byte) (int, schema.FileType, error) {
	savePath := filepath.Join(o.uploadsDir, filename)
	if err := os.WriteFile(savePath, content, 0o644); err != nil {
		return 0, "", fmt.Errorf("failed to save upload: %w", err)
	}

	docs, err := o.registry.Load(ctx, savePath)
	if err != nil {
		return 0, "", err
	}

	var ftype schema.FileType
	if len(docs) > 0 {
		ftype = docs[0].Metadata.FileType
	} else if derived, ok := loaders.DetectFileType(filename); ok {
		ftype = derived
	}

	chunks := o.splitter.Split(docs)
	added, err := o.index.Add(ctx, chunks)
	if err != nil {
		return 0, "", err
	}
	return added, ftype, nil
}
