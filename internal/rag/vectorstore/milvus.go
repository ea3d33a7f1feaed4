package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// Schema fields of the Milvus collection.
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldSourceFile = "source_file"
	FieldFileType   = "file_type"
	FieldChunkIndex = "chunk_index"
	FieldEmbedding  = "embedding"
)

// allRowsExpr matches every stored record; Milvus queries require an expression.
const allRowsExpr = `id != ""`

// MilvusIndex persists chunk embeddings in a Milvus collection and serves
// similarity queries over them. The connection handle is opened lazily on
// first use and shared by all operations; Clear invalidates it so the next
// operation reconnects against the re-created collection.
type MilvusIndex struct {
	log        *logger.Logger
	address    string
	collection string
	dim        int
	embedder   interfaces.EmbeddingModel

	mu     sync.Mutex
	client client.Client
}

// NewMilvusIndex creates a MilvusIndex. No connection is made until the
// first operation.
func NewMilvusIndex(log *logger.Logger, address, collection string, dim int, embedder interfaces.EmbeddingModel) *MilvusIndex {
	return &MilvusIndex{
		log:        log,
		address:    address,
		collection: collection,
		dim:        dim,
		embedder:   embedder,
	}
}

// getClient returns the shared Milvus handle, connecting and ensuring the
// collection exists on first use.
func (s *MilvusIndex) getClient(ctx context.Context) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	c, err := client.NewClient(ctx, client.Config{Address: s.address})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrVectorStoreUnavailable, err)
	}
	if err := s.ensureCollection(ctx, c); err != nil {
		c.Close()
		return nil, err
	}

	s.client = c
	return s.client, nil
}

// ensureCollection creates and loads the collection if it does not exist.
func (s *MilvusIndex) ensureCollection(ctx context.Context, c client.Client) error {
	exists, err := c.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrVectorStoreUnavailable, err)
	}

	if !exists {
		sch := entity.NewSchema().
			WithName(s.collection).
			WithDescription("personal knowledge organizer document chunks").
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName(FieldSourceFile).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(FieldFileType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16)).
			WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := c.CreateCollection(ctx, sch, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("%w: failed to create collection: %v", errs.ErrVectorStoreUnavailable, err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrVectorStoreUnavailable, err)
		}
		if err := c.CreateIndex(ctx, s.collection, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("%w: failed to create index: %v", errs.ErrVectorStoreUnavailable, err)
		}
		s.log.Info(fmt.Sprintf("Created Milvus collection '%s' (dim=%d)", s.collection, s.dim))
	}

	if err := c.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("%w: failed to load collection: %v", errs.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Add embeds the chunks and persists them. Chunks with empty text are never
// stored. It returns the number of chunks added; an empty input returns 0
// without touching the store or the embedder.
func (s *MilvusIndex) Add(ctx context.Context, chunks []*schema.Chunk) (int, error) {
	kept := make([]*schema.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.Text != "" {
			kept = append(kept, ch)
		}
	}
	if len(kept) == 0 {
		return 0, nil
	}

	texts := make([]string, len(kept))
	for i, ch := range kept {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	c, err := s.getClient(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(kept))
	sources := make([]string, len(kept))
	types := make([]string, len(kept))
	indices := make([]int64, len(kept))
	for i, ch := range kept {
		ids[i] = uuid.New().String()
		sources[i] = ch.Metadata.SourceFile
		types[i] = string(ch.Metadata.FileType)
		indices[i] = int64(ch.Metadata.ChunkIndex)
	}

	_, err = c.Insert(ctx, s.collection, "", /* default partition */
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnVarChar(FieldText, texts),
		entity.NewColumnVarChar(FieldSourceFile, sources),
		entity.NewColumnVarChar(FieldFileType, types),
		entity.NewColumnInt64(FieldChunkIndex, indices),
		entity.NewColumnFloatVector(FieldEmbedding, s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert failed: %v", errs.ErrVectorStoreUnavailable, err)
	}

	// Flush so Count and ListSources observe the rows immediately.
	if err := c.Flush(ctx, s.collection, false); err != nil {
		return 0, fmt.Errorf("%w: flush failed: %v", errs.ErrVectorStoreUnavailable, err)
	}

	s.log.Info(fmt.Sprintf("Inserted %d chunks into collection '%s'", len(kept), s.collection))
	return len(kept), nil
}

// Query embeds the query text and returns up to topK chunks ordered by
// ascending distance. topK <= 0 returns no results.
func (s *MilvusIndex) Query(ctx context.Context, text string, topK int) ([]*schema.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	c, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	results, err := c.Search(
		ctx, s.collection, []string{}, "",
		[]string{FieldText, FieldSourceFile, FieldFileType, FieldChunkIndex},
		[]entity.Vector{entity.FloatVector(vectors[0])},
		FieldEmbedding, entity.L2, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", errs.ErrVectorStoreUnavailable, err)
	}

	var out []*schema.RetrievedChunk
	for _, res := range results {
		textCol, _ := findColumn(res.Fields, FieldText).(*entity.ColumnVarChar)
		sourceCol, _ := findColumn(res.Fields, FieldSourceFile).(*entity.ColumnVarChar)
		typeCol, _ := findColumn(res.Fields, FieldFileType).(*entity.ColumnVarChar)
		indexCol, _ := findColumn(res.Fields, FieldChunkIndex).(*entity.ColumnInt64)
		if textCol == nil || sourceCol == nil {
			s.log.Warn("Search result is missing expected fields, skipping")
			continue
		}

		for i := 0; i < res.ResultCount; i++ {
			chunk := &schema.RetrievedChunk{
				Text:     textCol.Data()[i],
				Distance: res.Scores[i],
				Metadata: schema.Metadata{SourceFile: sourceCol.Data()[i]},
			}
			if typeCol != nil {
				chunk.Metadata.FileType = schema.FileType(typeCol.Data()[i])
			}
			if indexCol != nil {
				chunk.Metadata.ChunkIndex = int(indexCol.Data()[i])
			}
			out = append(out, chunk)
		}
	}
	return out, nil
}

// ListSources aggregates all stored records by distinct source file. This
// is a diagnostic operation: a read failure degrades to an empty list.
func (s *MilvusIndex) ListSources(ctx context.Context) []*schema.FileSummary {
	c, err := s.getClient(ctx)
	if err != nil {
		s.log.Warn(fmt.Sprintf("ListSources degraded to empty: %v", err))
		return []*schema.FileSummary{}
	}

	rs, err := c.Query(ctx, s.collection, []string{}, allRowsExpr,
		[]string{FieldSourceFile, FieldFileType})
	if err != nil {
		s.log.Warn(fmt.Sprintf("ListSources degraded to empty: %v", err))
		return []*schema.FileSummary{}
	}

	sourceCol, _ := findColumn(rs, FieldSourceFile).(*entity.ColumnVarChar)
	typeCol, _ := findColumn(rs, FieldFileType).(*entity.ColumnVarChar)
	if sourceCol == nil {
		return []*schema.FileSummary{}
	}
	var types []string
	if typeCol != nil {
		types = typeCol.Data()
	}
	return aggregateSources(sourceCol.Data(), types)
}

// Count returns the total number of stored chunks, degrading to 0 on a
// transient failure.
func (s *MilvusIndex) Count(ctx context.Context) int {
	c, err := s.getClient(ctx)
	if err != nil {
		s.log.Warn(fmt.Sprintf("Count degraded to zero: %v", err))
		return 0
	}

	stats, err := c.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		s.log.Warn(fmt.Sprintf("Count degraded to zero: %v", err))
		return 0
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0
	}
	return n
}

// Clear irreversibly drops all persisted records, re-creates the empty
// collection, and invalidates the cached handle so the next operation
// reconnects. Safe to call when the collection does not yet exist.
func (s *MilvusIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.client
	if c == nil {
		var err error
		c, err = client.NewClient(ctx, client.Config{Address: s.address})
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrVectorStoreUnavailable, err)
		}
	}

	exists, err := c.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrVectorStoreUnavailable, err)
	}
	if exists {
		if err := c.DropCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("%w: drop failed: %v", errs.ErrVectorStoreUnavailable, err)
		}
	}
	if err := s.ensureCollection(ctx, c); err != nil {
		return err
	}
	s.log.Info(fmt.Sprintf("Cleared collection '%s'", s.collection))

	// The old handle may still cache state of the dropped collection.
	c.Close()
	s.client = nil
	return nil
}

// findColumn locates a named column in a result column set.
func findColumn(cols []entity.Column, name string) entity.Column {
	for _, col := range cols {
		if col.Name() == name {
			return col
		}
	}
	return nil
}

// aggregateSources counts chunks per distinct source file, preserving first
// appearance order.
func aggregateSources(sources, types []string) []*schema.FileSummary {
	byFile := make(map[string]*schema.FileSummary)
	var out []*schema.FileSummary
	for i, source := range sources {
		if source == "" {
			continue
		}
		summary, ok := byFile[source]
		if !ok {
			summary = &schema.FileSummary{SourceFile: source}
			if i < len(types) {
				summary.FileType = schema.FileType(types[i])
			}
			byFile[source] = summary
			out = append(out, summary)
		}
		summary.NumChunks++
	}
	return out
}

// compile-time check to ensure MilvusIndex implements the VectorIndex interface
var _ interfaces.VectorIndex = (*MilvusIndex)(nil)
