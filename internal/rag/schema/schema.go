package schema

// FileType identifies the kind of source file a document came from.
type FileType string

const (
	FileTypeTxt   FileType = "txt"
	FileTypeMd    FileType = "md"
	FileTypePdf   FileType = "pdf"
	FileTypeImage FileType = "image"
)

// Metadata carries the provenance of a document or chunk.
type Metadata struct {
	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`
	ChunkIndex int      `json:"chunk_index"`
}

// Document is the normalized form of one ingested file: extracted plain
// text plus source metadata. Documents are transient; they exist only for
// the duration of a single ingestion call.
type Document struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded segment of a document's text, the unit of storage and
// retrieval. ChunkIndex in its metadata is contiguous from 0 within the
// source document.
type Chunk struct {
	Text     string
	Metadata Metadata
}

// RetrievedChunk is a chunk returned from a similarity query together with
// its raw distance to the query vector. Lower distance means more relevant.
type RetrievedChunk struct {
	Text     string
	Metadata Metadata
	Distance float32
}

// Source is the display-safe projection of a retrieved chunk returned in
// query responses. Score is the raw distance, not a normalized similarity.
type Source struct {
	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`
	ChunkIndex int      `json:"chunk_index"`
	Score      float32  `json:"score"`
}

// HistoryItem is one turn of caller-supplied conversation history. Only
// the most recent ten items are rendered into the prompt.
type HistoryItem struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// FileSummary aggregates the stored chunks of one distinct source file.
type FileSummary struct {
	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`
	NumChunks  int      `json:"num_chunks"`
}

// UploadedFile is one file delivered by the upload transport: its declared
// name (trusted only for basename and extension) and raw bytes.
type UploadedFile struct {
	Filename string
	Content  []byte
}

// FileResult records the outcome of ingesting a single file.
type FileResult struct {
	Filename    string   `json:"filename"`
	FileType    FileType `json:"file_type,omitempty"`
	ChunksAdded int      `json:"chunks_added"`
	Error       string   `json:"error,omitempty"`
}

// IngestResult is the aggregate outcome of one ingestion batch. Results
// preserve the input file order.
type IngestResult struct {
	Results     []FileResult `json:"results"`
	TotalChunks int          `json:"total_chunks"`
}

// AnswerResult is the outcome of one question over the indexed documents.
type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
