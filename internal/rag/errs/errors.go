// Package errs defines the closed set of failure kinds that cross component
// boundaries. Callers match them with errors.Is; message detail is added by
// wrapping with fmt.Errorf("%w: ...") and never changes the kind.
package errs

import "errors"

var (
	// ErrServiceUnavailable means the remote generation service is not reachable.
	ErrServiceUnavailable = errors.New("generation service unavailable")

	// ErrModelMissing means the configured generation model is not present on the service.
	ErrModelMissing = errors.New("generation model missing")

	// ErrRequestFailed means a generation request errored, timed out, or
	// returned a non-success status.
	ErrRequestFailed = errors.New("generation request failed")

	// ErrEmbeddingUnavailable means the embedding model failed to load or run.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrOCRUnavailable means the OCR capability is missing, failed, or timed out.
	ErrOCRUnavailable = errors.New("ocr unavailable")

	// ErrVectorStoreUnavailable means the vector index is unreachable or a
	// read/write against it failed.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrUnsupportedFileType means the file extension is not recognized.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
