package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// defaultOCRBinary is the tesseract executable looked up on PATH.
const defaultOCRBinary = "tesseract"

// ImageLoader implements the Loader interface for image files by running
// optical character recognition over them. The OCR run is bounded by a
// wall-clock timeout so a pathological image cannot hang ingestion.
type ImageLoader struct {
	log     *logger.Logger
	timeout time.Duration
	binary  string
}

// NewImageLoader creates a new ImageLoader with the given OCR timeout.
func NewImageLoader(log *logger.Logger, timeout time.Duration) *ImageLoader {
	return &ImageLoader{log: log, timeout: timeout, binary: defaultOCRBinary}
}

// Load runs OCR on the image and returns the recognized text as a single
// Document. A missing OCR binary, a failed run, and a timeout all surface
// as errs.ErrOCRUnavailable; the caller decides whether to skip the file.
func (l *ImageLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	if _, err := exec.LookPath(l.binary); err != nil {
		l.log.Warn(fmt.Sprintf("%s is not installed; cannot OCR image file: %s", l.binary, path))
		return nil, fmt.Errorf("%w: tesseract not installed", errs.ErrOCRUnavailable)
	}

	ocrCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ocrCtx, l.binary, path, "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ocrCtx.Err(), context.DeadlineExceeded) {
		l.log.Error(fmt.Sprintf("OCR timed out after %s for %s", l.timeout, path))
		return nil, fmt.Errorf("%w: ocr timed out", errs.ErrOCRUnavailable)
	}
	if err != nil {
		l.log.Error(fmt.Sprintf("OCR failed for %s: %v (%s)", path, err, stderr.String()))
		return nil, fmt.Errorf("%w: ocr failed", errs.ErrOCRUnavailable)
	}

	doc := &schema.Document{Text: stdout.String()}
	return []*schema.Document{doc}, nil
}

// compile-time check to ensure ImageLoader implements the Loader interface
var _ interfaces.Loader = (*ImageLoader)(nil)
