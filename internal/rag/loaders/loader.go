package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pko/internal/rag/errs"
	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// Registry resolves a file to its type and the loader responsible for it.
type Registry struct {
	log   *logger.Logger
	txt   *TxtLoader
	pdf   *PdfLoader
	image *ImageLoader
}

// NewRegistry creates a Registry with all supported loaders. ocrTimeout
// bounds how long a single OCR extraction may run.
func NewRegistry(log *logger.Logger, ocrTimeout time.Duration) *Registry {
	return &Registry{
		log:   log,
		txt:   NewTxtLoader(),
		pdf:   NewPdfLoader(log),
		image: NewImageLoader(log, ocrTimeout),
	}
}

// DetectFileType maps a filename extension to a FileType. The second return
// value is false when the extension is not recognized.
func DetectFileType(name string) (schema.FileType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return schema.FileTypeTxt, true
	case ".md", ".markdown":
		return schema.FileTypeMd, true
	case ".pdf":
		return schema.FileTypePdf, true
	case ".png", ".jpg", ".jpeg":
		return schema.FileTypeImage, true
	}
	return "", false
}

// resolveFileType detects the type from the extension, falling back to
// content sniffing for unknown extensions so that, e.g., a .log file that
// is plain text still ingests.
func (r *Registry) resolveFileType(path string) (schema.FileType, error) {
	if ft, ok := DetectFileType(path); ok {
		return ft, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedFileType, filepath.Base(path))
	}
	switch {
	case mtype.Is("application/pdf"):
		return schema.FileTypePdf, nil
	case strings.HasPrefix(mtype.String(), "image/"):
		return schema.FileTypeImage, nil
	case mtype.Is("text/plain") || strings.HasPrefix(mtype.String(), "text/"):
		return schema.FileTypeTxt, nil
	}
	return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedFileType, filepath.Base(path))
}

// Load normalizes one file into zero or one Document. It returns no
// documents when the extracted text is empty after trimming, and a typed
// error for unsupported types or a failed OCR run.
func (r *Registry) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	ftype, err := r.resolveFileType(path)
	if err != nil {
		return nil, err
	}

	var loader interfaces.Loader
	switch ftype {
	case schema.FileTypeTxt, schema.FileTypeMd:
		loader = r.txt
	case schema.FileTypePdf:
		loader = r.pdf
	case schema.FileTypeImage:
		loader = r.image
	}

	docs, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, doc := range docs {
		text := strings.TrimSpace(doc.Text)
		if text == "" {
			continue
		}
		out = append(out, &schema.Document{
			Text: text,
			Metadata: schema.Metadata{
				SourceFile: filepath.Base(path),
				FileType:   ftype,
			},
		})
	}
	if len(out) == 0 {
		r.log.Info(fmt.Sprintf("No text extracted from %s (type=%s)", path, ftype))
		return nil, nil
	}
	r.log.Debug(fmt.Sprintf("Loaded %s as %s (%d documents)", path, ftype, len(out)))
	return out, nil
}
