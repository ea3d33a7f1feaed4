package loaders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
	"pko/pkg/logger"
)

// PdfLoader implements the Loader interface for PDF files.
type PdfLoader struct {
	log *logger.Logger
}

// NewPdfLoader creates a new PdfLoader.
func NewPdfLoader(log *logger.Logger) *PdfLoader {
	return &PdfLoader{log: log}
}

// Load extracts text from a PDF page by page and returns it as a single
// Document. A page that fails to extract contributes no text. An encrypted
// document is attempted with an empty password; if that fails, or the file
// cannot be parsed at all, the loader returns zero documents rather than an
// error, matching the extraction-is-best-effort contract.
func (l *PdfLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// NewReaderEncrypted tries the empty password once for encrypted files
	// and behaves like NewReader for unencrypted ones.
	reader, err := pdf.NewReaderEncrypted(f, info.Size(), func() string { return "" })
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			l.log.Warn(fmt.Sprintf("Encrypted PDF cannot be decrypted: %s", path))
		} else {
			l.log.Warn(fmt.Sprintf("Failed to parse PDF %s: %v", path, err))
		}
		return nil, nil
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		if text := l.extractPage(reader, i, path); text != "" {
			parts = append(parts, text)
		}
	}

	doc := &schema.Document{Text: strings.Join(parts, "\n")}
	return []*schema.Document{doc}, nil
}

// extractPage pulls the plain text of one page. The underlying parser
// panics on some malformed content streams, so the panic is converted into
// an empty page.
func (l *PdfLoader) extractPage(reader *pdf.Reader, num int, path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn(fmt.Sprintf("Failed to extract text from page %d of %s: %v", num, path, r))
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		l.log.Warn(fmt.Sprintf("Failed to extract text from page %d of %s: %v", num, path, err))
		return ""
	}
	return text
}

// compile-time check to ensure PdfLoader implements the Loader interface
var _ interfaces.Loader = (*PdfLoader)(nil)
