package loaders

import (
	"context"
	"os"
	"strings"

	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
)

// TxtLoader implements the Loader interface for plain text and Markdown
// files. Markdown is ingested as-is; its formatting characters are ordinary
// text for retrieval purposes.
type TxtLoader struct{}

// NewTxtLoader creates a new TxtLoader.
func NewTxtLoader() *TxtLoader {
	return &TxtLoader{}
}

// Load reads the file and returns it as a single Document. Bytes that are
// not valid UTF-8 are dropped rather than failing the read.
func (l *TxtLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &schema.Document{
		Text: strings.ToValidUTF8(string(content), ""),
	}
	return []*schema.Document{doc}, nil
}

// compile-time check to ensure TxtLoader implements the Loader interface
var _ interfaces.Loader = (*TxtLoader)(nil)
