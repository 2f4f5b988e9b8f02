// Package loader turns uploaded files into page text and page text into chunks.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docchat/types"
)

// Extractor produces the ordered pages of a document.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]types.Page, error)
}

var supportedExt = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Supported reports whether a file name has an extension the loader can extract.
func Supported(name string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(name))]
}

// FormatExtractor dispatches on the file extension.
type FormatExtractor struct {
	pdf  Extractor
	text Extractor
}

func NewExtractor(opts PDFOptions, logger *slog.Logger) *FormatExtractor {
	return &FormatExtractor{
		pdf:  NewPDFExtractor(opts, logger),
		text: TextExtractor{},
	}
}

func (e *FormatExtractor) Extract(ctx context.Context, path string) ([]types.Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.pdf.Extract(ctx, path)
	case ".txt", ".md":
		return e.text.Extract(ctx, path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), types.ErrUnsupportedFormat)
	}
}
