package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"docchat/types"
)

// TextExtractor reads plain text and markdown files. A form feed starts a new page.
type TextExtractor struct{}

func (TextExtractor) Extract(ctx context.Context, path string) ([]types.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	parts := strings.Split(string(data), "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	pages := make([]types.Page, len(parts))
	for i, p := range parts {
		pages[i] = types.Page{Index: i, Text: p}
	}
	return pages, nil
}
