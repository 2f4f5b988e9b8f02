package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"

	"docchat/types"
)

type PDFOptions struct {
	CropTop    float64
	CropBottom float64
}

// PDFExtractor validates a PDF with pdfcpu, optionally crops running headers and footers into a
// temporary copy, and reads the plain text of every page.
type PDFExtractor struct {
	opts   PDFOptions
	logger *slog.Logger
}

func NewPDFExtractor(opts PDFOptions, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{
		opts:   opts,
		logger: logger.With("component", "pdf"),
	}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]types.Page, error) {
	count, err := ValidatePDF(path)
	if err != nil {
		return nil, err
	}

	src := path
	if e.opts.CropTop > 0 || e.opts.CropBottom > 0 {
		cropped, err := e.crop(path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(cropped)
		src = cropped
	}

	f, r, err := pdf.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if n != count {
		e.logger.Warn("page count differs between readers", "path", path, "pdfcpu", count, "reader", n)
	}

	pages := make([]types.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var text string
		p := r.Page(i)
		if !p.V.IsNull() {
			text, err = p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("read page %d: %w", i, err)
			}
		}
		pages = append(pages, types.Page{Index: i - 1, Text: text})
	}

	e.logger.Debug("extracted pdf", "path", path, "pages", len(pages))
	return pages, nil
}

func (e *PDFExtractor) crop(path string) (string, error) {
	tmp, err := os.CreateTemp("", "docchat-crop-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()

	if err := RemoveHeaderFooterCrop(path, name, e.opts.CropTop, e.opts.CropBottom); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
