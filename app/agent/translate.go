package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"docchat/loader"
	"docchat/model"
	"docchat/types"
)

// ProgressFunc is called after each page with the number of finished pages.
type ProgressFunc func(done, total int)

type TranslatorOptions struct {
	Temperature float64
	Concurrency int
}

type Translator struct {
	logger    *slog.Logger
	extractor loader.Extractor
	llm       model.LLM
	opts      TranslatorOptions
}

func NewTranslator(extractor loader.Extractor, llm model.LLM, opts TranslatorOptions, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Translator{
		logger:    logger.With("component", "translator"),
		extractor: extractor,
		llm:       llm,
		opts:      opts,
	}
}

// Translate returns one translated string per page of the document, in page order. The first page
// that fails cancels the rest and no pages are returned.
func (t *Translator) Translate(ctx context.Context, language, path string, progress ProgressFunc) ([]string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return nil, &types.TranslationError{Page: -1, Err: fmt.Errorf("target language: %w", types.ErrInvalidInput)}
	}

	pages, err := t.extractor.Extract(ctx, path)
	if err != nil {
		return nil, &types.TranslationError{Page: -1, Err: err}
	}
	t.logger.Info("translating document", "pages", len(pages), "language", language)

	out := make([]string, len(pages))
	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		progress(done, len(pages))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			if strings.TrimSpace(page.Text) == "" {
				report()
				return nil
			}
			if err := gctx.Err(); err != nil {
				return &types.TranslationError{Page: i, Err: err}
			}

			prompt, err := buildTranslatePrompt(language, page.Text)
			if err != nil {
				return &types.TranslationError{Page: i, Err: err}
			}
			text, err := t.llm.Complete(gctx, prompt, model.CompleteOptions{Temperature: t.opts.Temperature})
			if err != nil {
				return &types.TranslationError{Page: i, Err: err}
			}
			out[i] = text
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.logger.Error("translation failed", "error", err)
		return nil, err
	}
	return out, nil
}
