// Package agent answers questions from the corpus and translates documents with the language model.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docchat/model"
	"docchat/types"
)

// NoDocumentsAnswer is returned instead of calling the model while the corpus is empty.
const NoDocumentsAnswer = "Please upload a PDF first."

const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageGenerate = "generate"
)

type Retriever interface {
	Len() int
	Search(query []float32, k int) ([]types.SearchResult, error)
}

type EngineOptions struct {
	TopK        int
	Temperature float64
	// Tokens, when set, is used to log prompt sizes.
	Tokens TokenCounter
}

type Engine struct {
	logger   *slog.Logger
	store    Retriever
	embedder model.Embedder
	llm      model.LLM
	opts     EngineOptions
}

func NewEngine(store Retriever, embedder model.Embedder, llm model.LLM, opts EngineOptions, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &Engine{
		logger:   logger.With("component", "agent"),
		store:    store,
		embedder: embedder,
		llm:      llm,
		opts:     opts,
	}
}

// Answer retrieves the passages closest to question and asks the model to answer from them alone.
// The completion is returned verbatim.
func (e *Engine) Answer(ctx context.Context, question string, history []types.HistoryTurn) (string, error) {
	if e.store.Len() == 0 {
		return NoDocumentsAnswer, nil
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("empty question: %w", types.ErrInvalidInput)
	}

	start := time.Now()
	defer func() {
		e.logger.Debug("answer finished", "took", time.Since(start))
	}()

	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return "", &types.QueryError{Stage: StageEmbed, Err: err}
	}

	results, err := e.store.Search(vector, e.opts.TopK)
	if err != nil {
		return "", &types.QueryError{Stage: StageSearch, Err: err}
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Record.Text
	}

	prompt, err := buildAnswerPrompt(strings.Join(passages, "\n\n"), question, history)
	if err != nil {
		return "", &types.QueryError{Stage: StageGenerate, Err: err}
	}
	if e.opts.Tokens != nil {
		e.logger.Info("prompt ready", "passages", len(results), "tokens", e.opts.Tokens.Count(prompt), "chars", len(prompt))
	}

	answer, err := e.llm.Complete(ctx, prompt, model.CompleteOptions{Temperature: e.opts.Temperature})
	if err != nil {
		return "", &types.QueryError{Stage: StageGenerate, Err: err}
	}
	return answer, nil
}
