package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/types"
)

type pagesExtractor struct {
	pages []types.Page
	err   error
}

func (p pagesExtractor) Extract(context.Context, string) ([]types.Page, error) {
	return p.pages, p.err
}

func textOf(prompt string) string {
	_, text, _ := strings.Cut(prompt, "Text:\n")
	return text
}

func threePages() pagesExtractor {
	return pagesExtractor{pages: []types.Page{
		{Index: 0, Text: "page one"},
		{Index: 1, Text: "page two"},
		{Index: 2, Text: "page three"},
	}}
}

func TestTranslate_KeepsPageOrder(t *testing.T) {
	llm := &stubLLM{reply: func(prompt string) (string, error) {
		text := textOf(prompt)
		// finish pages out of order
		if text == "page one" {
			time.Sleep(50 * time.Millisecond)
		}
		return "FR " + text, nil
	}}
	tr := NewTranslator(threePages(), llm, TranslatorOptions{Temperature: 0.3, Concurrency: 3}, nil)

	pages, err := tr.Translate(context.Background(), "French", "doc.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"FR page one", "FR page two", "FR page three"}, pages)

	require.Len(t, llm.prompts, 3)
	for i, p := range llm.prompts {
		assert.Contains(t, p, "Translate the following text to French.")
		assert.Contains(t, p, "Do not add introductory text.")
		assert.Equal(t, 0.3, llm.temps[i])
	}
}

func TestTranslate_Progress(t *testing.T) {
	tr := NewTranslator(threePages(), &stubLLM{}, TranslatorOptions{Concurrency: 2}, nil)

	var (
		mu    sync.Mutex
		calls [][2]int
	)
	_, err := tr.Translate(context.Background(), "German", "doc.pdf", func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestTranslate_BlankPageSkipsModel(t *testing.T) {
	ex := pagesExtractor{pages: []types.Page{
		{Index: 0, Text: "hello"},
		{Index: 1, Text: " \n\t"},
		{Index: 2, Text: "bye"},
	}}
	llm := &stubLLM{reply: func(prompt string) (string, error) { return strings.ToUpper(textOf(prompt)), nil }}

	pages, err := NewTranslator(ex, llm, TranslatorOptions{Concurrency: 1}, nil).
		Translate(context.Background(), "Spanish", "doc.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO", "", "BYE"}, pages)
	assert.Len(t, llm.prompts, 2)
}

func TestTranslate_PageFailureAborts(t *testing.T) {
	llm := &stubLLM{reply: func(prompt string) (string, error) {
		if textOf(prompt) == "page two" {
			return "", errors.New("model error")
		}
		return "ok", nil
	}}

	pages, err := NewTranslator(threePages(), llm, TranslatorOptions{Concurrency: 1}, nil).
		Translate(context.Background(), "Italian", "doc.pdf", nil)

	assert.Nil(t, pages)
	var terr *types.TranslationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Page)
}

func TestTranslate_InvalidInput(t *testing.T) {
	tr := NewTranslator(threePages(), &stubLLM{}, TranslatorOptions{}, nil)
	_, err := tr.Translate(context.Background(), "  ", "doc.pdf", nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	tr = NewTranslator(pagesExtractor{err: types.ErrUnsupportedFormat}, &stubLLM{}, TranslatorOptions{}, nil)
	_, err = tr.Translate(context.Background(), "Polish", "doc.xlsx", nil)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestTranslate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &stubLLM{}
	_, err := NewTranslator(threePages(), llm, TranslatorOptions{Concurrency: 1}, nil).
		Translate(ctx, "Dutch", "doc.pdf", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, llm.prompts)
}

func TestBuildAnswerPrompt_NoHistory(t *testing.T) {
	prompt, err := buildAnswerPrompt("ctx text", "why?", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "Answer the question based only on the following context:\nctx text\n\nQuestion: why?\n"))
}
