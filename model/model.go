// Package model talks to embedding and text generation backends.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"docchat/config"
)

// Embedder turns text into vectors. EmbedDocuments returns exactly one vector per input, in input order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type CompleteOptions struct {
	Temperature float64
}

// LLM produces a single completion for a prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}

// NewEmbedder builds the embedding backend named by cfg.Provider.
func NewEmbedder(cfg config.ProviderConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		logger.Info("using openai embeddings", "model", cfg.Model, "url", cfg.URL)
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		logger.Info("using ollama embeddings", "model", cfg.Model, "url", cfg.URL)
		return NewOllamaEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewLLM builds the completion backend named by cfg.Provider.
func NewLLM(cfg config.ProviderConfig, logger *slog.Logger) (LLM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		logger.Info("using openai completions", "model", cfg.Model, "url", cfg.URL)
		return NewOpenAILLM(cfg)
	case "ollama":
		logger.Info("using ollama completions", "model", cfg.Model, "url", cfg.URL)
		return NewOllamaLLM(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// postJSON sends body to url and decodes a 200 response into out. Other statuses become errors that
// carry the response body.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if raw, ok := out.(*[]byte); ok {
		*raw = respBody
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
