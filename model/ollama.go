package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"docchat/config"
)

// OllamaEmbedder creates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	client *http.Client
	apiURL string
	model  string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewOllamaEmbedder(cfg config.ProviderConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		apiURL: cfg.URL,
		model:  cfg.Model,
	}
}

func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if err := postJSON(ctx, e.client, endpoint(e.apiURL, "/api/embed"), "", req, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = toFloat32(emb)
	}
	return vectors, nil
}

func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// OllamaLLM generates completions with /api/generate.
type OllamaLLM struct {
	client *http.Client
	apiURL string
	model  string
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func NewOllamaLLM(cfg config.ProviderConfig) *OllamaLLM {
	return &OllamaLLM{
		client: &http.Client{Timeout: cfg.Timeout},
		apiURL: cfg.URL,
		model:  cfg.Model,
	}
}

func (l *OllamaLLM) Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error) {
	req := ollamaGenerateRequest{
		Model:   l.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: opts.Temperature},
	}

	var body []byte
	if err := postJSON(ctx, l.client, endpoint(l.apiURL, "/api/generate"), "", req, &body); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return parseGenerate(body)
}

// parseGenerate accepts a single JSON object, or newline-delimited chunks when the server streams
// regardless of the request.
func parseGenerate(body []byte) (string, error) {
	var out strings.Builder
	dec := json.NewDecoder(bytes.NewReader(body))
	chunks := 0
	for dec.More() {
		var chunk ollamaGenerateResponse
		if err := dec.Decode(&chunk); err != nil {
			return "", fmt.Errorf("ollama generate: decode response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama generate: %s", chunk.Error)
		}
		out.WriteString(chunk.Response)
		chunks++
	}
	if chunks == 0 {
		return "", fmt.Errorf("ollama generate: empty response")
	}
	return out.String(), nil
}
