package model

import (
	"context"
	"fmt"
	"net/http"

	"docchat/config"
)

// Inputs per /embeddings request. Larger documents are split into several requests.
const openAIEmbedBatch = 256

type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func NewOpenAIEmbedder(cfg config.ProviderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	return &OpenAIEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIEmbedBatch {
		end := min(start+openAIEmbedBatch, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch orders the response by its index field, which the API does not guarantee to match the
// input order.
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embeddingResponse
	req := embeddingRequest{Model: e.model, Input: texts}
	if err := postJSON(ctx, e.client, endpoint(e.baseURL, "/embeddings"), e.apiKey, req, &resp); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: no embedding for input %d", i)
		}
	}
	return vectors, nil
}

// OpenAILLM calls /chat/completions with the prompt as a single user message.
type OpenAILLM struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAILLM(cfg config.ProviderConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	return &OpenAILLM{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (l *OpenAILLM) Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error) {
	req := chatCompletionRequest{
		Model:       l.model,
		Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
	}

	var resp chatCompletionResponse
	if err := postJSON(ctx, l.client, endpoint(l.baseURL, "/chat/completions"), l.apiKey, req, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
