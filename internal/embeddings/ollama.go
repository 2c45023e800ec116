package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaEmbedder satisfies Provider against a local Ollama server's
// plain HTTP embeddings endpoint; no SDK exists for it, so this talks
// raw JSON over net/http the way the teacher's own Ollama embedder
// does.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ Provider = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder builds an OllamaEmbedder from cfg. cfg.OllamaURL
// defaults to "http://localhost:11434" and cfg.Model to
// "nomic-embed-text".
func NewOllamaEmbedder(cfg Config) (*OllamaEmbedder, error) {
	baseURL := cfg.OllamaURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (e *OllamaEmbedder) Name() string { return "ollama" }

func (e *OllamaEmbedder) Dimension() int {
	switch e.model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	case "nomic-embed-text":
		return 768
	default:
		return 768
	}
}

// MaxBatchSize is 1: Ollama's /api/embeddings endpoint takes a single
// prompt per request, so EmbedBatch issues one call per text.
func (e *OllamaEmbedder) MaxBatchSize() int { return 1 }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshaling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: building ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings: ollama returned status %d: %s", resp.StatusCode, string(b))
	}

	var out ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embeddings: decoding ollama response: %w", err)
	}
	return out.Embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embeddings: embedding text %d: %w", i, err)
		}
		out[i] = vector
	}
	return out, nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}
