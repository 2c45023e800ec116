package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder satisfies Provider over go-openai's embeddings
// endpoint, the collaborator SemanticCache and DecisionMemory's
// semantic loop check need for vector similarity.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an OpenAIEmbedder from cfg. cfg.Model
// defaults to "text-embedding-3-small".
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings: openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (e *OpenAIEmbedder) Name() string { return "openai" }

func (e *OpenAIEmbedder) Dimension() int {
	switch e.model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) MaxBatchSize() int { return 2048 }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embeddings: openai returned no embedding")
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: openai request failed: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		out[data.Index] = data.Embedding
	}
	return out, nil
}
