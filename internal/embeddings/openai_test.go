package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIEmbedderRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(Config{}); err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestNewOpenAIEmbedderDefaultModel(t *testing.T) {
	e, err := NewOpenAIEmbedder(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Dimension() != 1536 {
		t.Fatalf("unexpected default dimension: %d", e.Dimension())
	}
}

func TestOpenAIEmbedderEmbedReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"object": "list",
			"data": [{"object": "embedding", "embedding": [0.1, 0.2, 0.3], "index": 0}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`)
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestOpenAIEmbedderEmbedBatchPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"object": "list",
			"data": [
				{"object": "embedding", "embedding": [1.0], "index": 1},
				{"object": "embedding", "embedding": [0.0], "index": 0}
			],
			"model": "text-embedding-3-small"
		}`)
	}))
	defer server.Close()

	e, _ := NewOpenAIEmbedder(Config{APIKey: "test-key", BaseURL: server.URL})
	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors[0][0] != 0.0 || vectors[1][0] != 1.0 {
		t.Fatalf("expected results reordered by index, got %v", vectors)
	}
}

func TestOpenAIEmbedderEmbedBatchEmptyInput(t *testing.T) {
	e, _ := NewOpenAIEmbedder(Config{APIKey: "test-key"})
	vectors, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected (nil, nil) for empty input, got (%v, %v)", vectors, err)
	}
}
