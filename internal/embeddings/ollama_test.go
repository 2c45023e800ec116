package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOllamaEmbedderDefaults(t *testing.T) {
	e, err := NewOllamaEmbedder(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.baseURL != "http://localhost:11434" || e.model != "nomic-embed-text" {
		t.Fatalf("unexpected defaults: baseURL=%s model=%s", e.baseURL, e.model)
	}
	if e.MaxBatchSize() != 1 {
		t.Fatalf("expected MaxBatchSize 1, got %d", e.MaxBatchSize())
	}
}

func TestOllamaEmbedderEmbedReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Prompt != "hello" {
			t.Fatalf("unexpected prompt: %s", req.Prompt)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embedding": [0.5, 0.25]}`)
	}))
	defer server.Close()

	e, _ := NewOllamaEmbedder(Config{OllamaURL: server.URL})
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestOllamaEmbedderEmbedNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "model not loaded")
	}))
	defer server.Close()

	e, _ := NewOllamaEmbedder(Config{OllamaURL: server.URL})
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestOllamaEmbedderEmbedBatchIssuesOneCallPerText(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embedding": [1.0]}`)
	}))
	defer server.Close()

	e, _ := NewOllamaEmbedder(Config{OllamaURL: server.URL})
	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || len(vectors) != 3 {
		t.Fatalf("expected 3 calls and 3 vectors, got calls=%d vectors=%d", calls, len(vectors))
	}
}
