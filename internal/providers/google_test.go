package providers

import (
	"context"
	"strings"
	"testing"
)

func TestNewGeminiProviderRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	if err == nil || !strings.Contains(err.Error(), "API key is required") {
		t.Fatalf("expected an API key error, got %v", err)
	}
}

func TestNewGeminiProviderDefaultModel(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "gemini-2.0-flash" {
		t.Fatalf("unexpected default model: %s", p.defaultModel)
	}
}

func TestNewGeminiProviderCustomModel(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test-key", DefaultModel: "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "gemini-1.5-pro" {
		t.Fatalf("unexpected model: %s", p.defaultModel)
	}
}
