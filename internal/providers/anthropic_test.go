package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected an error for a missing API key")
	}
}

func TestNewAnthropicProviderDefaultModel(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected default model: %s", p.defaultModel)
	}
}

func TestAnthropicProviderCompleteReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "hello from claude"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 3}
		}`)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := p.Complete(context.Background(), "hi", 0.5, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello from claude" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestAnthropicProviderCompleteWrapsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"type": "rate_limit_error", "message": "slow down"}, "request_id": "req_1"}`)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test", BaseURL: server.URL, MaxRetries: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = p.Complete(context.Background(), "hi", 0.5, 100, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	providerErr, ok := GetProviderError(err)
	if !ok {
		t.Fatalf("expected a *ProviderError, got %T: %v", err, err)
	}
	if providerErr.Reason != FailoverRateLimit {
		t.Fatalf("unexpected reason: %v", providerErr.Reason)
	}
}
