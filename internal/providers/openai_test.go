package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIProviderNoKeyReturnsErrorOnComplete(t *testing.T) {
	p := NewOpenAIProvider("")
	if _, err := p.Complete(context.Background(), "hi", 0.5, 100, 0); err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestOpenAIProviderCompleteReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello from gpt"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`)
	}))
	defer server.Close()

	p := NewOpenAIProviderWithBaseURL("test-key", server.URL)
	text, err := p.Complete(context.Background(), "hi", 0.5, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello from gpt" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestOpenAIProviderCompleteEmptyChoicesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o", "choices": []}`)
	}))
	defer server.Close()

	p := NewOpenAIProviderWithBaseURL("test-key", server.URL)
	if _, err := p.Complete(context.Background(), "hi", 0.5, 100, 0); err == nil {
		t.Fatal("expected an error for an empty choices list")
	}
}

func TestOpenAIProviderCompleteWrapsTransportError(t *testing.T) {
	p := NewOpenAIProviderWithBaseURL("test-key", "http://127.0.0.1:0")
	_, err := p.Complete(context.Background(), "hi", 0.5, 100, 0)
	if err == nil {
		t.Fatal("expected a connection error")
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected a *ProviderError, got %T", err)
	}
}
