package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiProvider satisfies agent.LanguageModel over Google's Gemini
// models via the Gen AI Go SDK.
type GeminiProvider struct {
	base         BaseProvider
	client       *genai.Client
	defaultModel string
}

type GeminiConfig struct {
	APIKey       string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GeminiProvider{
		base:         NewBaseProvider("google", config.MaxRetries, config.RetryDelay),
		client:       client,
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *GeminiProvider) Name() string { return "google" }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}
	if topP > 0 {
		genConfig.TopP = genai.Ptr(float32(topP))
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	err := p.base.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, p.defaultModel, contents, genConfig)
		if callErr != nil {
			callErr = NewProviderError("google", p.defaultModel, callErr)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("google: empty response")
	}
	return text, nil
}
