package providers

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider satisfies agent.LanguageModel over OpenAI's chat
// completion API.
type OpenAIProvider struct {
	base         BaseProvider
	client       *openai.Client
	defaultModel string
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{
		base:         NewBaseProvider("openai", 3, 0),
		defaultModel: "gpt-4o",
	}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// NewOpenAIProviderWithBaseURL is NewOpenAIProvider with the API base
// URL overridden, for pointing at a test double or an OpenAI-compatible
// endpoint.
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		base:         NewBaseProvider("openai", 3, 0),
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: "gpt-4o",
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error) {
	if p.client == nil {
		return "", errors.New("openai: API key not configured")
	}

	req := openai.ChatCompletionRequest{
		Model: p.defaultModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	if topP > 0 {
		req.TopP = float32(topP)
	}

	var resp openai.ChatCompletionResponse
	err := p.base.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, req)
		if callErr != nil {
			callErr = NewProviderError("openai", p.defaultModel, callErr)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
