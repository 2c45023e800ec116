package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider satisfies agent.LanguageModel over Claude models.
// Thread-safe for concurrent use; each Complete call is independent.
type AnthropicProvider struct {
	base         BaseProvider
	client       anthropic.Client
	defaultModel string
}

type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		base:         NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(options...),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete sends a single-turn completion request and returns the
// concatenated text of every text content block in the response.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(temperature),
	}
	if topP > 0 {
		params.TopP = anthropic.Float(topP)
	}

	var message *anthropic.Message
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		var callErr error
		message, callErr = p.client.Messages.New(ctx, params)
		if callErr != nil {
			callErr = p.wrapError(callErr)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (p *AnthropicProvider) isRetryableError(err error) bool {
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}
	return IsRetryable(err)
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := (&ProviderError{Provider: "anthropic", Model: p.defaultModel, Cause: err, Reason: FailoverUnknown}).WithStatus(apiErr.StatusCode)
		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil && payload.Error.Message != "" {
				providerErr.Message = payload.Error.Message
			}
			if payload.RequestID != "" {
				providerErr.RequestID = payload.RequestID
			}
		}
		if providerErr.Message == "" {
			providerErr.Message = "anthropic request failed"
		}
		return providerErr
	}

	return NewProviderError("anthropic", p.defaultModel, fmt.Errorf("anthropic: %w", err))
}
