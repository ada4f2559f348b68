package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessager is the subset of the Anthropic client we use.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClientCreator builds the messages client; tests swap it for a mock.
type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	client := anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
	return &client.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

const defaultAnthropicModel = anthropic.ModelClaudeSonnet4_20250514

// AnthropicProvider calls the Claude messages API.
type AnthropicProvider struct {
	apiKey string
	opts   Options
}

var _ Provider = (*AnthropicProvider)(nil)

func NewAnthropicProvider(apiKey string, opts Options) *AnthropicProvider {
	return &AnthropicProvider{apiKey: apiKey, opts: opts}
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// GenerateResponse sends one user message and joins the text blocks of the reply.
func (p *AnthropicProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string) (string, error) {
	maxTokens := p.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 700
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(textOrDefault(p.opts.Model, string(defaultAnthropicModel))),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if p.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(p.opts.Temperature)
	}

	resp, err := newAnthropicClient(p.apiKey).New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", fmt.Errorf("claude: %w", errEmptyResponse)
	}
	return text, nil
}
