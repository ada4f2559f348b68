package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models we use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGeminiClient = func(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider calls Google's Gemini models through the GenAI SDK.
type GeminiProvider struct {
	apiKey string
	opts   Options
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey string, opts Options) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, opts: opts}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string) (string, error) {
	client, err := newGeminiClient(ctx, p.apiKey)
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if p.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.opts.Temperature))
	}
	if p.opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.opts.MaxTokens)
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	result, err := client.GenerateContent(ctx, textOrDefault(p.opts.Model, defaultGeminiModel), genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", errEmptyResponse)
	}
	return text, nil
}
