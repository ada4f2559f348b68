// Package llm adapts third-party text-generation APIs to a single Provider
// interface used by the insight generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"property-underwriter/models"
)

// Provider generates text for a prompt under a system instruction.
type Provider interface {
	Name() string
	GenerateResponse(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Options tune a provider call. Zero values select provider defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Supported provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// New returns the provider called name. An empty apiKey yields
// models.ErrInsightsUnavailable so callers can disable insights and carry on.
func New(name, apiKey string, opts Options) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, models.ErrInsightsUnavailable
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderAnthropic:
		return NewAnthropicProvider(apiKey, opts), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, opts), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}

// Transient reports whether err is worth retrying: rate limits, server-side
// failures and network timeouts.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, errEmptyResponse)
}

var errEmptyResponse = errors.New("empty response")

func textOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
