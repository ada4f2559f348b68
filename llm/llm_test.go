package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"

	"property-underwriter/models"
)

// mockMessager implements AnthropicMessager for testing.
type mockMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func TestNewWithoutKey(t *testing.T) {
	if _, err := New(ProviderAnthropic, "  ", Options{}); !errors.Is(err, models.ErrInsightsUnavailable) {
		t.Errorf("got %v, want ErrInsightsUnavailable", err)
	}
	if _, err := New("openai", "key", Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	p, err := New(ProviderGemini, "key", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderGemini {
		t.Errorf("Name: got %q, want %q", p.Name(), ProviderGemini)
	}
}

func TestAnthropicGenerateResponse(t *testing.T) {
	mock := &mockMessager{response: newMockMessage("  Strong coverage.  ")}
	defer withMockClient(mock)()

	p := NewAnthropicProvider("test-key", Options{MaxTokens: 300, Temperature: 0.5})
	got, err := p.GenerateResponse(context.Background(), "metrics", "be brief")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Strong coverage." {
		t.Errorf("text: got %q", got)
	}
	if mock.params.MaxTokens != 300 {
		t.Errorf("MaxTokens: got %d, want 300", mock.params.MaxTokens)
	}
	if mock.params.Model != defaultAnthropicModel {
		t.Errorf("Model: got %q, want %q", mock.params.Model, defaultAnthropicModel)
	}
	if len(mock.params.System) != 1 || mock.params.System[0].Text != "be brief" {
		t.Errorf("System: got %+v", mock.params.System)
	}
}

func TestAnthropicEmptyResponse(t *testing.T) {
	defer withMockClient(&mockMessager{response: newMockMessage("")})()

	_, err := NewAnthropicProvider("test-key", Options{}).GenerateResponse(context.Background(), "p", "")
	if !errors.Is(err, errEmptyResponse) {
		t.Fatalf("got %v, want empty response error", err)
	}
	if !Transient(err) {
		t.Error("empty responses should be retried")
	}
}

func TestAnthropicAPIError(t *testing.T) {
	defer withMockClient(&mockMessager{err: fmt.Errorf("boom")})()

	_, err := NewAnthropicProvider("test-key", Options{}).GenerateResponse(context.Background(), "p", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if Transient(err) {
		t.Error("plain errors are not transient")
	}
}

func apiError(status int) *anthropic.Error {
	return &anthropic.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", apiError(429), true},
		{"server error", fmt.Errorf("wrapped: %w", apiError(503)), true},
		{"bad request", apiError(400), false},
		{"unauthorized", apiError(401), false},
		{"network timeout", fmt.Errorf("dial: %w", timeoutErr{}), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := Transient(tt.err); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

type mockGenerator struct {
	model  string
	config *genai.GenerateContentConfig
	text   string
	err    error
}

func (m *mockGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model, m.config = model, config
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}}},
		},
	}, nil
}

func withMockGemini(mock *mockGenerator) func() {
	old := newGeminiClient
	newGeminiClient = func(context.Context, string) (contentGenerator, error) { return mock, nil }
	return func() { newGeminiClient = old }
}

func TestGeminiGenerateResponse(t *testing.T) {
	mock := &mockGenerator{text: "Solid deal."}
	defer withMockGemini(mock)()

	p := NewGeminiProvider("key", Options{MaxTokens: 500, Temperature: 0.2})
	got, err := p.GenerateResponse(context.Background(), "metrics", "system")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Solid deal." {
		t.Errorf("text: got %q", got)
	}
	if mock.model != defaultGeminiModel {
		t.Errorf("model: got %q, want %q", mock.model, defaultGeminiModel)
	}
	if mock.config.MaxOutputTokens != 500 || mock.config.SystemInstruction == nil {
		t.Errorf("config: got %+v", mock.config)
	}
}

func TestGeminiError(t *testing.T) {
	defer withMockGemini(&mockGenerator{err: errors.New("quota")})()
	if _, err := NewGeminiProvider("key", Options{Model: "gemini-pro"}).GenerateResponse(context.Background(), "p", ""); err == nil {
		t.Error("expected error")
	}
}
