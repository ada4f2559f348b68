package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-underwriter/llm"
	"property-underwriter/models"
	"property-underwriter/utils"
)

// InsightKind selects the question asked about a set of metrics.
type InsightKind string

const (
	InsightGeneral     InsightKind = "general"
	InsightImprovement InsightKind = "improvement"
	InsightRisk        InsightKind = "risk"
	InsightInvestment  InsightKind = "investment"
)

// InsightKinds lists the supported kinds in menu order.
var InsightKinds = []InsightKind{InsightGeneral, InsightImprovement, InsightRisk, InsightInvestment}

var insightAliases = map[string]InsightKind{
	"risk analysis":        InsightRisk,
	"investment potential": InsightInvestment,
}

// ParseInsightKind accepts a kind name or one of its long-form aliases.
func ParseInsightKind(s string) (InsightKind, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if key == "" {
		return InsightGeneral, nil
	}
	if k, ok := insightAliases[key]; ok {
		return k, nil
	}
	for _, k := range InsightKinds {
		if InsightKind(key) == k {
			return k, nil
		}
	}
	return "", &models.InvalidInputError{
		Field:  "insight_kind",
		Reason: fmt.Sprintf("unsupported insight type %q, choose general, improvement, risk or investment", s),
	}
}

const insightSystemPrompt = "You are a financial analysis assistant specializing in real estate underwriting."

var insightInstructions = map[InsightKind]string{
	InsightGeneral:     "Provide a general analysis of the financial health and performance of the property.",
	InsightImprovement: "Suggest ways to improve these metrics and optimize property performance.",
	InsightRisk:        "Identify potential risks associated with these metrics and propose mitigation strategies.",
	InsightInvestment:  "Evaluate the investment potential of this property based on these metrics.",
}

const insightContext = "Consider factors such as Net Operating Income (NOI), Cap Rate, " +
	"Cash-on-Cash Return, Debt Service Coverage Ratio (DSCR), Breakeven Occupancy, " +
	"Year Built, Number of Units, Market Rent, and market trends in your analysis. " +
	"Additionally, evaluate sensitivity to rent variations, expense changes, and " +
	"amenities such as parking and laundry income."

// BuildInsightPrompt renders the user prompt for kind. The output depends only
// on its arguments.
func BuildInsightPrompt(metrics models.MetricsResult, kind InsightKind) string {
	var b strings.Builder
	b.WriteString("Analyze the following financial metrics and property details:\n")
	for _, m := range metrics.Entries() {
		fmt.Fprintf(&b, "- %s: %s\n", m.Name, m.Display())
	}
	for _, f := range models.Fields {
		if f.Kind != models.Text {
			continue
		}
		if v := metrics.Inputs.TextValue(f.Name); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label, v)
		}
	}
	if len(metrics.Undefined) > 0 {
		fmt.Fprintf(&b, "Not computable (missing inputs, shown as 0): %s\n", strings.Join(metrics.Undefined, ", "))
	}

	b.WriteString("\n")
	instruction, ok := insightInstructions[kind]
	if !ok {
		instruction = "Provide useful insights related to these metrics."
	}
	b.WriteString(instruction)
	b.WriteString("\n")
	b.WriteString(insightContext)
	return b.String()
}

// InsightGenerator asks a text-generation provider to comment on metrics. A
// nil provider leaves insights unavailable without affecting anything else.
type InsightGenerator struct {
	logger   *utils.Logger
	provider llm.Provider
	timeout  time.Duration
	retry    utils.RetryConfig
}

// NewInsightGenerator wraps provider with a per-request timeout and retries on
// transient failures.
func NewInsightGenerator(logger *utils.Logger, provider llm.Provider, timeout time.Duration, maxRetries int) *InsightGenerator {
	return &InsightGenerator{
		logger:   logger,
		provider: provider,
		timeout:  timeout,
		retry: utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
			Retryable:   llm.Transient,
		},
	}
}

// Available reports whether a provider is configured.
func (g *InsightGenerator) Available() bool {
	return g != nil && g.provider != nil
}

// Generate returns the provider's commentary on metrics. Failures are
// *models.ExternalServiceError, or models.ErrInsightsUnavailable when no
// provider is configured.
func (g *InsightGenerator) Generate(ctx context.Context, metrics models.MetricsResult, kind InsightKind) (string, error) {
	if !g.Available() {
		return "", models.ErrInsightsUnavailable
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := BuildInsightPrompt(metrics, kind)
	g.logger.Info("[insights] requesting %s insights from %s", kind, g.provider.Name())

	var text string
	err := g.retry.Do(ctx, "insights "+string(kind), func(ctx context.Context) error {
		var err error
		text, err = g.provider.GenerateResponse(ctx, prompt, insightSystemPrompt)
		return err
	})
	if err != nil {
		g.logger.Error("[insights] %s: %v", g.provider.Name(), err)
		return "", &models.ExternalServiceError{Provider: g.provider.Name(), Op: "generate insights", Err: err}
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", &models.ExternalServiceError{Provider: g.provider.Name(), Op: "generate insights", Err: errors.New("empty response")}
	}
	return text, nil
}
