package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UNDERWRITE_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.CoerceThreshold != 0.9 {
		t.Errorf("CoerceThreshold: got %g, want 0.9", cfg.Analysis.CoerceThreshold)
	}
	if cfg.Chart.PieMaxSlices != 10 {
		t.Errorf("PieMaxSlices: got %d, want 10", cfg.Chart.PieMaxSlices)
	}
	if cfg.File != "" {
		t.Errorf("File: got %q, want empty", cfg.File)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "underwrite.toml")
	body := `
[analysis]
coerce_threshold = 0.75

[columns.aliases]
"Gross Income" = "Income"

[insights]
provider = "gemini"
timeout = "45s"

[chart]
pie_max_slices = 6
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UNDERWRITE_CONFIG", path)
	t.Setenv("PIE_MAX_SLICES", "8")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.CoerceThreshold != 0.75 {
		t.Errorf("CoerceThreshold: got %g, want 0.75", cfg.Analysis.CoerceThreshold)
	}
	if cfg.Columns.Aliases["Gross Income"] != "Income" {
		t.Errorf("alias missing: %v", cfg.Columns.Aliases)
	}
	if cfg.Insights.Timeout != 45*time.Second {
		t.Errorf("Timeout: got %v, want 45s", cfg.Insights.Timeout)
	}
	if cfg.Chart.PieMaxSlices != 8 {
		t.Errorf("env should override file: got %d, want 8", cfg.Chart.PieMaxSlices)
	}
	if cfg.InsightAPIKey() != "g-key" {
		t.Errorf("InsightAPIKey: got %q", cfg.InsightAPIKey())
	}
}

func TestLoadRejectsBadArchive(t *testing.T) {
	t.Setenv("UNDERWRITE_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv("ARCHIVE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown archive driver")
	}
}

func TestInsightAPIKeyIgnoresProviderCase(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"gemini", "g-key"},
		{"Gemini", "g-key"},
		{" GEMINI ", "g-key"},
		{"anthropic", "a-key"},
		{"", "a-key"},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Insights.Provider = tt.provider
		cfg.Insights.AnthropicAPIKey, cfg.Insights.GeminiAPIKey = "a-key", "g-key"
		if got := cfg.InsightAPIKey(); got != tt.want {
			t.Errorf("provider %q: got %q, want %q", tt.provider, got, tt.want)
		}
	}
}
