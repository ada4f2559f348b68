package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration. Values come from built-in
// defaults, then an optional TOML file, then environment variables.
type Config struct {
	LogLevel  string `toml:"-"`
	LogFormat string `toml:"-"`

	Analysis AnalysisConfig `toml:"analysis"`
	Columns  ColumnsConfig  `toml:"columns"`
	Chart    ChartConfig    `toml:"chart"`
	Insights InsightsConfig `toml:"insights"`
	Server   ServerConfig   `toml:"server"`
	Archive  ArchiveConfig  `toml:"archive"`
	Export   ExportConfig   `toml:"export"`

	// Path of the TOML file that was applied, empty when none was found.
	File string `toml:"-"`
}

type AnalysisConfig struct {
	// CoerceThreshold is the share of non-empty cells that must parse as
	// numbers for a column to be treated as numeric.
	CoerceThreshold float64 `toml:"coerce_threshold"`
	MaxConcurrency  int     `toml:"max_concurrency"`
	PreviewRows     int     `toml:"preview_rows"`
}

type ColumnsConfig struct {
	// Aliases maps an alternative header (matched case-insensitively) to a
	// canonical column name such as "Income".
	Aliases map[string]string `toml:"aliases"`
}

type ChartConfig struct {
	Width        int `toml:"width"`
	Height       int `toml:"height"`
	PieMaxSlices int `toml:"pie_max_slices"`
}

type InsightsConfig struct {
	Provider        string        `toml:"provider"` // anthropic or gemini
	Model           string        `toml:"model"`
	MaxTokens       int           `toml:"max_tokens"`
	Temperature     float64       `toml:"temperature"`
	TimeoutText     string        `toml:"timeout"` // Go duration, e.g. "45s"
	Timeout         time.Duration `toml:"-"`
	MaxRetries      int           `toml:"max_retries"`
	AnthropicAPIKey string        `toml:"-"`
	GeminiAPIKey    string        `toml:"-"`
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	DevMode   bool   `toml:"dev_mode"`
	MaxUpload int64  `toml:"max_upload_bytes"`
	KeepLast  int    `toml:"keep_last"`
}

type ArchiveConfig struct {
	Driver string `toml:"driver"` // "", "postgres" or "sqlite"
	DSN    string `toml:"dsn"`
}

type ExportConfig struct {
	OutputDir string `toml:"output_dir"`
	ChromeBin string `toml:"chrome_bin"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Analysis: AnalysisConfig{
			CoerceThreshold: 0.9,
			MaxConcurrency:  3,
			PreviewRows:     5,
		},
		Columns: ColumnsConfig{Aliases: map[string]string{}},
		Chart: ChartConfig{
			Width:        1200,
			Height:       700,
			PieMaxSlices: 10,
		},
		Insights: InsightsConfig{
			Provider:    "anthropic",
			MaxTokens:   700,
			Temperature: 0.5,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			MaxUpload: 10 << 20,
			KeepLast:  64,
		},
		Export: ExportConfig{OutputDir: "./output"},
	}
}

// Load reads the .env file and the optional TOML file and returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := Default()
	path := getEnv("UNDERWRITE_CONFIG", "underwrite.toml")
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.Insights.TimeoutText != "" {
		d, err := time.ParseDuration(c.Insights.TimeoutText)
		if err != nil {
			return fmt.Errorf("config: insights.timeout: %w", err)
		}
		c.Insights.Timeout = d
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.Analysis.CoerceThreshold = getEnvFloat("COERCE_THRESHOLD", c.Analysis.CoerceThreshold)
	c.Analysis.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", c.Analysis.MaxConcurrency)

	c.Chart.Width = getEnvInt("CHART_WIDTH", c.Chart.Width)
	c.Chart.Height = getEnvInt("CHART_HEIGHT", c.Chart.Height)
	c.Chart.PieMaxSlices = getEnvInt("PIE_MAX_SLICES", c.Chart.PieMaxSlices)

	c.Insights.Provider = getEnv("INSIGHT_PROVIDER", c.Insights.Provider)
	c.Insights.Model = getEnv("INSIGHT_MODEL", c.Insights.Model)
	c.Insights.MaxTokens = getEnvInt("INSIGHT_MAX_TOKENS", c.Insights.MaxTokens)
	c.Insights.Temperature = getEnvFloat("INSIGHT_TEMPERATURE", c.Insights.Temperature)
	c.Insights.Timeout = getEnvDuration("INSIGHT_TIMEOUT", c.Insights.Timeout)
	c.Insights.MaxRetries = getEnvInt("INSIGHT_MAX_RETRIES", c.Insights.MaxRetries)
	c.Insights.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", "")
	c.Insights.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")

	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)

	c.Archive.Driver = getEnv("ARCHIVE_DRIVER", c.Archive.Driver)
	c.Archive.DSN = getEnv("ARCHIVE_DSN", c.Archive.DSN)

	c.Export.OutputDir = getEnv("OUTPUT_DIR", c.Export.OutputDir)
	c.Export.ChromeBin = getEnv("CHROME_BIN", c.Export.ChromeBin)
}

func (c *Config) validate() error {
	if c.Analysis.CoerceThreshold <= 0 || c.Analysis.CoerceThreshold > 1 {
		return fmt.Errorf("config: coerce_threshold must be in (0, 1], got %g", c.Analysis.CoerceThreshold)
	}
	switch c.Archive.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown archive driver %q", c.Archive.Driver)
	}
	if c.Archive.Driver != "" && c.Archive.DSN == "" {
		return fmt.Errorf("config: archive driver %q needs ARCHIVE_DSN", c.Archive.Driver)
	}
	return nil
}

// InsightAPIKey returns the credential of the configured provider.
func (c *Config) InsightAPIKey() string {
	if strings.EqualFold(strings.TrimSpace(c.Insights.Provider), "gemini") {
		return c.Insights.GeminiAPIKey
	}
	return c.Insights.AnthropicAPIKey
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
