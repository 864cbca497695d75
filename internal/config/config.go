// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Comune    string          `mapstructure:"comune"`
	BaseURL   string          `mapstructure:"base_url"`
	Years     []int           `mapstructure:"years"`
	Workspace string          `mapstructure:"workspace"`
	InputDir  string          `mapstructure:"input_dir"`
	OutputDir string          `mapstructure:"output_dir"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Download  DownloadConfig  `mapstructure:"download"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Values    ValuesConfig    `mapstructure:"values"`
	LLM       LLMConfig       `mapstructure:"llm"`
	External  ExternalConfig  `mapstructure:"external"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig governs discovery behavior and politeness.
type CrawlerConfig struct {
	MaxPages       int     `mapstructure:"max_pages"`
	MaxPDFs        int     `mapstructure:"max_pdfs"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	DelaySeconds   float64 `mapstructure:"delay_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// DownloadConfig controls the PDF download stage.
type DownloadConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// ExtractConfig controls the text extraction stage.
type ExtractConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	PdftotextPath string `mapstructure:"pdftotext_path"`
}

// RetrievalConfig tunes index queries.
type RetrievalConfig struct {
	TopK     int     `mapstructure:"top_k"`
	MinScore float64 `mapstructure:"min_score"`
}

// ValuesConfig tunes heuristic value extraction. The window and snippet
// sizes differ between historic deployments, so they are knobs here.
type ValuesConfig struct {
	ContextWindow int `mapstructure:"context_window"`
	SnippetLen    int `mapstructure:"snippet_len"`
	TopK          int `mapstructure:"top_k"`
	// YearPenalty is the deduction for candidates whose value is itself
	// a plausible year; negative disables it.
	YearPenalty float64 `mapstructure:"year_penalty"`
}

// LLMConfig controls the optional LLM extraction collaborator.
type LLMConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxDocs             int     `mapstructure:"max_docs"`
}

// ExternalConfig toggles the stub statistical-agency sources.
type ExternalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COMUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace", "./workspace")
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("crawler.max_pages", 500)
	v.SetDefault("crawler.max_pdfs", 2000)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.delay_seconds", 1.0)
	v.SetDefault("crawler.user_agent", "comune-extractor/2.0 (Educational/Research)")
	v.SetDefault("crawler.timeout_seconds", 10)
	v.SetDefault("download.concurrency", 8)
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("download.max_retries", 2)
	v.SetDefault("download.backoff_initial_ms", 250)
	v.SetDefault("download.backoff_max_ms", 2000)
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("retrieval.min_score", 0.0)
	v.SetDefault("values.context_window", 300)
	v.SetDefault("values.snippet_len", 240)
	v.SetDefault("values.top_k", 3)
	v.SetDefault("values.year_penalty", 1.0)
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.confidence_threshold", 0.7)
	v.SetDefault("llm.max_docs", 3)
	v.SetDefault("external.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Comune == "" {
		return fmt.Errorf("comune must be set")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MaxPDFs <= 0 {
		return fmt.Errorf("crawler.max_pdfs must be > 0")
	}
	if c.Crawler.DelaySeconds < 0 {
		return fmt.Errorf("crawler.delay_seconds must be >= 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be > 0")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be > 0")
	}
	if c.Extract.Concurrency <= 0 {
		return fmt.Errorf("extract.concurrency must be > 0")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	if c.Values.ContextWindow <= 0 {
		return fmt.Errorf("values.context_window must be > 0")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key must be set when llm is enabled")
	}
	return nil
}

// CrawlDelay converts the configured minimum politeness delay to a duration.
func (c CrawlerConfig) CrawlDelay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// Timeout converts the crawler request timeout to a duration.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout converts the download request timeout to a duration.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
