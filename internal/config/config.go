// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Notion          NotionConfig          `yaml:"notion" mapstructure:"notion"`
	Arxiv           ArxivConfig           `yaml:"arxiv" mapstructure:"arxiv"`
	SemanticScholar SemanticScholarConfig `yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	OpenAlex        OpenAlexConfig        `yaml:"openalex" mapstructure:"openalex"`
	Enrich          EnrichConfig          `yaml:"enrich" mapstructure:"enrich"`
	Score           ScoreConfig           `yaml:"score" mapstructure:"score"`
	LLM             LLMConfig             `yaml:"llm" mapstructure:"llm"`
	Backfill        BackfillConfig        `yaml:"backfill" mapstructure:"backfill"`
	Store           StoreConfig           `yaml:"store" mapstructure:"store"`
	Log             LogConfig             `yaml:"log" mapstructure:"log"`
	MaxPapers       int                   `yaml:"max_papers" mapstructure:"max_papers"`
}

// NotionConfig holds the Notion integration token and paper database id.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ArxivConfig configures the arXiv crawl.
type ArxivConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
	DaysBack   int `yaml:"days_back" mapstructure:"days_back"`
	PageSize   int `yaml:"page_size" mapstructure:"page_size"`
}

// SemanticScholarConfig configures the Semantic Scholar crawl.
type SemanticScholarConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	MaxResults         int    `yaml:"max_results" mapstructure:"max_results"`
	APIKey             string `yaml:"api_key" mapstructure:"api_key"`
	EnrichInstitutions bool   `yaml:"enrich_institutions" mapstructure:"enrich_institutions"`
}

// OpenAlexConfig configures venue impact lookups.
type OpenAlexConfig struct {
	Mailto string `yaml:"mailto" mapstructure:"mailto"`
}

// EnrichConfig toggles the enrichment signals.
type EnrichConfig struct {
	Citations bool `yaml:"citations" mapstructure:"citations"`
	Impact    bool `yaml:"impact" mapstructure:"impact"`
}

// ScoreConfig configures rule-based recommendation scoring.
type ScoreConfig struct {
	Enabled bool               `yaml:"enabled" mapstructure:"enabled"`
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

// LLMConfig configures the LLM reviewer.
type LLMConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxPapers         int     `yaml:"max_papers" mapstructure:"max_papers"`
	IntervalMs        int     `yaml:"interval_ms" mapstructure:"interval_ms"`
	ExtraInstructions string  `yaml:"extra_instructions" mapstructure:"extra_instructions"`
	UseFullPDF        bool    `yaml:"use_full_pdf" mapstructure:"use_full_pdf"`
	PDFMaxPages       int     `yaml:"pdf_max_pages" mapstructure:"pdf_max_pages"`
	PDFMaxChars       int     `yaml:"pdf_max_chars" mapstructure:"pdf_max_chars"`
}

// BackfillConfig configures the missing-field reconciliation pass.
type BackfillConfig struct {
	Enabled        bool                `yaml:"enabled" mapstructure:"enabled"`
	MaxScan        int                 `yaml:"max_scan" mapstructure:"max_scan"`
	PDFURL         BackfillFieldConfig `yaml:"pdf_url" mapstructure:"pdf_url"`
	Citations      BackfillFieldConfig `yaml:"citations" mapstructure:"citations"`
	Institutions   BackfillFieldConfig `yaml:"institutions" mapstructure:"institutions"`
	RecommendScore BackfillFieldConfig `yaml:"recommend_score" mapstructure:"recommend_score"`
}

// BackfillFieldConfig caps repair work for one field.
type BackfillFieldConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	MaxPapers int  `yaml:"max_papers" mapstructure:"max_papers"`
}

// StoreConfig configures the local run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAPERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns a Config populated with default settings only.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults registers every known key. Credentials default to empty so
// environment-only values are still visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("semantic_scholar.api_key", "")
	v.SetDefault("openalex.mailto", "")
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("backfill.enabled", false)
	v.SetDefault("backfill.pdf_url.enabled", false)
	v.SetDefault("backfill.citations.enabled", false)
	v.SetDefault("backfill.institutions.enabled", false)
	v.SetDefault("backfill.recommend_score.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("max_papers", 999)
	v.SetDefault("arxiv.max_results", 200)
	v.SetDefault("arxiv.days_back", 3)
	v.SetDefault("arxiv.page_size", 100)
	v.SetDefault("semantic_scholar.enabled", true)
	v.SetDefault("semantic_scholar.max_results", 50)
	v.SetDefault("semantic_scholar.enrich_institutions", true)
	v.SetDefault("enrich.citations", true)
	v.SetDefault("enrich.impact", false)
	v.SetDefault("score.enabled", true)
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.max_papers", 50)
	v.SetDefault("llm.interval_ms", 400)
	v.SetDefault("llm.use_full_pdf", true)
	v.SetDefault("llm.pdf_max_pages", 30)
	v.SetDefault("llm.pdf_max_chars", 50000)
	v.SetDefault("backfill.max_scan", 200)
	v.SetDefault("backfill.pdf_url.max_papers", 10)
	v.SetDefault("backfill.citations.max_papers", 10)
	v.SetDefault("backfill.institutions.max_papers", 10)
	v.SetDefault("backfill.recommend_score.max_papers", 10)
	v.SetDefault("store.path", "paperflow.db")
}

// Validate checks that the settings required by every command are present.
func (c *Config) Validate() error {
	if c.Notion.Token == "" {
		return eris.New("config: notion.token is required")
	}
	if c.Notion.DatabaseID == "" {
		return eris.New("config: notion.database_id is required")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return eris.New("config: llm.api_key is required when llm scoring is enabled")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
