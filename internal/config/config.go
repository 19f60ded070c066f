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
	Attom     AttomConfig     `yaml:"attom" mapstructure:"attom"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AttomConfig holds authoritative property-data API settings. Key is the
// only required credential in the whole application.
type AttomConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	V4URL   string `yaml:"v4_url" mapstructure:"v4_url"`
}

// SearchConfig holds web-search collaborator settings. The stage is
// skipped entirely when Key is empty.
type SearchConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// AnthropicConfig holds optional Claude settings for LLM-assisted
// comparable extraction. Disabled when Key is empty.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ScrapeConfig configures the site adapters.
type ScrapeConfig struct {
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	SitesFile       string `yaml:"sites_file" mapstructure:"sites_file"`
}

// GeoConfig configures county derivation.
type GeoConfig struct {
	CountyShapefile string `yaml:"county_shapefile" mapstructure:"county_shapefile"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	RunTimeoutSecs     int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	AreaTimeoutSecs    int `yaml:"area_timeout_secs" mapstructure:"area_timeout_secs"`
	MinComparables     int `yaml:"min_comparables" mapstructure:"min_comparables"`
	MaxComparables     int `yaml:"max_comparables" mapstructure:"max_comparables"`
	AdapterTimeoutSecs int `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
}

// StoreConfig configures the optional run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("VALUATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com/propertyapi/v1.0.0")
	v.SetDefault("attom.v4_url", "https://api.gateway.attomdata.com/v4")
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; ValuationBot/1.0)")
	v.SetDefault("scrape.fetch_timeout_secs", 20)
	v.SetDefault("pipeline.run_timeout_secs", 120)
	v.SetDefault("pipeline.area_timeout_secs", 10)
	v.SetDefault("pipeline.min_comparables", 3)
	v.SetDefault("pipeline.max_comparables", 5)
	v.SetDefault("pipeline.adapter_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "valuation.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
