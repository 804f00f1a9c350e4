package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Resolution ResolutionConfig `mapstructure:"resolution"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Reasoner   ReasonerConfig   `mapstructure:"reasoner"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Search     SearchConfig     `mapstructure:"search"`
	MarketSync MarketSyncConfig `mapstructure:"market_sync"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ResolutionSweep string `mapstructure:"resolution_sweep"`
	ListingRefresh  string `mapstructure:"listing_refresh"`
}

type ResolutionConfig struct {
	Threshold      int           `mapstructure:"threshold"`
	MinReliability float64       `mapstructure:"min_reliability"`
	MaxQueries     int           `mapstructure:"max_queries"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	Workers        int           `mapstructure:"workers"`
	QueryRate      float64       `mapstructure:"query_rate"`
	SweepLimit     int           `mapstructure:"sweep_limit"`
}

type WorkflowConfig struct {
	MaxToolCalls int `mapstructure:"max_tool_calls"`
}

type ReasonerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type ScoringConfig struct {
	WindowDays int `mapstructure:"window_days"`
}

type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MarketSyncConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BatchSize int           `mapstructure:"batch_size"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYBIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.resolution_sweep", "@every 30m")
	v.SetDefault("cron.listing_refresh", "@every 10m")

	v.SetDefault("resolution.threshold", 3)
	v.SetDefault("resolution.min_reliability", 0.7)
	v.SetDefault("resolution.max_queries", 10)
	v.SetDefault("resolution.query_timeout", "30s")
	v.SetDefault("resolution.workers", 4)
	v.SetDefault("resolution.query_rate", 2.0)
	v.SetDefault("resolution.sweep_limit", 50)

	v.SetDefault("workflow.max_tool_calls", 50)

	v.SetDefault("reasoner.base_url", "")
	v.SetDefault("reasoner.api_key", "")
	v.SetDefault("reasoner.model", "gemini-2.0-flash")
	v.SetDefault("reasoner.timeout", "60s")
	v.SetDefault("reasoner.max_attempts", 2)

	v.SetDefault("scoring.window_days", 30)

	v.SetDefault("search.base_url", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.timeout", "15s")

	v.SetDefault("market_sync.enabled", false)
	v.SetDefault("market_sync.base_url", "")
	v.SetDefault("market_sync.timeout", "10s")
	v.SetDefault("market_sync.batch_size", 100)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
