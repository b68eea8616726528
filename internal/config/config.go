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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApolloConfig holds Apollo people-enrichment API settings.
type ApolloConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ReportConfig configures report generation behavior.
type ReportConfig struct {
	SectionConcurrency int `yaml:"section_concurrency" mapstructure:"section_concurrency"`
	SectionRPS         int `yaml:"section_rps" mapstructure:"section_rps"`
	GenerationRetries  int `yaml:"generation_retries" mapstructure:"generation_retries"`
	PollIntervalSecs   int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs    int `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("LEADREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("apollo.rps", 2.0)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("report.section_concurrency", 4)
	v.SetDefault("report.section_rps", 2)
	v.SetDefault("report.generation_retries", 2)
	v.SetDefault("report.poll_interval_secs", 2)
	v.SetDefault("report.poll_timeout_secs", 300)

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

// Validate checks that the configuration is usable for the given mode
// ("serve" or "run"). It collects every problem rather than stopping at
// the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "run":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	// sqlite falls back to a local database file; only postgres needs a URL.
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Apollo.Key == "" {
		problems = append(problems, "apollo.key is required")
	}
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	if c.Report.SectionConcurrency < 1 || c.Report.SectionConcurrency > 8 {
		problems = append(problems, "report.section_concurrency must be between 1 and 8")
	}
	if c.Report.PollIntervalSecs < 1 {
		problems = append(problems, "report.poll_interval_secs must be >= 1")
	}
	if c.Report.PollTimeoutSecs < c.Report.PollIntervalSecs {
		problems = append(problems, "report.poll_timeout_secs must be >= report.poll_interval_secs")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
