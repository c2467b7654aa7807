package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	FRED     FREDConfig     `yaml:"fred" mapstructure:"fred"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the Postgres backend.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// FREDConfig holds FRED API credentials and client tuning.
type FREDConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// SyncConfig configures the series sync engine.
type SyncConfig struct {
	Workers          int    `yaml:"workers" mapstructure:"workers"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	StartDate        string `yaml:"start_date" mapstructure:"start_date"`
	RetryAttempts    int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RedisConfig configures the optional overview cache. An empty address
// falls back to the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchTimeout returns the per-series upstream call budget.
func (c SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// BreakerReset returns the circuit breaker cool-off period.
func (c SyncConfig) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSecs) * time.Second
}

// Timeout returns the FRED HTTP client timeout.
func (c FREDConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// TTL returns the overview cache lifetime.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// Validate checks that the config is usable for the given mode
// (serve, sync, migrate, or status).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.FRED.APIKey == "" {
			problems = append(problems, "fred.api_key is required")
		}
	case "sync":
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required")
		}
		if c.FRED.APIKey == "" {
			problems = append(problems, "fred.api_key is required")
		}
		if c.Sync.Workers < 1 || c.Sync.Workers > 16 {
			problems = append(problems, "sync.workers must be between 1 and 16")
		}
	case "migrate", "status":
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOANMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default empty so AutomaticEnv can resolve them:
	// viper only consults the environment for keys it already knows about.
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org")
	v.SetDefault("fred.timeout_secs", 30)
	v.SetDefault("fred.rate_per_sec", 2.0)
	v.SetDefault("fred.burst", 4)
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.fetch_timeout_secs", 60)
	v.SetDefault("sync.start_date", "1980-01-01")
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.breaker_threshold", 5)
	v.SetDefault("sync.breaker_reset_secs", 30)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_secs", 300)
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
