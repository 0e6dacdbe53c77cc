package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	ModelServerURL string   `mapstructure:"MODEL_SERVER_URL"`
	ModelTimeoutMS int      `mapstructure:"MODEL_TIMEOUT_MS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	MaxXrayMB      int64    `mapstructure:"MAX_XRAY_MB"`
	MaxMRIMB       int64    `mapstructure:"MAX_MRI_MB"`
	MaxReportMB    int64    `mapstructure:"MAX_REPORT_MB"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MODEL_TIMEOUT_MS", 8000)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 60)
	v.SetDefault("MAX_XRAY_MB", 30)
	v.SetDefault("MAX_MRI_MB", 50)
	v.SetDefault("MAX_REPORT_MB", 20)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("MODEL_SERVER_URL")
	v.BindEnv("MODEL_TIMEOUT_MS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")
	v.BindEnv("MAX_XRAY_MB")
	v.BindEnv("MAX_MRI_MB")
	v.BindEnv("MAX_REPORT_MB")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ModelTimeout returns the inference request timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run. The database, cache
// and model server are all optional: without them the service runs with
// in-process scoring only and no persistence.
func (c *Config) Validate() error {
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	if c.ModelTimeoutMS <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT_MS must be positive, got %d", c.ModelTimeoutMS)
	}
	for name, mb := range map[string]int64{
		"MAX_XRAY_MB":   c.MaxXrayMB,
		"MAX_MRI_MB":    c.MaxMRIMB,
		"MAX_REPORT_MB": c.MaxReportMB,
	} {
		if mb <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, mb)
		}
	}
	return nil
}
