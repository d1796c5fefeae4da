// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/readpath-cache/pkg/cache"
	"github.com/Sternrassler/readpath-cache/pkg/logging"
	"github.com/spf13/viper"
)

// Config is read once at startup.
type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	RedisURL             string        `mapstructure:"redis_url"`
	RedisHost            string        `mapstructure:"redis_host"`
	RedisPort            int           `mapstructure:"redis_port"`
	RedisPassword        string        `mapstructure:"redis_password"`
	RedisDB              int           `mapstructure:"redis_db"`
	RedisNamespace       string        `mapstructure:"redis_namespace"`
	RedisOpTimeout       time.Duration `mapstructure:"redis_op_timeout"`
	RedisConnectAttempts int           `mapstructure:"redis_connect_attempts"`

	CacheSweepInterval time.Duration `mapstructure:"cache_sweep_interval"`
	CacheRouteTTL      time.Duration `mapstructure:"cache_route_ttl"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset, and validates it.
func Load() (*Config, error) {
	v := viper.New()

	redisDefaults := cache.DefaultRedisConfig()
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_namespace", redisDefaults.Namespace)
	v.SetDefault("redis_op_timeout", redisDefaults.OpTimeout)
	v.SetDefault("redis_connect_attempts", redisDefaults.ConnectAttempts)
	v.SetDefault("cache_sweep_interval", cache.DefaultSweepInterval)
	v.SetDefault("cache_route_ttl", cache.TierRoute.TTL())
	v.SetDefault("shutdown_timeout", 15*time.Second)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.RedisOpTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_OP_TIMEOUT must be positive, got %s", c.RedisOpTimeout))
	}
	if c.RedisConnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("REDIS_CONNECT_ATTEMPTS must be at least 1, got %d", c.RedisConnectAttempts))
	}
	if c.CacheSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval))
	}
	if c.CacheRouteTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_ROUTE_TTL must be positive, got %s", c.CacheRouteTTL))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// RedisEnabled reports whether a distributed tier is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Redis returns the distributed tier configuration.
func (c *Config) Redis() cache.RedisConfig {
	rc := cache.DefaultRedisConfig()
	rc.URL = c.RedisURL
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	rc.Namespace = c.RedisNamespace
	rc.OpTimeout = c.RedisOpTimeout
	rc.ConnectAttempts = c.RedisConnectAttempts
	return rc
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.LogLevel),
		Pretty: c.LogPretty,
	}
}
