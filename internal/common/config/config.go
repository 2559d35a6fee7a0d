package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Content ContentConfig `mapstructure:"content"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig describes the REST backend and client-side resilience settings.
type APIConfig struct {
	BaseURL        string               `mapstructure:"base_url"`
	BasePath       string               `mapstructure:"base_path"`
	Timeout        int                  `mapstructure:"timeout"`    // milliseconds
	RateLimit      float64              `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst          int                  `mapstructure:"burst"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // milliseconds
	Timeout          int     `mapstructure:"timeout"`  // milliseconds
	FailureThreshold float64 `mapstructure:"failure_threshold"`
	MinRequests      uint32  `mapstructure:"min_requests"`
}

// Token store kinds.
const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

type AuthConfig struct {
	TokenStore string `mapstructure:"token_store"`
	TokenFile  string `mapstructure:"token_file"`
	TokenKey   string `mapstructure:"token_key"`
}

type CacheConfig struct {
	Enabled   bool        `mapstructure:"enabled"`
	Redis     RedisConfig `mapstructure:"redis"`
	TTL       int         `mapstructure:"ttl"` // milliseconds
	KeyPrefix string      `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ContentConfig controls the combined content provider.
type ContentConfig struct {
	Lazy                   bool `mapstructure:"lazy"`
	RestoreOnDeleteFailure bool `mapstructure:"restore_on_delete_failure"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RedisRequired reports whether any configured component needs Redis.
func (c *Config) RedisRequired() bool {
	return c.Cache.Enabled || c.Auth.TokenStore == TokenStoreRedis
}

// Endpoint joins the base URL and base path.
func (a APIConfig) Endpoint() string {
	return fmt.Sprintf("%s%s", a.BaseURL, a.BasePath)
}
