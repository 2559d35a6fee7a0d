package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads config.yaml (plus config.<env>.yaml) from the usual locations,
// applies environment overrides and defaults, and validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if home, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "storefront"))
	}
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"api.base_url", "api.base_path", "api.timeout",
		"auth.token_store", "auth.token_file",
		"cache.enabled", "cache.redis.address", "cache.redis.password",
		"logging.level", "logging.format",
	} {
		_ = v.BindEnv(key)
	}
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.API.BaseURL == "" {
		if val := os.Getenv("API_BASE_URL"); val != "" {
			cfg.API.BaseURL = val
		}
	}
	if cfg.Cache.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Cache.Redis.Address = val
		}
	}
	if cfg.Cache.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Cache.Redis.Password = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api"
	}
	if !strings.HasPrefix(cfg.API.BasePath, "/") {
		cfg.API.BasePath = "/" + cfg.API.BasePath
	}
	cfg.API.BasePath = strings.TrimSuffix(cfg.API.BasePath, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15000
	}
	if cfg.API.RateLimit > 0 && cfg.API.Burst == 0 {
		cfg.API.Burst = 1
	}

	cb := &cfg.API.CircuitBreaker
	if cb.MaxRequests == 0 {
		cb.MaxRequests = 5
	}
	if cb.Interval == 0 {
		cb.Interval = 30000
	}
	if cb.Timeout == 0 {
		cb.Timeout = 60000
	}
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 0.8
	}
	if cb.MinRequests == 0 {
		cb.MinRequests = 5
	}

	if cfg.Auth.TokenStore == "" {
		cfg.Auth.TokenStore = TokenStoreMemory
	}
	if cfg.Auth.TokenKey == "" {
		cfg.Auth.TokenKey = "authToken"
	}
	if cfg.Auth.TokenStore == TokenStoreFile && cfg.Auth.TokenFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.Auth.TokenFile = filepath.Join(dir, "storefront", "token.json")
		} else {
			cfg.Auth.TokenFile = ".storefront-token.json"
		}
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 300000
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "storefront:"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9102"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if cfg.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	switch cfg.Auth.TokenStore {
	case TokenStoreMemory, TokenStoreFile, TokenStoreRedis:
	default:
		return fmt.Errorf("auth.token_store must be one of memory, file, redis; got %q", cfg.Auth.TokenStore)
	}

	if cfg.RedisRequired() && cfg.Cache.Redis.Address == "" {
		return fmt.Errorf("cache.redis.address is required when redis is used")
	}

	if t := cfg.API.CircuitBreaker.FailureThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("api.circuit_breaker.failure_threshold must be in (0, 1]")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
