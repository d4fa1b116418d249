package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the knowmaps service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Foursquare FoursquareConfig `yaml:"foursquare"`
	Search     SearchConfig     `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"` // empty disables auth
}

// DatabaseConfig selects where interactions and preferences live.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds embedding cache persistence settings.
type CacheConfig struct {
	Backend  string `yaml:"backend"` // file, redis (default: file)
	Path     string `yaml:"path"`
	RedisKey string `yaml:"redis_key"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit int64  `yaml:"daily_token_limit"` // 0 = unlimited
	Action          string `yaml:"action"`            // "reject" | "warn" (default)
}

// EmbeddingConfig holds text embedding settings.
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"` // openai, hashing (default: hashing)
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	Budget     BudgetConfig `yaml:"budget"`
}

// ClassifierConfig holds intent classification settings.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// FoursquareConfig holds place provider settings.
type FoursquareConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	TimeoutSec      int     `yaml:"timeout_sec"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"`
	Burst           int     `yaml:"burst"`
	BreakerFailures uint32  `yaml:"breaker_failures"`
	BreakerOpenSec  int     `yaml:"breaker_open_sec"`
	RecommendLimit  int     `yaml:"recommend_limit"`
}

// SearchConfig holds orchestration tuning.
type SearchConfig struct {
	DefaultRadius      int           `yaml:"default_radius"`
	DefaultLimit       int           `yaml:"default_limit"`
	PrefetchWindow     int           `yaml:"prefetch_window"`
	DetailConcurrency  int           `yaml:"detail_concurrency"`
	DetailCacheSize    int           `yaml:"detail_cache_size"`
	ReselectDebounce   time.Duration `yaml:"reselect_debounce"`
	ProviderTimeoutSec int           `yaml:"provider_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env references in raw YAML, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "knowmaps:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/embedding_cache.json"
	}
	if c.Cache.RedisKey == "" {
		c.Cache.RedisKey = "embeddings"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hashing"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gpt-4o-mini"
	}
	if c.Foursquare.BaseURL == "" {
		c.Foursquare.BaseURL = "https://api.foursquare.com"
	}
	if c.Foursquare.TimeoutSec <= 0 {
		c.Foursquare.TimeoutSec = 10
	}
	if c.Foursquare.RequestsPerSec <= 0 {
		c.Foursquare.RequestsPerSec = 10
	}
	if c.Foursquare.Burst <= 0 {
		c.Foursquare.Burst = 5
	}
	if c.Foursquare.BreakerFailures == 0 {
		c.Foursquare.BreakerFailures = 5
	}
	if c.Foursquare.BreakerOpenSec <= 0 {
		c.Foursquare.BreakerOpenSec = 30
	}
	if c.Foursquare.RecommendLimit <= 0 {
		c.Foursquare.RecommendLimit = 50
	}
	if c.Search.DefaultRadius <= 0 {
		c.Search.DefaultRadius = 20000
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 50
	}
	if c.Search.PrefetchWindow <= 0 {
		c.Search.PrefetchWindow = 8
	}
	if c.Search.DetailConcurrency <= 0 {
		c.Search.DetailConcurrency = 4
	}
	if c.Search.DetailCacheSize <= 0 {
		c.Search.DetailCacheSize = 512
	}
	if c.Search.ReselectDebounce <= 0 {
		c.Search.ReselectDebounce = 200 * time.Millisecond
	}
	if c.Search.ProviderTimeoutSec <= 0 {
		c.Search.ProviderTimeoutSec = 15
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("database.driver must be \"memory\" or \"redis\", got %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "file":
	case "redis":
		if c.Database.Driver != "redis" {
			return fmt.Errorf("cache.backend \"redis\" requires database.driver \"redis\"")
		}
	default:
		return fmt.Errorf("cache.backend must be \"file\" or \"redis\", got %q", c.Cache.Backend)
	}
	switch c.Embedding.Provider {
	case "hashing":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"hashing\", got %q", c.Embedding.Provider)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if c.Classifier.Enabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required when the classifier is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
