package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Links     LinksConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type StorageConfig struct {
	Driver string
	Key    string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type LinksConfig struct {
	MaxLinks        int
	DefaultValidity int // минуты
	CodeLength      int
}

type LogConfig struct {
	Endpoint string // пустой endpoint отключает удалённое логирование
	Stack    string
}

type AuthConfig struct {
	BaseURL  string
	Required bool
	APIKeys  map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Load reads .env from the working directory (if present) and the process environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")

	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.Key = v.GetString("STORAGE_KEY")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Links.MaxLinks = v.GetInt("MAX_LINKS")
	cfg.Links.DefaultValidity = v.GetInt("DEFAULT_VALIDITY_MINUTES")
	cfg.Links.CodeLength = v.GetInt("SHORTCODE_LENGTH")

	cfg.Log.Endpoint = v.GetString("LOG_ENDPOINT")
	cfg.Log.Stack = v.GetString("LOG_STACK")

	cfg.Auth.BaseURL = strings.TrimRight(v.GetString("AUTH_BASE_URL"), "/")
	cfg.Auth.Required = v.GetBool("AUTH_REQUIRED")
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("STORAGE_DRIVER", StorageMemory)
	v.SetDefault("STORAGE_KEY", "shortened_urls")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("MAX_LINKS", 5)
	v.SetDefault("DEFAULT_VALIDITY_MINUTES", 30)
	v.SetDefault("SHORTCODE_LENGTH", 6)
	v.SetDefault("LOG_STACK", "backend")
	v.SetDefault("AUTH_REQUIRED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres, StorageRedis:
	default:
		return errors.New("unknown STORAGE_DRIVER: " + c.Storage.Driver)
	}

	if c.Links.MaxLinks <= 0 {
		return errors.New("MAX_LINKS must be positive")
	}
	if c.Links.DefaultValidity <= 0 {
		return errors.New("DEFAULT_VALIDITY_MINUTES must be positive")
	}
	if c.Links.CodeLength <= 0 {
		return errors.New("SHORTCODE_LENGTH must be positive")
	}
	if c.Auth.Required && c.Auth.BaseURL == "" && len(c.Auth.APIKeys) == 0 {
		return errors.New("AUTH_REQUIRED needs AUTH_BASE_URL or API_KEYS")
	}

	return nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
