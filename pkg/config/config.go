package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Search     SearchConfig
	Session    SessionConfig
	Unanswered UnansweredConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	ProxyHeader    string
	AllowedOrigins []string
	AdminToken     string
	IsDevelopment  bool
}

type StorageConfig struct {
	Driver    string
	TimeoutMs int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type SearchConfig struct {
	DefaultLimit    int
	MaxLimit        int
	MaxQueryLength  int
	SuggestionLimit int
}

type SessionConfig struct {
	DurationMinutes    int
	MaxDurationMinutes int
	SlidingExpiry      bool
	SweepIntervalSec   int
}

type UnansweredConfig struct {
	ScanWindow          int
	SimilarityThreshold float64
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads path when set, otherwise searches the default locations.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/chatbot")
	}

	viper.SetEnvPrefix("CHATBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Validate()

	return &config, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			BodyLimit:    1048576,
		},
		Storage:    StorageConfig{Driver: "sqlite", TimeoutMs: 3000},
		SQLite:     SQLiteConfig{Path: "./data/chatbot.db"},
		Redis:      RedisConfig{Host: "localhost", Port: 6379, TTLSec: 300},
		LLM:        LLMConfig{Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 512, TimeoutSec: 20},
		Search:     SearchConfig{DefaultLimit: 5, MaxLimit: 20, MaxQueryLength: 1000, SuggestionLimit: 5},
		Session:    SessionConfig{DurationMinutes: 120, MaxDurationMinutes: 1440, SweepIntervalSec: 300},
		Unanswered: UnansweredConfig{ScanWindow: 50, SimilarityThreshold: 0.75},
		RateLimit:  RateLimitConfig{RequestsPerMinute: 60},
		Logging:    LoggingConfig{Level: "info", Format: "json", OutputPath: "stdout"},
	}
}

// Validate replaces non-positive limits and durations with their defaults.
func (c *Config) Validate() {
	d := Default()

	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "memory" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.TimeoutMs <= 0 {
		c.Storage.TimeoutMs = d.Storage.TimeoutMs
	}
	if c.Redis.TTLSec <= 0 {
		c.Redis.TTLSec = d.Redis.TTLSec
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = d.LLM.TimeoutSec
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = d.Search.DefaultLimit
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		c.Search.MaxLimit = max(d.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = d.Search.MaxQueryLength
	}
	if c.Search.SuggestionLimit <= 0 {
		c.Search.SuggestionLimit = d.Search.SuggestionLimit
	}
	if c.Session.DurationMinutes <= 0 {
		c.Session.DurationMinutes = d.Session.DurationMinutes
	}
	if c.Session.MaxDurationMinutes < c.Session.DurationMinutes {
		c.Session.MaxDurationMinutes = max(d.Session.MaxDurationMinutes, c.Session.DurationMinutes)
	}
	if c.Session.SweepIntervalSec < 0 {
		c.Session.SweepIntervalSec = 0
	}
	if c.Unanswered.ScanWindow <= 0 {
		c.Unanswered.ScanWindow = d.Unanswered.ScanWindow
	}
	if c.Unanswered.SimilarityThreshold <= 0 || c.Unanswered.SimilarityThreshold > 1 {
		c.Unanswered.SimilarityThreshold = d.Unanswered.SimilarityThreshold
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = d.RateLimit.RequestsPerMinute
	}
}

func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.TimeoutMs) * time.Millisecond
}

func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Session.DurationMinutes) * time.Minute
}

func (c *Config) MaxSessionDuration() time.Duration {
	return time.Duration(c.Session.MaxDurationMinutes) * time.Minute
}

func setDefaults() {
	d := Default()

	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	viper.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	viper.SetDefault("server.bodyLimit", d.Server.BodyLimit)
	viper.SetDefault("server.proxyHeader", "")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.adminToken", "")
	viper.SetDefault("server.isDevelopment", false)

	viper.SetDefault("storage.driver", d.Storage.Driver)
	viper.SetDefault("storage.timeoutMs", d.Storage.TimeoutMs)

	viper.SetDefault("sqlite.path", d.SQLite.Path)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", d.Redis.Host)
	viper.SetDefault("redis.port", d.Redis.Port)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", d.Redis.TTLSec)

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.temperature", d.LLM.Temperature)
	viper.SetDefault("llm.maxTokens", d.LLM.MaxTokens)
	viper.SetDefault("llm.timeoutSec", d.LLM.TimeoutSec)

	viper.SetDefault("search.defaultLimit", d.Search.DefaultLimit)
	viper.SetDefault("search.maxLimit", d.Search.MaxLimit)
	viper.SetDefault("search.maxQueryLength", d.Search.MaxQueryLength)
	viper.SetDefault("search.suggestionLimit", d.Search.SuggestionLimit)

	viper.SetDefault("session.durationMinutes", d.Session.DurationMinutes)
	viper.SetDefault("session.maxDurationMinutes", d.Session.MaxDurationMinutes)
	viper.SetDefault("session.slidingExpiry", false)
	viper.SetDefault("session.sweepIntervalSec", d.Session.SweepIntervalSec)

	viper.SetDefault("unanswered.scanWindow", d.Unanswered.ScanWindow)
	viper.SetDefault("unanswered.similarityThreshold", d.Unanswered.SimilarityThreshold)

	viper.SetDefault("ratelimit.requestsPerMinute", d.RateLimit.RequestsPerMinute)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("logging.outputPath", d.Logging.OutputPath)
}
