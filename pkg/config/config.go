package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph store configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Model (extractor LLM) configuration
	Model ModelConfig `mapstructure:"model"`

	// Scraper configuration
	Scraper ScraperConfig `mapstructure:"scraper"`

	// Healing loop configuration
	Heal HealConfig `mapstructure:"heal"`

	// Job queue configuration
	Queue QueueConfig `mapstructure:"queue"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// GraphConfig holds the bolt-protocol graph store configuration
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ModelConfig holds the extractor LLM configuration
type ModelConfig struct {
	Name        string  `mapstructure:"name"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// MaxChars caps the text sent per extraction call.
	MaxChars int `mapstructure:"max_chars"`
	// TimeoutSeconds is the per-call extraction deadline.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ScraperConfig holds scrape layer configuration
type ScraperConfig struct {
	// APIKey enables the premium vendor provider when set.
	APIKey string `mapstructure:"api_key"`
	// BaseURL points at the premium vendor API.
	BaseURL string `mapstructure:"base_url"`
	// TimeoutSeconds is the per-call scrape deadline.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Retry policy for transient vendor errors.
	MaxRetries       int     `mapstructure:"max_retries"`
	RetryBaseSeconds int     `mapstructure:"retry_base_seconds"`
	RetryFactor      float64 `mapstructure:"retry_factor"`
	RetryCapSeconds  int     `mapstructure:"retry_cap_seconds"`
}

// HealConfig holds healing loop configuration
type HealConfig struct {
	DaysThreshold int `mapstructure:"days_threshold"`
	IntervalHours int `mapstructure:"interval_hours"`
	Parallelism   int `mapstructure:"parallelism"`
	// MinDelaySeconds spaces scrapes within one cycle.
	MinDelaySeconds int `mapstructure:"min_delay_seconds"`
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	// BrokerURL is a redis URL; empty means synchronous ingest.
	BrokerURL string `mapstructure:"broker_url"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// Validate checks that the required settings are present. Missing required
// keys are fatal at startup.
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return NewConfigError("GRAPH_URI", "graph URI is required")
	}
	if c.Graph.Password == "" {
		return NewConfigError("GRAPH_PASSWORD", "graph password is required")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Graph defaults
	viper.SetDefault("graph.uri", "")
	viper.SetDefault("graph.username", "neo4j")
	viper.SetDefault("graph.password", "")
	viper.SetDefault("graph.database", "neo4j")

	// Model defaults
	viper.SetDefault("model.name", "llama3")
	viper.SetDefault("model.base_url", "")
	viper.SetDefault("model.temperature", 0.1)
	viper.SetDefault("model.max_tokens", 2048)
	viper.SetDefault("model.max_chars", 12000)
	viper.SetDefault("model.timeout_seconds", 120)

	// Scraper defaults
	viper.SetDefault("scraper.timeout_seconds", 60)
	viper.SetDefault("scraper.max_retries", 3)
	viper.SetDefault("scraper.retry_base_seconds", 1)
	viper.SetDefault("scraper.retry_factor", 2.0)
	viper.SetDefault("scraper.retry_cap_seconds", 30)

	// Healing defaults
	viper.SetDefault("heal.days_threshold", 7)
	viper.SetDefault("heal.interval_hours", 6)
	viper.SetDefault("heal.parallelism", 1)
	viper.SetDefault("heal.min_delay_seconds", 1)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 120)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Graph credentials
	if uri := os.Getenv("GRAPH_URI"); uri != "" {
		config.Graph.URI = uri
	}
	if user := os.Getenv("GRAPH_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("GRAPH_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}
	if db := os.Getenv("GRAPH_DATABASE"); db != "" {
		config.Graph.Database = db
	}

	// Model settings
	if name := os.Getenv("MODEL_NAME"); name != "" {
		config.Model.Name = name
	}
	if baseURL := os.Getenv("MODEL_BASE_URL"); baseURL != "" {
		config.Model.BaseURL = baseURL
	}
	if apiKey := os.Getenv("MODEL_API_KEY"); apiKey != "" {
		config.Model.APIKey = apiKey
	}

	// Scraper settings
	if apiKey := os.Getenv("SCRAPER_API_KEY"); apiKey != "" {
		config.Scraper.APIKey = apiKey
	}

	// Job queue
	if brokerURL := os.Getenv("JOB_BROKER_URL"); brokerURL != "" {
		config.Queue.BrokerURL = brokerURL
	}

	// Healing loop
	if v := os.Getenv("HEAL_DAYS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Heal.DaysThreshold = n
		}
	}
	if v := os.Getenv("HEAL_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Heal.IntervalHours = n
		}
	}
	if v := os.Getenv("HEAL_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Heal.Parallelism = n
		}
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.Port = n
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
