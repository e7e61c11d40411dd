// Package config loads application configuration from file, environment, and
// defaults via viper.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/dealgraph/dealgraph/pkg/contradiction"
	"github.com/dealgraph/dealgraph/pkg/search"
)

// Config holds all configuration for the application.
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	NLP            NLPConfig            `mapstructure:"nlp"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Reranker       RerankerConfig       `mapstructure:"reranker"`
	Sweep          contradiction.Config `mapstructure:"sweep"`
	Retrieval      search.Config        `mapstructure:"retrieval"`
	Checkpoint     CheckpointConfig     `mapstructure:"checkpoint"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph store configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NLPConfig holds language model configuration.
type NLPConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size"`
}

// RerankerConfig holds cross-encoder configuration.
type RerankerConfig struct {
	Provider       string `mapstructure:"provider"` // openai, local
	Model          string `mapstructure:"model"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// CheckpointConfig holds sweep checkpoint configuration.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// CircuitBreakerConfig holds circuit breaker configuration for model calls.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)
	return config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	viper.SetDefault("nlp.provider", "openai")
	viper.SetDefault("nlp.model", "gpt-4o-mini")
	viper.SetDefault("nlp.temperature", 0.0)
	viper.SetDefault("nlp.max_tokens", 2048)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.cache_size", 4096)

	viper.SetDefault("reranker.provider", "openai")
	viper.SetDefault("reranker.model", "gpt-4o-mini")
	viper.SetDefault("reranker.max_concurrency", 5)

	viper.SetDefault("sweep.group_cap", 100)
	viper.SetDefault("sweep.batch_size", 5)
	viper.SetDefault("sweep.max_concurrency", 5)
	viper.SetDefault("sweep.confidence_threshold", 0.70)

	viper.SetDefault("retrieval.k_candidates", 50)
	viper.SetDefault("retrieval.k_results", 10)
	viper.SetDefault("retrieval.graph_depth", 2)
	viper.SetDefault("retrieval.rerank_timeout", "3s")
	viper.SetDefault("retrieval.latency_warning", "3s")

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.NLP.APIKey == "" {
			config.NLP.APIKey = apiKey
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dir := os.Getenv("CHECKPOINT_DIR"); dir != "" {
		config.Checkpoint.Dir = dir
	}
}

// LoadFromFile reads a specific config file before applying defaults and
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Load()
}
