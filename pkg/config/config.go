package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bridge   BridgeConfig
	LLM      LLMConfig
	Vector   VectorConfig
	Pipeline PipelineConfig
	Reminder ReminderConfig
	Storage  StorageConfig
}

// ServerConfig holds the status API server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	DedupTTL time.Duration
}

// BridgeConfig holds messaging bridge configuration
type BridgeConfig struct {
	BaseURL       string
	Account       string
	PollInterval  time.Duration
	Timeout       time.Duration
	AnnounceStart bool
}

// LLMConfig holds inference server configuration
type LLMConfig struct {
	BaseURL        string
	ChatModel      string
	EmbedModel     string
	Timeout        time.Duration
	Temperature    float64
	RetryTemp      float64
	MaxContentLen  int
	ContextResults int
}

// VectorConfig holds vector index configuration
type VectorConfig struct {
	Backend      string // "pgvector" or "memory"
	Dimensions   int
	ChunkSize    int
	ChunkOverlap int
}

// PipelineConfig holds pipeline worker and retry configuration
type PipelineConfig struct {
	Workers           int
	QueueSize         int
	JobTimeout        time.Duration
	IndexTimeout      time.Duration
	Timezone          string
	ClassifyThreshold float64
	ExtractionRetries int
	IngestMaxAttempts int
	IngestBaseDelay   time.Duration
	IngestMaxDelay    time.Duration
	DispatchAttempts  int
	DispatchBaseDelay time.Duration
	DispatchMaxDelay  time.Duration
	IndexAttempts     int
	IndexBaseDelay    time.Duration
	ReindexInterval   time.Duration
	LedgerSweepEvery  time.Duration
	LedgerRetention   time.Duration
}

// ReminderConfig holds calendar reminder configuration
type ReminderConfig struct {
	LeadTime     time.Duration
	TravelBuffer time.Duration
	DefaultHour  int
}

// StorageConfig holds artifact archive configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "meetnote"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			DedupTTL: getEnvAsDuration("REDIS_DEDUP_TTL", "48h"),
		},
		Bridge: BridgeConfig{
			BaseURL:       getEnv("BRIDGE_URL", "http://localhost:8686"),
			Account:       getEnv("BRIDGE_ACCOUNT", ""),
			PollInterval:  getEnvAsDuration("BRIDGE_POLL_INTERVAL", "2s"),
			Timeout:       getEnvAsDuration("BRIDGE_TIMEOUT", "20s"),
			AnnounceStart: getEnvAsBool("BRIDGE_ANNOUNCE_START", true),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_URL", "http://localhost:11434"),
			ChatModel:      getEnv("LLM_CHAT_MODEL", "llama3.1"),
			EmbedModel:     getEnv("LLM_EMBED_MODEL", "nomic-embed-text"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", "30s"),
			Temperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			RetryTemp:      getEnvAsFloat("LLM_RETRY_TEMPERATURE", 0.1),
			MaxContentLen:  getEnvAsInt("LLM_MAX_CONTENT_LEN", 10000),
			ContextResults: getEnvAsInt("LLM_CONTEXT_RESULTS", 5),
		},
		Vector: VectorConfig{
			Backend:      getEnv("VECTOR_BACKEND", "pgvector"),
			Dimensions:   getEnvAsInt("VECTOR_DIMENSIONS", 768),
			ChunkSize:    getEnvAsInt("VECTOR_CHUNK_SIZE", 2000),
			ChunkOverlap: getEnvAsInt("VECTOR_CHUNK_OVERLAP", 200),
		},
		Pipeline: PipelineConfig{
			Workers:           getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:         getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
			JobTimeout:        getEnvAsDuration("PIPELINE_JOB_TIMEOUT", "5m"),
			IndexTimeout:      getEnvAsDuration("PIPELINE_INDEX_TIMEOUT", "2m"),
			Timezone:          getEnv("PIPELINE_TIMEZONE", "UTC"),
			ClassifyThreshold: getEnvAsFloat("CLASSIFY_THRESHOLD", 0.6),
			ExtractionRetries: getEnvAsInt("EXTRACTION_RETRIES", 2),
			IngestMaxAttempts: getEnvAsInt("INGEST_MAX_ATTEMPTS", 5),
			IngestBaseDelay:   getEnvAsDuration("INGEST_BASE_DELAY", "500ms"),
			IngestMaxDelay:    getEnvAsDuration("INGEST_MAX_DELAY", "30s"),
			DispatchAttempts:  getEnvAsInt("DISPATCH_ATTEMPTS", 4),
			DispatchBaseDelay: getEnvAsDuration("DISPATCH_BASE_DELAY", "1s"),
			DispatchMaxDelay:  getEnvAsDuration("DISPATCH_MAX_DELAY", "15s"),
			IndexAttempts:     getEnvAsInt("INDEX_ATTEMPTS", 3),
			IndexBaseDelay:    getEnvAsDuration("INDEX_BASE_DELAY", "2s"),
			ReindexInterval:   getEnvAsDuration("REINDEX_INTERVAL", "10m"),
			LedgerSweepEvery:  getEnvAsDuration("LEDGER_SWEEP_INTERVAL", "1h"),
			LedgerRetention:   getEnvAsDuration("LEDGER_RETENTION", "48h"),
		},
		Reminder: ReminderConfig{
			LeadTime:     getEnvAsDuration("REMINDER_LEAD_TIME", "15m"),
			TravelBuffer: getEnvAsDuration("REMINDER_TRAVEL_BUFFER", "30m"),
			DefaultHour:  getEnvAsInt("REMINDER_DEFAULT_HOUR", 17),
		},
		Storage: StorageConfig{
			Enabled:         getEnvAsBool("STORAGE_ENABLED", false),
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "meetnote-artifacts"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bridge.Account == "" {
		return fmt.Errorf("BRIDGE_ACCOUNT is required")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if c.Pipeline.JobTimeout <= 0 {
		return fmt.Errorf("PIPELINE_JOB_TIMEOUT must be positive")
	}
	if c.Pipeline.IndexTimeout <= 0 {
		return fmt.Errorf("PIPELINE_INDEX_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("PIPELINE_TIMEZONE is invalid: %w", err)
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Location resolves the configured timezone. Load validates it, so errors
// here only happen when the struct is built by hand.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
