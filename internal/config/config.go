// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and planning output, always absolute
	Port     int
	DevMode  bool
	LogLevel string

	Fetch   FetchConfig
	Market  MarketConfig
	GenAI   GenAIConfig
	Archive ArchiveConfig
}

// FetchConfig tunes the rate-limited fetch client.
type FetchConfig struct {
	BaseURL     string
	MaxRequests int
	Window      time.Duration
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration // 0 = uncapped
	CacheTTL    time.Duration
	CacheMax    int
}

// MarketConfig selects the market page the dashboard shows.
type MarketConfig struct {
	VsCurrency string
	Order      string
	PerPage    int
	Page       int
	RefreshSec int // background refresh interval in seconds
}

// GenAIConfig configures the planning pipeline's model access.
type GenAIConfig struct {
	APIKey          string
	CompletionModel string
	EmbeddingModel  string
}

// ArchiveConfig configures optional object-storage upload of planning
// output. Archiving stays local when Bucket is empty.
type ArchiveConfig struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	RetentionDays int // 0 keeps uploaded archives forever
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CONJURE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Fetch: FetchConfig{
			BaseURL:     getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			MaxRequests: getEnvAsInt("FETCH_MAX_REQUESTS", 30),
			Window:      time.Duration(getEnvAsInt("FETCH_WINDOW_SECONDS", 60)) * time.Second,
			MaxRetries:  getEnvAsInt("FETCH_MAX_RETRIES", 5),
			BaseDelay:   time.Duration(getEnvAsInt("FETCH_BASE_DELAY_SECONDS", 1)) * time.Second,
			MaxDelay:    time.Duration(getEnvAsInt("FETCH_MAX_DELAY_SECONDS", 0)) * time.Second,
			CacheTTL:    time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 60)) * time.Second,
			CacheMax:    getEnvAsInt("CACHE_MAX_ENTRIES", 128),
		},

		Market: MarketConfig{
			VsCurrency: getEnv("MARKET_VS_CURRENCY", "usd"),
			Order:      getEnv("MARKET_ORDER", "market_cap_desc"),
			PerPage:    getEnvAsInt("MARKET_PER_PAGE", 50),
			Page:       getEnvAsInt("MARKET_PAGE", 1),
			RefreshSec: getEnvAsInt("MARKET_REFRESH_SECONDS", 60),
		},

		GenAI: GenAIConfig{
			APIKey:          getEnv("GENAI_API_KEY", ""),
			CompletionModel: getEnv("GENAI_COMPLETION_MODEL", "gemini-2.0-flash"),
			EmbeddingModel:  getEnv("GENAI_EMBEDDING_MODEL", "gemini-embedding-001"),
		},

		Archive: ArchiveConfig{
			Bucket:        getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:      getEnv("ARCHIVE_ENDPOINT", ""),
			Region:        getEnv("ARCHIVE_REGION", "auto"),
			AccessKey:     getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey:     getEnv("ARCHIVE_SECRET_KEY", ""),
			RetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 0),
		},
	}

	if cfg.Fetch.MaxRequests < 1 {
		return nil, fmt.Errorf("FETCH_MAX_REQUESTS must be at least 1")
	}
	if cfg.Fetch.MaxRetries < 1 {
		return nil, fmt.Errorf("FETCH_MAX_RETRIES must be at least 1")
	}

	return cfg, nil
}

// ClientDataDBPath returns the path to the client data cache database.
func (c *Config) ClientDataDBPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// PlanningDBPath returns the path to the planning document database.
func (c *Config) PlanningDBPath() string {
	return filepath.Join(c.DataDir, "planning.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
