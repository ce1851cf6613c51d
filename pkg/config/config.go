package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FailurePolicy controls how the metrics aggregator handles a failed metric fetch.
type FailurePolicy string

const (
	// PolicyDilute substitutes a neutral metric (normalized 50) for failures.
	PolicyDilute FailurePolicy = "dilute"
	// PolicyStrict fails the whole snapshot on any metric failure.
	PolicyStrict FailurePolicy = "strict"
	// PolicyExclude drops failed metrics and renormalizes the remaining weights.
	PolicyExclude FailurePolicy = "exclude"
)

// Config holds all configuration for the application
// SSOT: every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Finnhub      FinnhubConfig
	AlphaVantage AlphaVantageConfig
	SerpAPI      SerpAPIConfig
	NewsAPI      NewsAPIConfig
	SendGrid     SendGridConfig

	// Metrics pipeline
	Metrics MetricsConfig

	// Newsletter
	Newsletter NewsletterConfig

	// Cron / admin secrets
	CronSecret  string
	AdminSecret string

	// Site URLs (used in emails and confirm redirects)
	FrontendURL string
	APIBaseURL  string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey  string
	BaseURL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// SerpAPIConfig holds SerpAPI (Google Trends) configuration
type SerpAPIConfig struct {
	APIKey  string
	BaseURL string
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey  string
	BaseURL string
}

// SendGridConfig holds transactional email configuration
type SendGridConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
}

// MetricsConfig holds aggregation pipeline configuration
type MetricsConfig struct {
	FailurePolicy FailurePolicy
	FetchTimeout  time.Duration
	CacheTTL      time.Duration
}

// NewsletterConfig holds batch send configuration
type NewsletterConfig struct {
	BatchSize       int
	InterBatchDelay time.Duration
}

// Load reads configuration from environment variables
// SSOT: this is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  getEnv("ALPHA_VANTAGE_API_KEY", ""),
			BaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		},
		SerpAPI: SerpAPIConfig{
			APIKey:  getEnv("SERPAPI_KEY", ""),
			BaseURL: getEnv("SERPAPI_BASE_URL", "https://serpapi.com/search.json"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey:  getEnv("NEWS_API_KEY", ""),
			BaseURL: getEnv("NEWS_API_BASE_URL", "https://newsapi.org/v2"),
		},
		SendGrid: SendGridConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			BaseURL:   getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com/v3"),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", "daily@aibubbleanalytics.com"),
			FromName:  getEnv("SENDGRID_FROM_NAME", "AI Bubble Analytics"),
		},

		Metrics: MetricsConfig{
			FailurePolicy: FailurePolicy(getEnv("METRICS_FAILURE_POLICY", string(PolicyDilute))),
			FetchTimeout:  getEnvAsDuration("METRICS_FETCH_TIMEOUT", "15s"),
			CacheTTL:      getEnvAsDuration("METRICS_CACHE_TTL", "5m"),
		},

		Newsletter: NewsletterConfig{
			BatchSize:       getEnvAsInt("NEWSLETTER_BATCH_SIZE", 1000),
			InterBatchDelay: getEnvAsDuration("NEWSLETTER_BATCH_DELAY", "100ms"),
		},

		CronSecret:  getEnv("CRON_SECRET", "development-secret"),
		AdminSecret: getEnv("ADMIN_SECRET", ""),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8080"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Metrics.FailurePolicy {
	case PolicyDilute, PolicyStrict, PolicyExclude:
	default:
		return fmt.Errorf("METRICS_FAILURE_POLICY must be one of: dilute, strict, exclude")
	}

	if c.Newsletter.BatchSize < 1 || c.Newsletter.BatchSize > 1000 {
		return fmt.Errorf("NEWSLETTER_BATCH_SIZE must be between 1 and 1000 (provider limit)")
	}

	// The fallback secret only guards local development.
	if c.IsProduction() && (c.CronSecret == "" || c.CronSecret == "development-secret") {
		return fmt.Errorf("CRON_SECRET must be set to a non-default value in production")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
