package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool
}

// SearchConfig holds search cluster configuration
type SearchConfig struct {
	Addresses    []string
	Username     string
	Password     string
	Index        string
	HealthTTL    time.Duration
	ProbeTimeout time.Duration
	QueryTimeout time.Duration
}

// CacheConfig holds configuration for the dynamic data cache
type CacheConfig struct {
	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir string
	TTL time.Duration
}

// DynamicConfig holds configuration for price/stock/delivery resolution
type DynamicConfig struct {
	MaxBatch int
	Timezone string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Search      SearchConfig
	Cache       CacheConfig
	Dynamic     DynamicConfig
}

// Load loads configuration from an optional .env file and environment variables
func Load(serviceName string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "catalog"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Search: SearchConfig{
			Addresses:    getEnvAsList("OPENSEARCH_URLS", []string{"http://localhost:9200"}),
			Username:     getEnv("OPENSEARCH_USERNAME", ""),
			Password:     getEnv("OPENSEARCH_PASSWORD", ""),
			Index:        getEnv("SEARCH_INDEX", "products_current"),
			HealthTTL:    getEnvAsDuration("SEARCH_HEALTH_TTL", 60*time.Second),
			ProbeTimeout: getEnvAsDuration("SEARCH_PROBE_TIMEOUT", 2*time.Second),
			QueryTimeout: getEnvAsDuration("SEARCH_QUERY_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			Dir: getEnv("CACHE_DIR", ""),
			TTL: getEnvAsDuration("CACHE_TTL", 300*time.Second),
		},
		Dynamic: DynamicConfig{
			MaxBatch: getEnvAsInt("DYNAMIC_MAX_BATCH", 1000),
			Timezone: getEnv("DELIVERY_TIMEZONE", "Local"),
		},
	}

	if _, err := config.Location(); err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_TIMEZONE: %w", err)
	}

	return config, nil
}

// Location returns the time zone used for delivery cutoff evaluation
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Dynamic.Timezone)
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Strings("opensearch", c.Search.Addresses),
		zap.String("search_index", c.Search.Index),
		zap.Bool("cache_in_memory", c.Cache.Dir == ""),
		zap.Duration("cache_ttl", c.Cache.TTL),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as booleans
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get comma separated environment variables
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
