package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort        string
	AppMode        string
	LogMode        string
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	JWTSecret      string
	JWTExpiryMin   int
	RefreshExpiry  int
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RabbitMQURL    string
	RabbitExchange string
	CommentLimit   int
}

// ClientConfig configures the cinecritic-admin tool.
type ClientConfig struct {
	APIBaseURL     string
	TokenDBPath    string
	RefreshTimeout time.Duration
	HubPath        string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		AppMode:        getEnv("APP_MODE", "debug"),
		LogMode:        getEnv("LOG_MODE", "development"),
		DBHost:         getEnv("DB_HOST", ""),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "cinecritic"),
		DBPort:         getEnv("DB_PORT", "5432"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:   getEnvAsInt("JWT_EXPIRY_MIN", 15),
		RefreshExpiry:  getEnvAsInt("REFRESH_EXPIRY_DAYS", 14),
		RedisHost:      getEnv("REDIS_HOST", ""),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "cinecritic.moderation"),
		CommentLimit:   getEnvAsInt("COMMENT_RATE_LIMIT", 20),
	}
}

func LoadClientConfig() *ClientConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &ClientConfig{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		TokenDBPath:    getEnv("TOKEN_DB_PATH", "cinecritic-session.db"),
		RefreshTimeout: getEnvAsDuration("REFRESH_TIMEOUT", 10*time.Second),
		HubPath:        getEnv("HUB_PATH", "/hubs/notifications"),
	}
}

// DatabaseEnabled reports whether a Postgres host was configured; without it the in-memory store is used.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
