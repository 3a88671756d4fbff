package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	Env                string
	GoogleClientID     string
	GoogleClientSecret string
	BaseURL            string
	PreviewHostSuffix  string
	ProductionHost     string
	DriveRootFolder    string
	RequestTimeout     time.Duration
	ExchangeTimeout    time.Duration
}

var AppConfig *Config

func Load() {
	_ = godotenv.Load()

	AppConfig = &Config{
		Port:               GetEnv("PORT", "3000"),
		Env:                GetEnv("ENV", "development"),
		GoogleClientID:     GetEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnv("GOOGLE_CLIENT_SECRET", ""),
		BaseURL:            GetEnv("BASE_URL", "http://localhost:3000"),
		PreviewHostSuffix:  GetEnv("PREVIEW_HOST_SUFFIX", ".lovableproject.com"),
		ProductionHost:     GetEnv("PRODUCTION_HOST", "scriptony.app"),
		DriveRootFolder:    GetEnv("DRIVE_ROOT_FOLDER", "Scriptony"),
		RequestTimeout:     GetDuration("REQUEST_TIMEOUT", 15*time.Second),
		ExchangeTimeout:    GetDuration("OAUTH_EXCHANGE_TIMEOUT", 20*time.Second),
	}

	if AppConfig.GoogleClientID == "" {
		log.Fatal("GOOGLE_CLIENT_ID is required")
	}
	if AppConfig.GoogleClientSecret == "" {
		log.Fatal("GOOGLE_CLIENT_SECRET is required")
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Origin returns the configured base URL without a trailing slash
func (c *Config) Origin() string {
	return strings.TrimSuffix(c.BaseURL, "/")
}
