// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendAzure  = "azure"
	BackendMinio  = "minio"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port               string
	AppEnv             string
	CORSAllowedOrigins []string

	// Object storage
	StorageBackend    string
	Container         string
	StoragePublicBase string // browser-accessible base URL; derived from the backend when empty

	// Azure Blob Storage
	AzureConnectionString string
	StorageAccountURL     string

	// S3-compatible (MinIO locally, AWS S3)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageUseSSL    bool

	// Google Cloud Storage
	GCSProjectID       string
	GCSCredentialsFile string

	// Upload pipeline
	MaxUploadBytes    int64
	ContentTypePolicy string
	UploadRatePerSec  float64
	UploadRateBurst   int

	// Logging
	LogLevel      string
	LogPretty     bool
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	SentryDSN     string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		AppEnv:             getEnv("APP_ENV", "development"),
		CORSAllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", BackendAzure)),
		Container:         getEnv("IMAGES_CONTAINER", "lanternfly-images"),
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", ""),

		AzureConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
		StorageAccountURL:     getEnv("STORAGE_ACCOUNT_URL", ""),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",

		GCSProjectID:       getEnv("GCS_PROJECT_ID", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		MaxUploadBytes:    getInt64("MAX_UPLOAD_BYTES", 10<<20),
		ContentTypePolicy: getEnv("CONTENT_TYPE_POLICY", "allowlist"),
		UploadRatePerSec:  getFloat("UPLOAD_RATE_PER_SEC", 0),
		UploadRateBurst:   int(getInt64("UPLOAD_RATE_BURST", 10)),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnv("LOG_PRETTY", "false") == "true",
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  int(getInt64("LOG_MAX_SIZE_MB", 100)),
		LogMaxBackups: int(getInt64("LOG_MAX_BACKUPS", 3)),
		LogMaxAgeDays: int(getInt64("LOG_MAX_AGE_DAYS", 30)),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
	}
}

// Validate checks that the selected storage backend has what it needs.
func (c *Config) Validate() error {
	if c.Container == "" {
		return fmt.Errorf("IMAGES_CONTAINER must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	switch c.StorageBackend {
	case BackendAzure:
		return require("AZURE_STORAGE_CONNECTION_STRING", c.AzureConnectionString)
	case BackendMinio:
		if err := require("STORAGE_ACCESS_KEY", c.StorageAccessKey); err != nil {
			return err
		}
		return require("STORAGE_SECRET_KEY", c.StorageSecretKey)
	case BackendS3:
		return require("STORAGE_REGION", c.StorageRegion)
	case BackendGCS:
		return require("GCS_PROJECT_ID", c.GCSProjectID)
	case BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func require(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}
