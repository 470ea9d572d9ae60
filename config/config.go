package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. It is loaded once at startup
// and treated as immutable afterwards, so concurrent reads need no locking.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string
	CoverBucket    string

	JWTSecret string

	// Media delivery. StreamSigningSecret and AudioDir are mandatory: the
	// media endpoint must refuse to start rather than run unsigned.
	StreamSigningSecret string
	StreamTTLSeconds    int
	AudioDir            string

	LogLevel  string
	LogPath   string
	DevServer bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "resonate"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		CoverBucket:    getEnv("MINIO_COVER_BUCKET", "resonate-covers"),

		JWTSecret: getEnv("JWT_SECRET", "resonate-dev-secret"),

		StreamSigningSecret: os.Getenv("STREAM_SIGNING_SECRET"),
		StreamTTLSeconds:    getEnvInt("STREAM_URL_TTL_SECONDS", 60),
		AudioDir:            os.Getenv("AUDIO_STORAGE_DIR"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogPath:   getEnv("LOG_PATH", "logs/resonate.log"),
		DevServer: getEnvBool("DEV_SERVER", false),
	}
}

// ValidateStreaming checks the configuration the media delivery subsystem
// cannot run without. Called during startup; a failure here is fatal.
func (c *Config) ValidateStreaming() error {
	if c.StreamSigningSecret == "" {
		return fmt.Errorf("STREAM_SIGNING_SECRET is required")
	}
	if c.StreamTTLSeconds <= 0 {
		return fmt.Errorf("STREAM_URL_TTL_SECONDS must be positive, got %d", c.StreamTTLSeconds)
	}
	if c.AudioDir == "" {
		return fmt.Errorf("AUDIO_STORAGE_DIR is required")
	}
	info, err := os.Stat(c.AudioDir)
	if err != nil {
		return fmt.Errorf("AUDIO_STORAGE_DIR %q is not accessible: %w", c.AudioDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("AUDIO_STORAGE_DIR %q is not a directory", c.AudioDir)
	}
	return nil
}
