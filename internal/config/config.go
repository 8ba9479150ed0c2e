package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Files    FilesConfig
	Session  SessionConfig
	Export   ExportConfig
	Worker   WorkerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	URL string
}

type GeminiConfig struct {
	APIKey           string
	DefaultModel     string
	SystemPromptPath string
	Temperature      float32
	MaxOutputTokens  int32
	SearchTool       bool
}

type FilesConfig struct {
	MaxFileSize       int64
	MaxAttachments    int
	PollInterval      time.Duration
	ActivationTimeout time.Duration
}

type SessionConfig struct {
	Store string // memory | redis | postgres
	TTL   time.Duration
}

type ExportConfig struct {
	Path          string
	R2AccountID   string
	R2Bucket      string
	R2AccessKey   string
	R2SecretKey   string
	PresignExpiry time.Duration
}

type WorkerConfig struct {
	Concurrency      int
	RetryMaxAttempts int
	SweepInterval    time.Duration
}

type LogConfig struct {
	FilePath string
}

const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "readysetrole"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Gemini: GeminiConfig{
			APIKey:           getEnv("GEMINI_API_KEY", ""),
			DefaultModel:     getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
			SystemPromptPath: getEnv("SYSTEM_PROMPT_PATH", "identity.txt"),
			Temperature:      float32(getEnvAsFloat("GEMINI_TEMPERATURE", 0.4)),
			MaxOutputTokens:  int32(getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 4096)),
			SearchTool:       getEnvAsBool("GEMINI_SEARCH_TOOL", true),
		},
		Files: FilesConfig{
			MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 10485760),
			MaxAttachments:    getEnvAsInt("MAX_ATTACHMENTS", 5),
			PollInterval:      getEnvAsDuration("FILE_POLL_INTERVAL", "600ms"),
			ActivationTimeout: getEnvAsDuration("FILE_ACTIVATION_TIMEOUT", "12s"),
		},
		Session: SessionConfig{
			Store: getEnv("SESSION_STORE", SessionStoreMemory),
			TTL:   getEnvAsDuration("SESSION_TTL", "2h"),
		},
		Export: ExportConfig{
			Path:          getEnv("EXPORT_PATH", "./exports"),
			R2AccountID:   getEnv("R2_ACCOUNT_ID", ""),
			R2Bucket:      getEnv("R2_BUCKET", ""),
			R2AccessKey:   getEnv("R2_ACCESS_KEY", ""),
			R2SecretKey:   getEnv("R2_SECRET_KEY", ""),
			PresignExpiry: getEnvAsDuration("R2_PRESIGN_EXPIRY", "15m"),
		},
		Worker: WorkerConfig{
			Concurrency:      getEnvAsInt("JANITOR_CONCURRENCY", 2),
			RetryMaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 1),
			SweepInterval:    getEnvAsDuration("JANITOR_SWEEP_INTERVAL", "1m"),
		},
		Log: LogConfig{
			FilePath: getEnv("LOG_FILE_PATH", "logs/readysetrole.log"),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// UseR2 reports whether exports go to an R2 bucket instead of the local disk.
func (c *Config) UseR2() bool {
	return c.Export.R2AccountID != "" && c.Export.R2Bucket != ""
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks settings the API server cannot start without.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis, SessionStorePostgres:
	default:
		return fmt.Errorf("unknown SESSION_STORE: %s", c.Session.Store)
	}

	if c.Files.MaxAttachments <= 0 {
		return fmt.Errorf("MAX_ATTACHMENTS must be positive")
	}

	if c.Files.PollInterval <= 0 {
		return fmt.Errorf("FILE_POLL_INTERVAL must be positive")
	}

	return nil
}

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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
