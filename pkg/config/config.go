package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Mail      MailConfig
	Tokens    TokenConfig
	Import    ImportConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrationsPath string
	AutoMigrate    bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures outgoing SMTP notifications.
type MailConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	SenderName   string
	FrontendURL  string
	Concurrency  int
	SendTimeout  time.Duration
	RetryWorkers int
	RetryMax     int
	RetryDelay   time.Duration
}

// TokenConfig sets one-time token lifetimes.
type TokenConfig struct {
	ActivationTTL time.Duration
	ResetTTL      time.Duration
}

// ImportConfig governs CSV bulk import.
type ImportConfig struct {
	MaxFileSizeBytes int64
	MaxRows          int
	ReportDir        string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	CleanupInterval  time.Duration
}

// CacheConfig toggles the employee read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RateLimitConfig throttles unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsPath: v.GetString("DB_MIGRATIONS_PATH"),
		AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Enabled:      v.GetBool("MAIL_ENABLED"),
		Host:         v.GetString("SMTP_HOST"),
		Port:         v.GetInt("SMTP_PORT"),
		Username:     v.GetString("SMTP_USER"),
		Password:     v.GetString("SMTP_PASSWORD"),
		From:         v.GetString("MAIL_FROM"),
		SenderName:   v.GetString("MAIL_SENDER_NAME"),
		FrontendURL:  strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		Concurrency:  v.GetInt("MAIL_CONCURRENCY"),
		SendTimeout:  parseDuration(v.GetString("MAIL_SEND_TIMEOUT"), 15*time.Second),
		RetryWorkers: v.GetInt("MAIL_RETRY_WORKERS"),
		RetryMax:     v.GetInt("MAIL_RETRY_MAX"),
		RetryDelay:   parseDuration(v.GetString("MAIL_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Tokens = TokenConfig{
		ActivationTTL: parseDuration(v.GetString("ACTIVATION_TOKEN_TTL"), 72*time.Hour),
		ResetTTL:      parseDuration(v.GetString("RESET_TOKEN_TTL"), time.Hour),
	}

	maxImportSize := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxImportSize <= 0 {
		maxImportSize = 5 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		MaxFileSizeBytes: maxImportSize,
		MaxRows:          v.GetInt("IMPORT_MAX_ROWS"),
		ReportDir:        v.GetString("IMPORT_REPORT_DIR"),
		SignedURLSecret:  v.GetString("IMPORT_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("IMPORT_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:  parseDuration(v.GetString("IMPORT_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_EMPLOYEE_CACHE"),
		TTL:     parseDuration(v.GetString("EMPLOYEE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		RequestsPerMinute: v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),
		Burst:             v.GetInt("AUTH_RATE_LIMIT_BURST"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hr_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATIONS_PATH", "./migrations")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "hr-admin-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("MAIL_SENDER_NAME", "HR Admin")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("MAIL_CONCURRENCY", 8)
	v.SetDefault("MAIL_SEND_TIMEOUT", "15s")
	v.SetDefault("MAIL_RETRY_WORKERS", 2)
	v.SetDefault("MAIL_RETRY_MAX", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "30s")

	v.SetDefault("ACTIVATION_TOKEN_TTL", "72h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")

	v.SetDefault("IMPORT_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("IMPORT_MAX_ROWS", 5000)
	v.SetDefault("IMPORT_REPORT_DIR", "./import-reports")
	v.SetDefault("IMPORT_SIGNED_URL_SECRET", "dev_import_secret")
	v.SetDefault("IMPORT_SIGNED_URL_TTL", "24h")
	v.SetDefault("IMPORT_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_EMPLOYEE_CACHE", false)
	v.SetDefault("EMPLOYEE_CACHE_TTL", "5m")

	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 5)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
