package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "dev_secret"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	OCR          OCRConfig
	Uploads      UploadsConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Stats        StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig only verifies bearer tokens; issuance happens elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OCRConfig tunes rasterization, normalization and recognition.
type OCRConfig struct {
	Language          string
	TesseractBin      string
	PdftocairoBin     string
	PDFPage           int
	PDFDPI            int
	MaxWidth          int
	ProcessingTimeout time.Duration
}

// UploadsConfig controls the ephemeral upload workspace and its validation rules.
type UploadsConfig struct {
	Dir              string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	JanitorInterval  time.Duration
	JanitorTTL       time.Duration
}

// VerificationConfig holds the public location of diploma artifacts.
type VerificationConfig struct {
	PublicBaseURL  string
	DiplomaPDFPath string
}

// RateLimitConfig bounds requests per client within a window.
type RateLimitConfig struct {
	Window time.Duration
	OCR    int
	Lookup int
}

type StatsConfig struct {
	CacheTTL time.Duration
}

// IsProduction reports whether the process runs with production semantics.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == EnvProduction
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

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would break the service at runtime.
func (c *Config) Validate() error {
	if c.Uploads.JanitorTTL <= c.OCR.ProcessingTimeout {
		return fmt.Errorf("config: UPLOADS_JANITOR_TTL (%s) must exceed OCR_PROCESSING_TIMEOUT (%s)", c.Uploads.JanitorTTL, c.OCR.ProcessingTimeout)
	}
	if c.IsProduction() && (c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret) {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.OCR = OCRConfig{
		Language:          v.GetString("OCR_LANGUAGE"),
		TesseractBin:      v.GetString("OCR_TESSERACT_BIN"),
		PdftocairoBin:     v.GetString("OCR_PDFTOCAIRO_BIN"),
		PDFPage:           positiveInt(v.GetInt("OCR_PDF_PAGE"), 2),
		PDFDPI:            positiveInt(v.GetInt("OCR_PDF_DPI"), 150),
		MaxWidth:          positiveInt(v.GetInt("OCR_MAX_WIDTH"), 1300),
		ProcessingTimeout: parseDuration(v.GetString("OCR_PROCESSING_TIMEOUT"), time.Minute),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:              v.GetString("UPLOADS_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		JanitorInterval:  parseDuration(v.GetString("UPLOADS_JANITOR_INTERVAL"), 10*time.Minute),
		JanitorTTL:       parseDuration(v.GetString("UPLOADS_JANITOR_TTL"), time.Hour),
	}

	cfg.Verification = VerificationConfig{
		PublicBaseURL:  strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		DiplomaPDFPath: v.GetString("DIPLOMA_PDF_PATH"),
	}

	cfg.RateLimit = RateLimitConfig{
		Window: parseDuration(v.GetString("RATE_LIMIT_WINDOW"), 15*time.Minute),
		OCR:    v.GetInt("RATE_LIMIT_OCR"),
		Lookup: v.GetInt("RATE_LIMIT_LOOKUP"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "diploma_checker")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "https://diploma-checker.vercel.app,http://localhost:50566")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OCR_LANGUAGE", "fra")
	v.SetDefault("OCR_TESSERACT_BIN", "tesseract")
	v.SetDefault("OCR_PDFTOCAIRO_BIN", "pdftocairo")
	v.SetDefault("OCR_PDF_PAGE", 2)
	v.SetDefault("OCR_PDF_DPI", 150)
	v.SetDefault("OCR_MAX_WIDTH", 1300)
	v.SetDefault("OCR_PROCESSING_TIMEOUT", "60s")

	v.SetDefault("UPLOADS_DIR", "./uploads/tmp")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/png,image/jpeg,application/pdf")
	v.SetDefault("UPLOADS_JANITOR_INTERVAL", "10m")
	v.SetDefault("UPLOADS_JANITOR_TTL", "1h")

	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("DIPLOMA_PDF_PATH", "/diplomes")

	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_OCR", 20)
	v.SetDefault("RATE_LIMIT_LOOKUP", 20)

	v.SetDefault("STATS_CACHE_TTL", "1m")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
