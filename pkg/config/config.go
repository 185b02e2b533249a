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

// Guardian email conflict policies.
const (
	GuardianConflictSuffix = "suffix"
	GuardianConflictFail   = "fail"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Import   ImportConfig
	Reports  ReportsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs the read-through cache in front of student listings.
type CacheConfig struct {
	Enabled        bool
	StudentListTTL time.Duration
}

// ImportConfig tunes the student/guardian provisioning pipeline.
type ImportConfig struct {
	MaxErrors           int
	RowDelay            time.Duration
	Workers             int
	MaxRows             int
	MaxUploadBytes      int64
	StudentEmailDomain  string
	GuardianEmailDomain string
	GuardianConflict    string
	StrictGender        bool
	BcryptCost          int
}

// ReportsConfig controls storage of per-batch row outcome reports.
type ReportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupSchedule string
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

	return fromViper(v), nil
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:        v.GetBool("ENABLE_CACHE"),
		StudentListTTL: parseDuration(v.GetString("STUDENT_LIST_CACHE_TTL"), 5*time.Minute),
	}

	maxUpload := v.GetInt64("IMPORT_MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	conflict := strings.ToLower(strings.TrimSpace(v.GetString("IMPORT_GUARDIAN_CONFLICT")))
	if conflict != GuardianConflictFail {
		conflict = GuardianConflictSuffix
	}
	cfg.Import = ImportConfig{
		MaxErrors:           positiveOr(v.GetInt("IMPORT_MAX_ERRORS"), 20),
		RowDelay:            parseDuration(v.GetString("IMPORT_ROW_DELAY"), 100*time.Millisecond),
		Workers:             positiveOr(v.GetInt("IMPORT_WORKERS"), 1),
		MaxRows:             positiveOr(v.GetInt("IMPORT_MAX_ROWS"), 2000),
		MaxUploadBytes:      maxUpload,
		StudentEmailDomain:  v.GetString("IMPORT_STUDENT_EMAIL_DOMAIN"),
		GuardianEmailDomain: v.GetString("IMPORT_GUARDIAN_EMAIL_DOMAIN"),
		GuardianConflict:    conflict,
		StrictGender:        v.GetBool("IMPORT_STRICT_GENDER"),
		BcryptCost:          positiveOr(v.GetInt("IMPORT_BCRYPT_COST"), 10),
	}

	cfg.Reports = ReportsConfig{
		Enabled:         v.GetBool("ENABLE_IMPORT_REPORTS"),
		StorageDir:      v.GetString("IMPORT_REPORTS_DIR"),
		SignedURLSecret: v.GetString("IMPORT_REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("IMPORT_REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("IMPORT_REPORTS_CLEANUP_SCHEDULE"),
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
	v.SetDefault("DB_NAME", "tahfidz_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "tahfidz-admin-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("STUDENT_LIST_CACHE_TTL", "5m")

	v.SetDefault("IMPORT_MAX_ERRORS", 20)
	v.SetDefault("IMPORT_ROW_DELAY", "100ms")
	v.SetDefault("IMPORT_WORKERS", 1)
	v.SetDefault("IMPORT_MAX_ROWS", 2000)
	v.SetDefault("IMPORT_MAX_UPLOAD_SIZE", 5*1024*1024)
	v.SetDefault("IMPORT_STUDENT_EMAIL_DOMAIN", "siswa.tahfidz.sch.id")
	v.SetDefault("IMPORT_GUARDIAN_EMAIL_DOMAIN", "wali.tahfidz.sch.id")
	v.SetDefault("IMPORT_GUARDIAN_CONFLICT", GuardianConflictSuffix)
	v.SetDefault("IMPORT_STRICT_GENDER", false)
	v.SetDefault("IMPORT_BCRYPT_COST", 10)

	v.SetDefault("ENABLE_IMPORT_REPORTS", false)
	v.SetDefault("IMPORT_REPORTS_DIR", "./import-reports")
	v.SetDefault("IMPORT_REPORTS_SIGNED_URL_SECRET", "dev_import_reports_secret")
	v.SetDefault("IMPORT_REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("IMPORT_REPORTS_CLEANUP_SCHEDULE", "@every 1h")
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

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// viper reports a missing explicit config file as a *fs.PathError rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
