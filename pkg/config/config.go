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
	Scheduler SchedulerConfig
	AutoPlan  AutoPlanConfig
	Cache     CacheConfig
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

// JWTConfig holds the secret shared with the identity service that issues tokens.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the defense planner. Shift tables are fixed in code.
type SchedulerConfig struct {
	Rooms          []string
	UTCOffsetHours int
	SessionLength  time.Duration
	BatchSize      int
	HorizonDays    int
	MinProfessors  int
}

// AutoPlanConfig controls the periodic background planning run.
type AutoPlanConfig struct {
	Enabled    bool
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig governs caching of defense listings.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Rooms:          splitAndTrim(v.GetString("SCHEDULER_ROOMS")),
		UTCOffsetHours: v.GetInt("SCHEDULER_UTC_OFFSET_HOURS"),
		SessionLength:  time.Duration(positiveOr(v.GetInt("SCHEDULER_SESSION_MINUTES"), 35)) * time.Minute,
		BatchSize:      positiveOr(v.GetInt("SCHEDULER_BATCH_SIZE"), 6),
		HorizonDays:    positiveOr(v.GetInt("SCHEDULER_HORIZON_DAYS"), 30),
		MinProfessors:  positiveOr(v.GetInt("SCHEDULER_MIN_PROFESSORS"), 3),
	}

	cfg.AutoPlan = AutoPlanConfig{
		Enabled:    v.GetBool("ENABLE_AUTOPLAN_WORKER"),
		Interval:   parseDuration(v.GetString("AUTOPLAN_INTERVAL"), 24*time.Hour),
		MaxRetries: v.GetInt("AUTOPLAN_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUTOPLAN_RETRY_DELAY"), time.Minute),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_DEFENSE_CACHE"),
		TTL:     parseDuration(v.GetString("DEFENSE_CACHE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "thesis_defense")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_ROOMS", "Room 110/DI,Room 111/DI,Room 112/DI")
	v.SetDefault("SCHEDULER_UTC_OFFSET_HOURS", 7)
	v.SetDefault("SCHEDULER_SESSION_MINUTES", 35)
	v.SetDefault("SCHEDULER_BATCH_SIZE", 6)
	v.SetDefault("SCHEDULER_HORIZON_DAYS", 30)
	v.SetDefault("SCHEDULER_MIN_PROFESSORS", 3)

	v.SetDefault("ENABLE_AUTOPLAN_WORKER", false)
	v.SetDefault("AUTOPLAN_INTERVAL", "24h")
	v.SetDefault("AUTOPLAN_MAX_RETRIES", 1)
	v.SetDefault("AUTOPLAN_RETRY_DELAY", "1m")

	v.SetDefault("ENABLE_DEFENSE_CACHE", false)
	v.SetDefault("DEFENSE_CACHE_TTL", "5m")
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

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveOr(value, fallback int) int {
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
