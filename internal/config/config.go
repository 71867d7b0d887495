package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Ticket       TicketConfig
	Training     TrainingConfig
	Storage      StorageConfig
	RateLimit    RateLimitConfig
	Seed         SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitMB           int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. URL wins over Addr when set.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig controls the follow-up webhook.
type NotificationConfig struct {
	WebhookURL     string
	TimeoutSeconds int
	Workers        int
	QueueSize      int
}

// TicketConfig holds ticket business values.
type TicketConfig struct {
	Revenue       decimal.Decimal
	MaxMedia      int
	MaxMediaBytes int64
}

// TrainingConfig describes the bookable working day and the external calendar.
type TrainingConfig struct {
	OpenHour         int
	CloseHour        int
	UTCOffsetHours   int
	CalendarID       string
	CredentialsFile  string
	CalendarTimeout  time.Duration
	BusyCacheSeconds int
}

// StorageConfig selects where media files live.
type StorageConfig struct {
	Driver     string
	LocalDir   string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
}

// RateLimitConfig bounds requests to public endpoints per client IP.
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// SeedConfig provisions the first SUPERADMIN on an empty database.
type SeedConfig struct {
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	revenue, err := decimal.NewFromString(getEnv("TICKET_REVENUE", "70000"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICKET_REVENUE: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "pqr-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 32),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*12),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 100),
		},
		Ticket: TicketConfig{
			Revenue:       revenue,
			MaxMedia:      getEnvAsInt("TICKET_MAX_MEDIA", 3),
			MaxMediaBytes: int64(getEnvAsInt("TICKET_MAX_MEDIA_MB", 10)) << 20,
		},
		Training: TrainingConfig{
			OpenHour:         getEnvAsInt("TRAINING_OPEN_HOUR", 8),
			CloseHour:        getEnvAsInt("TRAINING_CLOSE_HOUR", 18),
			UTCOffsetHours:   getEnvAsInt("TRAINING_UTC_OFFSET_HOURS", -5),
			CalendarID:       os.Getenv("GOOGLE_CALENDAR_ID"),
			CredentialsFile:  os.Getenv("GOOGLE_CREDENTIALS_FILE"),
			CalendarTimeout:  time.Duration(getEnvAsInt("GOOGLE_CALENDAR_TIMEOUT_SECONDS", 10)) * time.Second,
			BusyCacheSeconds: getEnvAsInt("TRAINING_BUSY_CACHE_SECONDS", 60),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			LocalDir:   getEnv("STORAGE_LOCAL_DIR", "uploads"),
			S3Bucket:   os.Getenv("STORAGE_S3_BUCKET"),
			S3Region:   getEnv("STORAGE_S3_REGION", "us-east-1"),
			S3Endpoint: os.Getenv("STORAGE_S3_ENDPOINT"),
		},
		RateLimit: RateLimitConfig{
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Seed: SeedConfig{
			AdminUsername: os.Getenv("SEED_ADMIN_USERNAME"),
			AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		},
	}

	if cfg.Training.CloseHour <= cfg.Training.OpenHour {
		return nil, fmt.Errorf("TRAINING_CLOSE_HOUR must be after TRAINING_OPEN_HOUR")
	}
	if cfg.Storage.Driver == "s3" && cfg.Storage.S3Bucket == "" {
		return nil, fmt.Errorf("STORAGE_S3_BUCKET is required for the s3 driver")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-delivery webhook timeout.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// BusyCacheTTL returns how long calendar busy snapshots are cached.
func (t TrainingConfig) BusyCacheTTL() time.Duration {
	return time.Duration(t.BusyCacheSeconds) * time.Second
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
