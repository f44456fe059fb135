package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Storage     StorageConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Identity    IdentityConfig
	Reference   ReferenceConfig
	Events      EventsConfig
	Kafka       KafkaConfig
	SLA         SLAConfig
	Upload      UploadConfig
	SideEffects SideEffectsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StorageMode selects the persistence backend.
type StorageMode string

const (
	StorageModeMemory   StorageMode = "memory"
	StorageModePostgres StorageMode = "postgres"
)

// StorageConfig selects repositories and the blob root.
type StorageConfig struct {
	Mode                StorageMode
	BlobRoot            string
	WriteTimeoutSeconds int
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

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthMode selects how callers are identified at the edge.
type AuthMode string

const (
	AuthModeHeader AuthMode = "header"
	AuthModeJWT    AuthMode = "jwt"
)

// AuthConfig defines how the verified caller identity is received.
type AuthConfig struct {
	Mode      AuthMode
	JWTSecret string
}

// IdentityConfig configures the identity directory client and its circuit breaker.
type IdentityConfig struct {
	BaseURL                 string
	TimeoutSeconds          int
	CacheTTLSeconds         int
	BreakerFailureRatio     float64
	BreakerMinRequests      uint32
	BreakerConsecutiveFails uint32
	BreakerOpenSeconds      int
	BreakerHalfOpenRequests uint32
	BreakerIntervalSeconds  int
}

// ReferenceConfig locates the department/category/SLA catalog.
type ReferenceConfig struct {
	CatalogPath string
}

// EventBus selects the event publisher backend.
type EventBus string

const (
	EventBusMemory EventBus = "memory"
	EventBusKafka  EventBus = "kafka"
)

// EventsConfig selects the event publisher.
type EventsConfig struct {
	Bus EventBus
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SLAConfig controls the SLA sweep.
type SLAConfig struct {
	SweepConcurrency int
	SweepSchedule    string
}

// UploadConfig bounds document uploads.
type UploadConfig struct {
	Workers   int
	QueueSize int
	MaxBytes  int64
}

// SideEffectsConfig bounds the post-commit history and event tasks.
type SideEffectsConfig struct {
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	failureRatio, err := strconv.ParseFloat(getEnv("IDENTITY_CB_FAILURE_RATIO", "0.5"), 64)
	if err != nil || failureRatio <= 0 || failureRatio > 1 {
		return nil, fmt.Errorf("invalid IDENTITY_CB_FAILURE_RATIO: %q", os.Getenv("IDENTITY_CB_FAILURE_RATIO"))
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Mode:                StorageMode(strings.ToLower(getEnv("STORAGE_MODE", string(StorageModeMemory)))),
			BlobRoot:            getEnv("STORAGE_BLOB_ROOT", "data/uploads"),
			WriteTimeoutSeconds: getEnvAsInt("PERSISTENCE_WRITE_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			Mode:      AuthMode(strings.ToLower(getEnv("AUTH_MODE", string(AuthModeHeader)))),
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Identity: IdentityConfig{
			BaseURL:                 strings.TrimRight(getEnv("IDENTITY_BASE_URL", "http://user-service"), "/"),
			TimeoutSeconds:          getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 3),
			CacheTTLSeconds:         getEnvAsInt("IDENTITY_CACHE_TTL_SECONDS", 0),
			BreakerFailureRatio:     failureRatio,
			BreakerMinRequests:      uint32(getEnvAsInt("IDENTITY_CB_MIN_REQUESTS", 10)),
			BreakerConsecutiveFails: uint32(getEnvAsInt("IDENTITY_CB_CONSECUTIVE_FAILURES", 5)),
			BreakerOpenSeconds:      getEnvAsInt("IDENTITY_CB_OPEN_SECONDS", 30),
			BreakerHalfOpenRequests: uint32(getEnvAsInt("IDENTITY_CB_HALF_OPEN_REQUESTS", 1)),
			BreakerIntervalSeconds:  getEnvAsInt("IDENTITY_CB_INTERVAL_SECONDS", 60),
		},
		Reference: ReferenceConfig{
			CatalogPath: os.Getenv("REFERENCE_CATALOG_PATH"),
		},
		Events: EventsConfig{
			Bus: EventBus(strings.ToLower(getEnv("EVENT_BUS", string(EventBusMemory)))),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "grievance-status-changed"),
		},
		SLA: SLAConfig{
			SweepConcurrency: getEnvAsInt("SLA_SWEEP_CONCURRENCY", 8),
			SweepSchedule:    getEnv("SLA_SWEEP_SCHEDULE", "@every 15m"),
		},
		Upload: UploadConfig{
			Workers:   getEnvAsInt("UPLOAD_WORKERS", 4),
			QueueSize: getEnvAsInt("UPLOAD_QUEUE_SIZE", 64),
			MaxBytes:  int64(getEnvAsInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
		SideEffects: SideEffectsConfig{
			TimeoutSeconds: getEnvAsInt("SIDE_EFFECT_TIMEOUT_SECONDS", 10),
		},
	}

	if cfg.Storage.Mode != StorageModeMemory && cfg.Storage.Mode != StorageModePostgres {
		return nil, fmt.Errorf("invalid STORAGE_MODE: %q", cfg.Storage.Mode)
	}
	if cfg.Storage.Mode == StorageModePostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN required when STORAGE_MODE=postgres")
	}
	if cfg.Events.Bus != EventBusMemory && cfg.Events.Bus != EventBusKafka {
		return nil, fmt.Errorf("invalid EVENT_BUS: %q", cfg.Events.Bus)
	}
	if cfg.Auth.Mode != AuthModeHeader && cfg.Auth.Mode != AuthModeJWT {
		return nil, fmt.Errorf("invalid AUTH_MODE: %q", cfg.Auth.Mode)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// WriteTimeout bounds a single aggregate write.
func (s StorageConfig) WriteTimeout() time.Duration {
	return seconds(s.WriteTimeoutSeconds)
}

// Timeout bounds one directory call.
func (i IdentityConfig) Timeout() time.Duration {
	return seconds(i.TimeoutSeconds)
}

// CacheTTL returns the user lookup cache lifetime; zero disables caching.
func (i IdentityConfig) CacheTTL() time.Duration {
	return seconds(i.CacheTTLSeconds)
}

// Timeout bounds the history append and event publish after a commit.
func (s SideEffectsConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
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

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
