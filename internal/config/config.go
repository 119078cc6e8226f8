package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy     bool
}

type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	QueueEventsTopic string
	GroupID          string
}

type AuthConfig struct {
	AdminSecret          string
	SuperAdminSecret     string
	CustomerSecret       string
	TokenTTL             time.Duration
	SuperAdminIdentifier string
	SuperAdminPassword   string
}

type QueueConfig struct {
	LockBackend           string // local or redis
	RegistryBackend       string // memory or redis
	LockTTL               time.Duration
	LockWait              time.Duration
	TicketCodeLength      int
	DefaultServiceMinutes int
	PublicBaseURL         string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Dir string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8081"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			DSN:          getEnv("DB_DSN", "file:smartqueue.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:          getEnvBool("KAFKA_ENABLED", false),
			Brokers:          getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			QueueEventsTopic: getEnv("KAFKA_TOPIC_QUEUE_EVENTS", "smartqueue.queue.events"),
			GroupID:          getEnv("KAFKA_GROUP_ID", "smartqueue-display"),
		},
		Auth: AuthConfig{
			AdminSecret:          getEnv("ADMIN_JWT_SECRET", ""),
			SuperAdminSecret:     getEnv("SUPER_ADMIN_JWT_SECRET", ""),
			CustomerSecret:       getEnv("CUSTOMER_JWT_SECRET", ""),
			TokenTTL:             getEnvDuration("TOKEN_TTL", 12*time.Hour),
			SuperAdminIdentifier: getEnv("SUPER_ADMIN_IDENTIFIER", "superadmin"),
			SuperAdminPassword:   getEnv("SUPER_ADMIN_PASSWORD", ""),
		},
		Queue: QueueConfig{
			LockBackend:           getEnv("QUEUE_LOCK_BACKEND", "local"),
			RegistryBackend:       getEnv("QUEUE_REGISTRY_BACKEND", "memory"),
			LockTTL:               getEnvDuration("QUEUE_LOCK_TTL", 5*time.Second),
			LockWait:              getEnvDuration("QUEUE_LOCK_WAIT", 3*time.Second),
			TicketCodeLength:      getEnvInt("TICKET_CODE_LENGTH", 8),
			DefaultServiceMinutes: getEnvInt("DEFAULT_SERVICE_MINUTES", 5),
			PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			Dir: getEnv("LOG_DIR", "logs"),
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}

	if c.Auth.AdminSecret == "" || c.Auth.SuperAdminSecret == "" || c.Auth.CustomerSecret == "" {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET, SUPER_ADMIN_JWT_SECRET and CUSTOMER_JWT_SECRET are required"))
	} else if c.Auth.AdminSecret == c.Auth.SuperAdminSecret ||
		c.Auth.AdminSecret == c.Auth.CustomerSecret ||
		c.Auth.SuperAdminSecret == c.Auth.CustomerSecret {
		errs = append(errs, errors.New("admin, super-admin and customer JWT secrets must differ"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	switch c.Queue.LockBackend {
	case "local":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("QUEUE_LOCK_BACKEND=redis requires REDIS_ENABLED"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUEUE_LOCK_BACKEND must be local or redis, got %q", c.Queue.LockBackend))
	}
	switch c.Queue.RegistryBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("QUEUE_REGISTRY_BACKEND=redis requires REDIS_ENABLED"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUEUE_REGISTRY_BACKEND must be memory or redis, got %q", c.Queue.RegistryBackend))
	}
	if c.Queue.TicketCodeLength < 6 {
		errs = append(errs, errors.New("TICKET_CODE_LENGTH must be at least 6"))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
