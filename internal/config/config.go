package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB        DBConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Sentry    SentryConfig
	Admin     AdminConfig
	Tasks     TasksConfig
	Realtime  RealtimeConfig
	Audit     AuditConfig
}

type DBConfig struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

type JWTConfig struct {
	Secret        string
	TokenLifetime time.Duration
}

type PasswordConfig struct {
	BcryptCost int
}

type ServerConfig struct {
	Port                   string
	Environment            string
	CORSOrigins            []string
	BodyLimitBytes         int
	AllowAdminRegistration bool
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type RateLimitConfig struct {
	AuthMax    int
	AuthWindow time.Duration
}

type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	NotifyOnLogin      bool
	NotifyOnMessage    bool
	NotifyOnConnection bool
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type SentryConfig struct {
	DSN string
}

type AdminConfig struct {
	Email    string
	Password string
}

type TasksConfig struct {
	RequireMembership bool
}

type RealtimeConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

type AuditConfig struct {
	QueueSize      int
	ExportInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the process win.
func Load() *Config {
	_ = loadDotEnv(".env")

	return &Config{
		DB: DBConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "ayasync"),
			Password:     getEnv("DB_PASSWORD", "ayasync_secret"),
			Name:         getEnv("DB_NAME", "ayasync"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "ayasync.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", ""),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "ayasync"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "ayasync_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "ayasync-avatars"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			TokenLifetime: time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 168)) * time.Hour,
		},
		Server: ServerConfig{
			Port:                   getEnv("PORT", getEnv("SERVER_PORT", "5000")),
			Environment:            getEnv("APP_ENV", "development"),
			CORSOrigins:            getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			BodyLimitBytes:         getEnvAsInt("BODY_LIMIT_BYTES", 10*1024*1024),
			AllowAdminRegistration: getEnvAsBool("ALLOW_ADMIN_REGISTRATION", false),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			AuthMax:    getEnvAsInt("RATE_LIMIT_AUTH_MAX", 20),
			AuthWindow: getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:               getEnv("SMTP_HOST", ""),
			Port:               getEnvAsInt("SMTP_PORT", 587),
			Username:           getEnv("SMTP_USERNAME", ""),
			Password:           getEnv("SMTP_PASSWORD", ""),
			From:               getEnv("SMTP_FROM", "AyaSync <no-reply@ayasync.local>"),
			NotifyOnLogin:      getEnvAsBool("NOTIFY_ON_LOGIN", true),
			NotifyOnMessage:    getEnvAsBool("NOTIFY_ON_MESSAGE", true),
			NotifyOnConnection: getEnvAsBool("NOTIFY_ON_CONNECTION", true),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Password: PasswordConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Tasks: TasksConfig{
			RequireMembership: getEnvAsBool("TASKS_REQUIRE_MEMBERSHIP", false),
		},
		Realtime: RealtimeConfig{
			SendBuffer:   getEnvAsInt("REALTIME_SEND_BUFFER", 64),
			PingInterval: getEnvAsDuration("REALTIME_PING_INTERVAL", 30*time.Second),
		},
		Audit: AuditConfig{
			QueueSize:      getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
			ExportInterval: getEnvAsDuration("AUDIT_EXPORT_INTERVAL", time.Hour),
		},
	}
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
