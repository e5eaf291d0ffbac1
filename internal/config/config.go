package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Events    EventsConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Complaint ComplaintConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// DatabaseConfig holds connection values for the complaints database.
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	SSLRootCert    string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the event stream.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// EventsConfig bounds delivery of domain events to the stream.
type EventsConfig struct {
	QueueSize            int
	PublishTimeoutMillis int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines the administrator credential and hashing parameters.
type AuthConfig struct {
	AdminUsername string
	AdminPassword string
	BcryptCost    int
}

// ComplaintConfig tunes complaint intake.
type ComplaintConfig struct {
	CreateAttempts int
}

var allowedSSLModes = map[string]struct{}{
	"verify-ca":   {},
	"verify-full": {},
}

// Load reads configuration from environment variables, applying defaults where possible.
// Malformed numeric or boolean values fail together with the validation errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: env.getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:           os.Getenv("DB_HOST"),
			Port:           env.getEnvAsInt("DB_PORT", 5432),
			User:           os.Getenv("DB_USER"),
			Password:       os.Getenv("DB_PASSWORD"),
			Name:           getEnv("DB_NAME", "defaultdb"),
			SSLMode:        getEnv("DB_SSL_MODE", "verify-full"),
			SSLRootCert:    getEnv("DB_SSL_ROOT_CERT", "certs/ca.pem"),
			MaxConns:       int32(env.getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:       int32(env.getEnvAsInt("DB_MIN_CONNS", 0)),
			RunMigrations:  env.getEnvAsBool("DB_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(env.getEnvAsInt("DB_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(env.getEnvAsInt("DB_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       env.getEnvAsInt("REDIS_DB", 0),
			Stream:   getEnv("EVENTS_STREAM", "complaints.events"),
		},
		Events: EventsConfig{
			QueueSize:            env.getEnvAsInt("EVENTS_QUEUE_SIZE", 1024),
			PublishTimeoutMillis: env.getEnvAsInt("EVENTS_PUBLISH_TIMEOUT_MS", 500),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			BcryptCost:    env.getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Complaint: ComplaintConfig{
			CreateAttempts: env.getEnvAsInt("COMPLAINT_CREATE_ATTEMPTS", 3),
		},
	}

	if err := errors.Join(append(env.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or malformed required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if _, ok := allowedSSLModes[c.Database.SSLMode]; !ok {
		errs = append(errs, fmt.Errorf("DB_SSL_MODE %q not allowed; use verify-ca or verify-full", c.Database.SSLMode))
	}
	if c.Database.SSLRootCert == "" {
		errs = append(errs, errors.New("DB_SSL_ROOT_CERT is required"))
	}
	if c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	}
	if c.Events.QueueSize < 1 {
		errs = append(errs, errors.New("EVENTS_QUEUE_SIZE must be at least 1"))
	}
	if c.Events.PublishTimeoutMillis < 1 {
		errs = append(errs, errors.New("EVENTS_PUBLISH_TIMEOUT_MS must be at least 1"))
	}
	if c.Complaint.CreateAttempts < 1 {
		errs = append(errs, errors.New("COMPLAINT_CREATE_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

// DSN builds a postgres connection URL with certificate validation parameters.
func (d DatabaseConfig) DSN() string {
	query := url.Values{}
	query.Set("sslmode", d.SSLMode)
	query.Set("sslrootcert", d.SSLRootCert)
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
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

// PublishTimeout limits a single stream append.
func (e EventsConfig) PublishTimeout() time.Duration {
	return time.Duration(e.PublishTimeoutMillis) * time.Millisecond
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envReader parses typed variables and keeps every parse failure.
type envReader struct {
	errs []error
}

func (r *envReader) getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}
