package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration, read from MEDIASHARE_* variables.
type Config struct {
	Environment string `env:"ENV" envDefault:"dev"`

	Server   Server
	Log      Log
	Auth     Auth
	Database Database
	Redis    RedisConfig
	Cache    Cache
	Kafka    Kafka
	Tracing  Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:":9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type Auth struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"mediashare"`
	JWTAudience   string        `env:"JWT_AUDIENCE" envDefault:"mediashare-api"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// Database is empty when the registry should run on the in-memory store.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig is empty when the in-process cache should be used.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type Cache struct {
	TTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// Kafka is disabled when Brokers is empty; the outbox then only accumulates.
type Kafka struct {
	Brokers            []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic         string        `env:"KAFKA_AUDIT_TOPIC" envDefault:"mediashare.audit"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// Tracing selects a span exporter. "none" keeps the global no-op provider.
type Tracing struct {
	Exporter     string  `env:"TRACE_EXPORTER" envDefault:"none"`
	OTLPEndpoint string  `env:"OTLP_ENDPOINT"`
	SampleRate   float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1"`
}

// IsDev reports whether development defaults are allowed.
func (c Config) IsDev() bool {
	return c.Environment == "dev"
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MEDIASHARE_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = normalizeBrokers(cfg.Kafka.Brokers)
	if cfg.Auth.JWTSigningKey == "" && cfg.IsDev() {
		cfg.Auth.JWTSigningKey = devSigningKey
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("MEDIASHARE_JWT_SIGNING_KEY is required outside dev"))
	}
	if !c.IsDev() && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("development signing key cannot be used outside dev"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("MEDIASHARE_CACHE_TTL must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.OTLPEndpoint == "" {
			errs = append(errs, errors.New("MEDIASHARE_OTLP_ENDPOINT is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported trace exporter %q", c.Tracing.Exporter))
	}
	return errors.Join(errs...)
}

// normalizeBrokers trims each seed broker and drops blanks and repeats,
// keeping first-seen order.
func normalizeBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		b = strings.TrimSpace(b)
		if b != "" && !slices.Contains(out, b) {
			out = append(out, b)
		}
	}
	return out
}
