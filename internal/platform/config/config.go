// Package config loads server settings from the environment.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full runtime configuration. Empty DatabaseURL, RedisURL or
// Kafka brokers select the in-process alternative for that dependency.
type Config struct {
	Environment     string        `env:"CARDFORGE_ENV" envDefault:"development"`
	Addr            string        `env:"CARDFORGE_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AdminToken      string        `env:"ADMIN_TOKEN"`

	Log       Log       `envPrefix:"LOG_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Audit     Audit     `envPrefix:"AUDIT_"`
	Resave    Resave    `envPrefix:"RESAVE_"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type Database struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

type Redis struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"500ms"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"500ms"`
}

type Auth struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"cardforge"`
	SecureCookies bool   `env:"SECURE_COOKIES"`
	// TrustProxy lets X-Forwarded-For and X-Real-IP decide the client IP.
	TrustProxy bool `env:"TRUST_PROXY"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"AUDIT_TOPIC" envDefault:"cardforge.audit"`
	// Partitions and ReplicationFactor apply only when the topic is created.
	Partitions        int32 `env:"AUDIT_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16 `env:"REPLICATION_FACTOR" envDefault:"1"`
}

type RateLimit struct {
	Disabled      bool          `env:"DISABLED"`
	LoginLimit    int           `env:"LOGIN" envDefault:"10"`
	RegisterLimit int           `env:"REGISTER" envDefault:"5"`
	Window        time.Duration `env:"WINDOW" envDefault:"1m"`
}

type Audit struct {
	BufferSize int `env:"BUFFER_SIZE" envDefault:"1024"`
}

type Resave struct {
	Concurrency int `env:"CONCURRENCY" envDefault:"8"`
	PageSize    int `env:"PAGE_SIZE" envDefault:"100"`
}

// IsProduction reports whether development defaults must be refused.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if c.Auth.JWTSigningKey == "" {
		if c.IsProduction() {
			return errors.New("AUTH_JWT_SIGNING_KEY is required in production")
		}
		c.Auth.JWTSigningKey = devSigningKey
	}
	if c.IsProduction() {
		c.Auth.SecureCookies = true
	}
	if c.RateLimit.LoginLimit <= 0 || c.RateLimit.RegisterLimit <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limits and window must be positive")
	}
	if c.Resave.Concurrency <= 0 || c.Resave.PageSize <= 0 {
		return errors.New("resave concurrency and page size must be positive")
	}
	if c.Kafka.Partitions <= 0 || c.Kafka.ReplicationFactor <= 0 {
		return errors.New("kafka partitions and replication factor must be positive")
	}
	return nil
}
