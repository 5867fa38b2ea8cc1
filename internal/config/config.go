// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment identifies the deployment tier.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Configuration is the process-wide settings singleton: nested structs per
// concern, loaded once from the environment.
type Configuration struct {
	loaded bool

	Environment Environment
	Server      ServerConfig
	Frontend    FrontendConfig
	DB          DBConfig
	Redis       RedisConfig
	SMTP        SMTPConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	Ingestion   IngestionConfig
}

type ServerConfig struct {
	Port string
}

type FrontendConfig struct {
	URL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL string
}

type SMTPConfig struct {
	Host   string
	Port   string
	User   string
	Pass   string
	From   string
	Secure bool
}

type SessionConfig struct {
	Duration time.Duration
	CookieName string
}

type RateLimitConfig struct {
	LoginMax    int64
	LoginWindow time.Duration
}

// IngestionConfig bounds per-request OTLP payload sizes.
type IngestionConfig struct {
	MaxCompressedBytes   int64
	MaxDecompressedBytes int64
}

var (
	singleton *Configuration
	once      sync.Once
)

// Use returns the process-wide configuration, loading it from the
// environment on first use.
func Use() *Configuration {
	once.Do(func() {
		singleton = &Configuration{}
		singleton.load()
	})
	return singleton
}

func (c *Configuration) load() {
	if c.loaded {
		return
	}
	c.Environment = Environment(getEnv("APP_ENV", string(Development)))
	c.Server = ServerConfig{
		Port: getEnv("PORT", "8080"),
	}
	c.Frontend = FrontendConfig{
		URL: getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
	c.DB = DBConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Name:     getEnv("DB_NAME", "logtide"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	c.Redis = RedisConfig{
		URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
	}
	c.SMTP = SMTPConfig{
		Host:   getEnv("SMTP_HOST", ""),
		Port:   getEnv("SMTP_PORT", "587"),
		User:   getEnv("SMTP_USER", ""),
		Pass:   getEnv("SMTP_PASS", ""),
		From:   getEnv("SMTP_FROM", "alerts@logtide.local"),
		Secure: getEnvBool("SMTP_SECURE", false),
	}
	c.Session = SessionConfig{
		Duration:   getEnvDuration("SESSION_DURATION", 30*24*time.Hour),
		CookieName: getEnv("SESSION_COOKIE_NAME", "logtide_sid"),
	}
	c.RateLimit = RateLimitConfig{
		LoginMax:    getEnvInt("LOGIN_RATE_LIMIT_MAX", 10),
		LoginWindow: getEnvDuration("LOGIN_RATE_LIMIT_WINDOW", time.Minute),
	}
	c.Ingestion = IngestionConfig{
		MaxCompressedBytes:   getEnvInt("OTLP_MAX_COMPRESSED_BYTES", 10<<20),
		MaxDecompressedBytes: getEnvInt("OTLP_MAX_DECOMPRESSED_BYTES", 64<<20),
	}
	c.loaded = true
}

// IsProduction reports whether the process is running in production.
func (c *Configuration) IsProduction() bool {
	return c.Environment == Production
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}
