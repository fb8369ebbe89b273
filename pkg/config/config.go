// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server      ServerConfig
	Webhooks    WebhookServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Email       EmailConfig
	Kafka       KafkaConfig
	Log         LogConfig
	Breaker     BreakerConfig
	Idempotency IdempotencyConfig
	RateLimit   RateLimitConfig
	Reconcile   ReconcileConfig
	Stripe      StripeConfig
	Paystack    PaystackConfig
	Flutterwave FlutterwaveConfig
	SEPA        RailConfig `env-prefix:"SEPA_"`
	FedNow      RailConfig `env-prefix:"FEDNOW_"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	MaxBodyBytes int64         `env:"SERVER_MAX_BODY_BYTES" env-default:"1048576"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

type WebhookServerConfig struct {
	Port         string `env:"WEBHOOK_PORT" env-default:"8081"`
	MaxBodyBytes int64  `env:"WEBHOOK_MAX_BODY_BYTES" env-default:"1048576"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

type RedisConfig struct {
	URL      string `env:"REDIS_URL" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"change-this-secret"`
}

type EmailConfig struct {
	SMTPHost     string `env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
}

// Enabled reports whether SMTP delivery is configured.
func (e EmailConfig) Enabled() bool {
	return strings.TrimSpace(e.SMTPHost) != "" && strings.TrimSpace(e.SMTPUsername) != ""
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_PAYMENT_TOPIC" env-default:"payvost.payments"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

type BreakerConfig struct {
	MaxFailures uint32        `env:"PROVIDER_BREAKER_MAX_FAILURES" env-default:"5"`
	Interval    time.Duration `env:"PROVIDER_BREAKER_INTERVAL" env-default:"60s"`
	Timeout     time.Duration `env:"PROVIDER_BREAKER_TIMEOUT" env-default:"30s"`
	HTTPTimeout time.Duration `env:"PROVIDER_HTTP_TIMEOUT" env-default:"15s"`
}

type IdempotencyConfig struct {
	TTL time.Duration `env:"IDEMPOTENCY_TTL" env-default:"24h"`
}

type RateLimitConfig struct {
	Global int           `env:"RATE_LIMIT_GLOBAL" env-default:"150"`
	API    int           `env:"RATE_LIMIT_API" env-default:"60"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// ReconcileConfig drives the poller for intents whose callback never arrived.
type ReconcileConfig struct {
	Enabled    bool          `env:"RECONCILE_ENABLED" env-default:"true"`
	Interval   time.Duration `env:"RECONCILE_INTERVAL" env-default:"1m"`
	StaleAfter time.Duration `env:"RECONCILE_STALE_AFTER" env-default:"15m"`
	BatchSize  int           `env:"RECONCILE_BATCH_SIZE" env-default:"50"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type PaystackConfig struct {
	SecretKey   string `env:"PAYSTACK_SECRET_KEY"`
	BaseURL     string `env:"PAYSTACK_BASE_URL" env-default:"https://api.paystack.co"`
	CallbackURL string `env:"PAYSTACK_CALLBACK_URL"`
}

type FlutterwaveConfig struct {
	SecretKey   string `env:"FLUTTERWAVE_SECRET_KEY"`
	SecretHash  string `env:"FLUTTERWAVE_SECRET_HASH"`
	BaseURL     string `env:"FLUTTERWAVE_BASE_URL" env-default:"https://api.flutterwave.com"`
	RedirectURL string `env:"FLUTTERWAVE_REDIRECT_URL"`
}

// RailConfig covers the bank-rail stubs that sign callbacks with a shared secret.
type RailConfig struct {
	SigningSecret string `env:"SIGNING_SECRET"`
	Enabled       bool   `env:"ENABLED" env-default:"true"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.Redis.URL = normalizeRedisURL(cfg.Redis.URL)
	return &cfg, nil
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}
