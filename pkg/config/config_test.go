package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/payvost")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "cache:6379", cfg.Redis.URL)
	assert.Equal(t, "https://api.paystack.co", cfg.Paystack.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.True(t, cfg.SEPA.Enabled)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Reconcile.StaleAfter)
	assert.Equal(t, 50, cfg.Reconcile.BatchSize)
}

func TestLoad_RailPrefixes(t *testing.T) {
	t.Setenv("SEPA_SIGNING_SECRET", "sepa-secret")
	t.Setenv("FEDNOW_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sepa-secret", cfg.SEPA.SigningSecret)
	assert.False(t, cfg.FedNow.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateCore(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.URL = "localhost:6379"
	cfg.JWT.Secret = "change-this-secret"

	err := cfg.ValidateCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.Database.URL = "postgres://localhost/payvost"
	cfg.JWT.Secret = "s3cret"
	assert.NoError(t, cfg.ValidateCore())
}

func TestValidateWebhooks(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://localhost/payvost"
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.SEPA.Enabled = true

	err := cfg.ValidateWebhooks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "SEPA_SIGNING_SECRET")
	assert.NotContains(t, err.Error(), "FEDNOW_SIGNING_SECRET")
}
