// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// ValidateWebhooks ensures every enabled provider has a way to verify callbacks.
func (c *Config) ValidateWebhooks() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Stripe.SecretKey != "" && strings.TrimSpace(c.Stripe.WebhookSecret) == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.Flutterwave.SecretKey != "" && strings.TrimSpace(c.Flutterwave.SecretHash) == "" {
		missing = append(missing, "FLUTTERWAVE_SECRET_HASH")
	}
	if c.SEPA.Enabled && strings.TrimSpace(c.SEPA.SigningSecret) == "" {
		missing = append(missing, "SEPA_SIGNING_SECRET")
	}
	if c.FedNow.Enabled && strings.TrimSpace(c.FedNow.SigningSecret) == "" {
		missing = append(missing, "FEDNOW_SIGNING_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing webhook configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}
