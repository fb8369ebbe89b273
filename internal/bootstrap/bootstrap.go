// Package bootstrap wires the services shared by the API and webhook processes.
package bootstrap

import (
	"context"
	"time"

	"payvost/internal/domain"
	"payvost/internal/ledger"
	"payvost/internal/notification"
	"payvost/internal/payment"
	"payvost/internal/provider"
	"payvost/internal/repository/postgres"
	"payvost/internal/routing"
	"payvost/internal/wallet"
	"payvost/pkg/cache"
	"payvost/pkg/config"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
	"payvost/pkg/mailer"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const providerConfigTTL = 30 * time.Second

// OpenPostgres connects and applies the pool settings.
func OpenPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return client, nil
}

// Options tweak what Core builds for a given process.
type Options struct {
	// FeedSink receives events directly. Leave nil to rely on the Kafka relay.
	FeedSink notification.Sink
}

// Core is the object graph behind both HTTP processes.
type Core struct {
	Configs      *provider.ConfigStore
	Registry     *provider.Registry
	Router       *routing.Router
	Ledger       *ledger.Service
	Wallets      *wallet.Service
	Payments     *payment.Service
	Notifier     *notification.Dispatcher
	Intents      *postgres.PaymentIntentRepository
	Transactions *postgres.TransactionRepository
	Events       *postgres.WebhookEventRepository

	closers []func() error
}

func NewCore(cfg *config.Config, db *sqlx.DB, rdb redis.Cmdable, log logger.Logger, opts Options) (*Core, error) {
	c := &Core{
		Intents:      postgres.NewPaymentIntentRepository(db),
		Transactions: postgres.NewTransactionRepository(db),
		Events:       postgres.NewWebhookEventRepository(db),
	}

	c.Configs = provider.NewConfigStore(
		postgres.NewProviderConfigRepository(db),
		cache.NewFromClient(rdb, "payvost:"),
		providerConfigTTL,
		log,
	)

	registry, err := NewRegistry(cfg, c.Configs, log)
	if err != nil {
		return nil, err
	}
	c.Registry = registry

	c.Router = routing.NewRouter(registry, postgres.NewRoutingRepository(db), log)
	c.Ledger = ledger.NewService(postgres.NewLedgerRepository(db), log)
	c.Wallets = wallet.NewService(postgres.NewWalletRepository(db), log)

	var sinks []notification.Sink
	if cfg.Email.Enabled() {
		m := mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
		sinks = append(sinks, notification.NewEmailSink(m, log))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ks := notification.NewKafkaSink(notification.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		c.closers = append(c.closers, ks.Close)
		sinks = append(sinks, ks)
	}
	if opts.FeedSink != nil {
		sinks = append(sinks, opts.FeedSink)
	}
	c.Notifier = notification.NewDispatcher(log, sinks...)

	c.Payments = payment.NewService(
		c.Intents,
		c.Wallets,
		c.Router,
		c.Ledger,
		registry,
		c.Notifier,
		log,
	)
	return c, nil
}

// NewRegistry registers every configured provider behind its own breaker.
// Registration order decides routing ties.
func NewRegistry(cfg *config.Config, configs provider.ConfigSource, log logger.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry(configs, log)

	var providers []provider.Provider
	if cfg.Stripe.SecretKey != "" {
		providers = append(providers, provider.NewStripeProvider(cfg.Stripe.SecretKey))
	}
	if cfg.Paystack.SecretKey != "" {
		providers = append(providers, provider.NewPaystackProvider(cfg.Paystack, cfg.Breaker))
	}
	if cfg.Flutterwave.SecretKey != "" {
		providers = append(providers, provider.NewFlutterwaveProvider(cfg.Flutterwave, cfg.Breaker))
	}
	if cfg.SEPA.Enabled {
		providers = append(providers, provider.NewSEPAProvider())
	}
	if cfg.FedNow.Enabled {
		providers = append(providers, provider.NewFedNowProvider())
	}

	ids := make([]domain.ProviderID, 0, len(providers))
	for _, p := range providers {
		if err := reg.Register(provider.WithBreaker(p, cfg.Breaker, log)); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID())
	}
	log.Info("Payment providers registered", map[string]interface{}{"providers": ids})
	return reg, nil
}

// Close flushes publishers.
func (c *Core) Close() error {
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
