package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"payvost/internal/bootstrap"
	"payvost/internal/domain"
	"payvost/internal/handler"
	"payvost/internal/metrics"
	"payvost/internal/middleware"
	"payvost/internal/scheduler"
	"payvost/internal/webhook"
	"payvost/pkg/config"
	"payvost/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel("webhook-service", cfg.Log.Level)

	if err := cfg.ValidateWebhooks(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := bootstrap.OpenPostgres(cfg.Database)
	if err != nil {
		log.Fatal("Database unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	redisClient, err := bootstrap.OpenRedis(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatal("Redis unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer redisClient.Close()

	core, err := bootstrap.NewCore(cfg, db, redisClient, log, bootstrap.Options{})
	if err != nil {
		log.Fatal("Failed to build services", map[string]interface{}{"error": err.Error()})
	}
	defer core.Close()

	if cfg.Reconcile.Enabled {
		reconciler := scheduler.NewScheduler(core.Intents, core.Payments, cfg.Reconcile, log)
		reconciler.Start()
		defer reconciler.Stop()
	}

	service := webhook.NewService(core.Events, core.Transactions, core.Payments, log, verifiers(cfg)...)
	webhookHandler := handler.NewWebhookHandler(service, log)
	systemHandler := handler.NewSystemHandler("webhooks", db, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, log)

	r := mux.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.Metrics)

	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	hooks := r.PathPrefix("/webhooks").Subrouter()
	hooks.Use(middleware.BodyLimit(cfg.Webhooks.MaxBodyBytes))
	hooks.HandleFunc("/{provider}", webhookHandler.Receive).Methods("POST")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Webhooks.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Webhook service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down webhook service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Webhook service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Webhook service stopped gracefully", nil)
}

// verifiers builds one verifier per provider that has credentials.
func verifiers(cfg *config.Config) []webhook.Verifier {
	var out []webhook.Verifier
	if cfg.Stripe.WebhookSecret != "" {
		out = append(out, webhook.NewStripeVerifier(cfg.Stripe.WebhookSecret))
	}
	if cfg.Paystack.SecretKey != "" {
		out = append(out, webhook.NewPaystackVerifier(cfg.Paystack.SecretKey))
	}
	if cfg.Flutterwave.SecretHash != "" {
		out = append(out, webhook.NewFlutterwaveVerifier(cfg.Flutterwave.SecretHash))
	}
	if cfg.SEPA.Enabled {
		out = append(out, webhook.NewRailVerifier(domain.ProviderSEPA, cfg.SEPA.SigningSecret))
	}
	if cfg.FedNow.Enabled {
		out = append(out, webhook.NewRailVerifier(domain.ProviderFedNow, cfg.FedNow.SigningSecret))
	}
	return out
}
