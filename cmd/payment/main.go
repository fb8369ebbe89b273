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
	"payvost/internal/handler"
	"payvost/internal/metrics"
	"payvost/internal/middleware"
	"payvost/internal/notification"
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
	log := logger.NewWithLevel("payment-service", cfg.Log.Level)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Payment Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	db, err := bootstrap.OpenPostgres(cfg.Database)
	if err != nil {
		log.Fatal("Database unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()
	log.Info("Database connected", nil)

	redisClient, err := bootstrap.OpenRedis(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatal("Redis unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer redisClient.Close()
	log.Info("Redis connected", nil)

	// With Kafka the hub is fed from the topic, which also carries events
	// produced by the webhook service.
	hub := notification.NewHub(log)
	opts := bootstrap.Options{}
	kafkaFeed := len(cfg.Kafka.Brokers) > 0
	if !kafkaFeed {
		opts.FeedSink = hub
	}

	core, err := bootstrap.NewCore(cfg, db, redisClient, log, opts)
	if err != nil {
		log.Fatal("Failed to build services", map[string]interface{}{"error": err.Error()})
	}
	defer core.Close()

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if kafkaFeed {
		relay := notification.NewRelay(notification.NewFeedReader(cfg.Kafka.Brokers, cfg.Kafka.Topic), hub, log)
		defer relay.Close()
		go func() {
			if err := relay.Run(relayCtx); err != nil {
				log.Error("Admin feed relay stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	paymentHandler := handler.NewPaymentHandler(core.Payments, log)
	walletHandler := handler.NewWalletHandler(core.Wallets, core.Ledger, log)
	adminHandler := handler.NewAdminHandler(core.Registry, core.Configs, core.Router, core.Ledger, hub, log)
	systemHandler := handler.NewSystemHandler("payment", db, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, log)

	r := mux.NewRouter()

	r.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.Metrics)
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.NewRateLimiter(redisClient, "global", cfg.RateLimit.Global, cfg.RateLimit.Window).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, cfg.Idempotency.TTL, log)

	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, "api", cfg.RateLimit.API, cfg.RateLimit.Window).Limit)

	api.Handle("/payment-intents", idemMW.Require(http.HandlerFunc(paymentHandler.CreateIntent))).Methods("POST")
	api.HandleFunc("/payment-intents", paymentHandler.ListIntents).Methods("GET")
	api.HandleFunc("/payment-intents/{reference}", paymentHandler.GetIntent).Methods("GET")
	api.HandleFunc("/payment-intents/{reference}/cancel", paymentHandler.CancelIntent).Methods("POST")
	api.HandleFunc("/payment-intents/{reference}/sync", paymentHandler.SyncIntent).Methods("POST")
	api.HandleFunc("/routing/quote", paymentHandler.Quote).Methods("POST")

	api.HandleFunc("/wallets", walletHandler.ListWallets).Methods("GET")
	api.HandleFunc("/wallets/{id}/ledger", walletHandler.GetLedger).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/providers", adminHandler.ListProviders).Methods("GET")
	admin.HandleFunc("/providers/{provider}", adminHandler.UpdateProvider).Methods("PUT")
	admin.HandleFunc("/routing/analytics", adminHandler.RoutingAnalytics).Methods("GET")
	admin.HandleFunc("/ledger/{wallet_id}/verify", adminHandler.VerifyLedger).Methods("GET")
	admin.HandleFunc("/feed", adminHandler.Feed).Methods("GET")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Payment service started", map[string]interface{}{
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

	log.Info("Shutting down payment service...", nil)
	stopRelay()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Payment service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Payment service stopped gracefully", nil)
}
