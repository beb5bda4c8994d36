package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/storefront/internal/api"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/shop"
	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so this one goes to stderr as is.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	db, err := database.NewConnection(context.Background(), &cfg.Database)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database")

	if cfg.Database.MigrateOnStart {
		m, err := database.NewMigrator(db, log)
		if err != nil {
			log.Fatal("prepare migrations", zap.Error(err))
		}
		if err := m.Up(); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
	}

	idempotency, closeIdempotency := newIdempotencyStore(cfg.Redis, log)
	defer closeIdempotency()

	svc := shop.NewService(db, payment.NewStripeGateway(cfg.Stripe, log), idempotency, log)

	router := api.NewRouter(
		api.RouterConfig{
			ServiceName:    cfg.App.Name,
			AllowOrigins:   cfg.Server.CORSAllowOrigins,
			MaxUploadBytes: maxUploadBytes,
		},
		svc,
		auth.NewTokenService(cfg.Auth),
		auth.NewSessionStore(cfg.Session),
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.App.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

// newIdempotencyStore uses Redis when configured so webhook deduplication
// is shared across instances, and falls back to process memory otherwise.
func newIdempotencyStore(cfg config.RedisConfig, log *zap.Logger) (payment.IdempotencyStore, func()) {
	if cfg.Addr == "" {
		log.Warn("redis not configured, webhook deduplication is per process")
		return payment.NewMemoryIdempotencyStore(payment.DefaultEventTTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("connect to redis", zap.Error(err), zap.String("addr", cfg.Addr))
	}

	return payment.NewRedisIdempotencyStore(client, payment.DefaultEventTTL), func() {
		_ = client.Close()
	}
}
