package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpHandlers "github.com/wizarding-anonymous/cryo-sub006/internal/adapters/http/handlers"
	httpMiddleware "github.com/wizarding-anonymous/cryo-sub006/internal/adapters/http/middleware"
	redisstorage "github.com/wizarding-anonymous/cryo-sub006/internal/adapters/storage/redis"
	sqlitestorage "github.com/wizarding-anonymous/cryo-sub006/internal/adapters/storage/sqlite"
	"github.com/wizarding-anonymous/cryo-sub006/internal/config"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	counterStore, closeCounter, err := initCounterStore(cfg.Storage.Redis)
	if err != nil {
		log.Fatalf("failed to init counter store: %v", err)
	}
	defer closeCounter()

	blockStore, err := sqlitestorage.New(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to init block store: %v", err)
	}
	defer func() {
		if err := blockStore.Close(); err != nil {
			log.Printf("failed to close block store: %v", err)
		}
	}()

	limiter, err := services.NewRateLimiterService(counterStore, cfg.Security.MaxBackoff)
	if err != nil {
		log.Fatalf("failed to create rate limiter: %v", err)
	}

	gate, err := services.NewBlockGateService(counterStore, blockStore, logger)
	if err != nil {
		log.Fatalf("failed to create block gate: %v", err)
	}

	scorer, err := services.NewRiskScorerService(limiter, gate, cfg.Security.Risk, services.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to create risk scorer: %v", err)
	}

	securityHandler := httpHandlers.NewSecurityHandler(scorer, gate, limiter, blockStore)

	r := chi.NewRouter()
	r.Use(httpMiddleware.NewRateLimiterMiddleware(limiter, cfg.Security.RouteRule.Limit, cfg.Security.RouteRule.Window))

	r.Get("/health", httpHandlers.HealthHandler)

	r.Route("/v1/security", func(r chi.Router) {
		r.Post("/login-check", securityHandler.LoginCheck)
		r.Post("/transaction-check", securityHandler.TransactionCheck)
		r.Post("/login-failure", securityHandler.LoginFailure)
		r.Get("/risk-score", securityHandler.RiskScore)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/blocks", securityHandler.CreateBlock)
		r.Get("/blocks", securityHandler.ListBlocks)
		r.Delete("/rate-limits", securityHandler.ResetRateLimit)
		r.Get("/rate-limits", securityHandler.RemainingRequests)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func initCounterStore(cfg config.RedisConfig) (*redisstorage.Storage, func(), error) {
	storage, err := redisstorage.New(redisstorage.Config{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return storage, func() {
		if err := storage.Close(); err != nil {
			log.Printf("failed to close redis storage: %v", err)
		}
	}, nil
}
