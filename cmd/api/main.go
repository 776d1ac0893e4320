package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/api"
	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/cache"
	"github.com/josh-kwaku/wallet-ledger/internal/config"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/middleware"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
	"github.com/josh-kwaku/wallet-ledger/internal/service"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("wallet-ledger", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := repository.NewPostgresDB(connectCtx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var walletCache *cache.WalletCache
	var cachePinger interface{ Ping(context.Context) error }
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Warn("redis unavailable, running without wallet cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			walletCache = cache.NewWalletCache(rdb, cfg.WalletCacheTTL)
			cachePinger = walletCache
		}
	}

	var feeWallet *uuid.UUID
	if cfg.FeeWalletID != "" {
		id, err := uuid.Parse(cfg.FeeWalletID)
		if err != nil {
			slog.Error("invalid FEE_WALLET_ID", "error", err)
			os.Exit(1)
		}
		feeWallet = &id
	}

	units := uow.NewFactory(db)
	store := repository.NewLedgerStore(db)
	walletRepo := repository.NewWalletRepository(store)
	transactionRepo := repository.NewTransactionRepository(store)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	ledgerSvc := ledger.NewService(units, walletRepo, transactionRepo, notificationRepo, walletCache, ledger.Options{
		MaxRetries:     cfg.LedgerMaxRetries,
		FeeWalletID:    feeWallet,
		RecordFailures: cfg.RecordFailedTransactions,
	})
	userSvc := service.NewUserService(units, userRepo, walletRepo, domain.Currency(cfg.DefaultCurrency))
	notificationSvc := service.NewNotificationService(notificationRepo)
	archiver := service.NewNotificationArchiver(notificationRepo, logger, cfg.NotificationArchiveInterval, cfg.NotificationRetention)

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	authHandler := handler.NewAuthHandler(userSvc, tokens)
	walletHandler := handler.NewWalletHandler(ledgerSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	healthHandler := handler.NewHealthHandler(db, cachePinger)

	requireAuth := middleware.Auth(tokens)
	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(middleware.Idempotency(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	const specPath = "/docs/openapi.yaml"
	mux.HandleFunc("GET /docs", handler.ServeDocs(specPath))
	mux.HandleFunc("GET "+specPath, handler.ServeSpec(api.OpenAPISpec))

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.Handle("GET /api/v1/auth/profile", protected(authHandler.Profile))

	mux.Handle("GET /api/v1/wallet", protected(walletHandler.Get))
	mux.Handle("GET /api/v1/wallet/transactions", protected(walletHandler.Transactions))
	mux.Handle("POST /api/v1/wallet/deposits", protected(walletHandler.Deposit))
	mux.Handle("POST /api/v1/wallet/withdrawals", protected(walletHandler.Withdraw))
	mux.Handle("POST /api/v1/wallet/transfers", protected(walletHandler.Transfer))

	mux.Handle("GET /api/v1/notifications", protected(notificationHandler.List))
	mux.Handle("POST /api/v1/notifications/{id}/read", protected(notificationHandler.MarkRead))

	var root http.Handler = mux
	root = middleware.Recovery(root)
	root = middleware.Logging(logger)(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		archiver.Start(ctx)
	}()

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	wg.Wait()
	slog.Info("server stopped")
}
