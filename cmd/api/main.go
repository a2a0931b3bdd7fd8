package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eromax-ledger/config"
	httpHandler "eromax-ledger/internal/adapter/http/handler"
	pgStorage "eromax-ledger/internal/adapter/storage/postgres"
	redisStorage "eromax-ledger/internal/adapter/storage/redis"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/internal/service"
	"eromax-ledger/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("EWL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Eromax wallet ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	ctx := context.Background()

	// Schema migrations
	if cfg.Database.MigrateOnStart {
		if err := pgStorage.Migrate(cfg.Database.MigrateURL(), log); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	storeRepo := pgStorage.NewStoreRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	parcelRepo := pgStorage.NewParcelRepo(pool)
	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	notificationRepo := pgStorage.NewNotificationRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool, logger.WithComponent(log, "transactor"))

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	jobLock := redisStorage.NewJobLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize business services
	loc := cfg.Settlement.Location()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	walletSvc := service.NewWalletService(walletRepo, storeRepo, transferRepo, transactor, logger.WithComponent(log, "wallet"))
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		transferRepo,
		parcelRepo,
		idempotencyRepo,
		idempotencyCache,
		transactor,
		cfg.Ledger.IdempotencyTTL,
		logger.WithComponent(log, "ledger"),
	)
	withdrawalSvc := service.NewWithdrawalService(
		walletRepo,
		transferRepo,
		withdrawalRepo,
		storeRepo,
		paymentRepo,
		transactor,
		decimal.NewFromFloat(cfg.Ledger.WithdrawalFee),
		decimal.NewFromFloat(cfg.Ledger.MinWithdrawal),
		logger.WithComponent(log, "withdrawal"),
	)
	notifier := service.NewNotificationService(notificationRepo, logger.WithComponent(log, "notification"))
	settlementLog := logger.WithComponent(log, "settlement")
	settlementSvc := service.NewSettlementService(
		parcelRepo,
		invoiceRepo,
		walletRepo,
		transferRepo,
		notifier,
		jobLock,
		transactor,
		decimal.NewFromFloat(cfg.Settlement.FragileFee),
		cfg.Settlement.LockTTL,
		loc,
		settlementLog,
	)

	// Give every store a wallet before serving traffic
	if created, err := walletSvc.CreateMissingWallets(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to create missing wallets")
	} else if created > 0 {
		log.Info().Int("created", created).Msg("Missing wallets created")
	}

	// End-of-day settlement jobs
	var scheduler *service.SettlementScheduler
	if cfg.Settlement.Enabled {
		scheduler, err = service.NewSettlementScheduler(
			settlementSvc,
			cfg.Settlement.ClientSchedule,
			cfg.Settlement.PickupSchedule,
			loc,
			settlementLog,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule settlement jobs")
		}
		scheduler.Start()
		log.Info().
			Str("daily", cfg.Settlement.ClientSchedule).
			Str("pickups", cfg.Settlement.PickupSchedule).
			Str("timezone", loc.String()).
			Msg("Settlement scheduler started")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err == nil {
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		WithdrawalSvc:  withdrawalSvc,
		SettlementSvc:  settlementSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Location:       loc,
		MetricsPath:    metricsPath,
		OpenAPISpec:    specBytes,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let a running settlement batch finish its current group
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Settlement scheduler did not stop in time")
		}
	}

	log.Info().Msg("Server exited")
}
