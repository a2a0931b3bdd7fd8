package handler

import (
	"time"

	"eromax-ledger/internal/adapter/http/middleware"
	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	WithdrawalSvc  ports.WithdrawalService
	SettlementSvc  ports.SettlementService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Location       *time.Location // day boundaries for date filters and settlement
	MetricsPath    string         // empty = /metrics not exposed
	OpenAPISpec    []byte         // nil = swagger disabled
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsPath != "" {
		r.GET(deps.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	docs := NewAPIDocs(deps.OpenAPISpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", docs.UI)
		swagger.GET("/spec", docs.Spec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	admin := middleware.RequireRole(domain.RoleAdmin)
	adminOrClient := middleware.RequireRole(domain.RoleAdmin, domain.RoleClient)
	client := middleware.RequireRole(domain.RoleClient)

	// API v1 routes, all JWT-authenticated
	v1 := r.Group("/api/v1",
		middleware.JWTAuth(deps.TokenSvc, deps.Logger),
		middleware.AuditLog(logger.WithComponent(deps.Logger, "audit")),
	)

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.LedgerSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("", adminOrClient, rl("read"), walletHandler.List)
		wallets.POST("/sync", admin, rl("money"), walletHandler.Sync)
		wallets.GET("/:id", adminOrClient, rl("read"), walletHandler.Get)
		wallets.PATCH("/:id/toggle", admin, rl("money"), walletHandler.Toggle)
		wallets.POST("/:id/deposit", admin, rl("money"), middleware.IdempotencyKey(), walletHandler.Deposit)
		wallets.POST("/:id/withdraw", admin, rl("money"), middleware.IdempotencyKey(), walletHandler.Withdraw)
		wallets.POST("/:id/reset", admin, rl("money"), walletHandler.Reset)
		wallets.GET("/:id/reconcile", admin, rl("read"), walletHandler.Reconcile)
	}
	v1.GET("/stores/:id/wallet", adminOrClient, rl("read"), walletHandler.GetByStore)

	transferHandler := NewTransferHandler(deps.LedgerSvc, deps.WalletSvc, deps.Location)
	transfers := v1.Group("/transfers")
	{
		transfers.GET("", adminOrClient, rl("read"), transferHandler.List)
		transfers.GET("/:id", adminOrClient, rl("read"), transferHandler.Get)
		transfers.POST("/:id/cancel", admin, rl("money"), transferHandler.Cancel)
		transfers.POST("/:id/validate", admin, rl("money"), transferHandler.Validate)
		transfers.POST("/:id/correct", admin, rl("money"), transferHandler.Correct)
		transfers.DELETE("/:id", admin, rl("money"), transferHandler.Delete)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.WalletSvc, deps.Location)
	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", client, rl("withdrawal"), withdrawalHandler.Create)
		withdrawals.POST("/admin", admin, rl("withdrawal"), withdrawalHandler.CreateAdmin)
		withdrawals.GET("", adminOrClient, rl("read"), withdrawalHandler.List)
		withdrawals.GET("/:id", adminOrClient, rl("read"), withdrawalHandler.Get)
		withdrawals.PATCH("/:id/status", admin, rl("withdrawal"), withdrawalHandler.UpdateStatus)
		withdrawals.PUT("/:id/proof", admin, rl("withdrawal"), withdrawalHandler.AttachProof)
	}

	settlementHandler := NewSettlementHandler(deps.SettlementSvc, deps.Location)
	settlement := v1.Group("/settlement", admin)
	{
		settlement.POST("/daily", rl("settlement"), settlementHandler.RunDaily)
		settlement.POST("/pickups", rl("settlement"), settlementHandler.RunPickups)
	}

	return r
}
