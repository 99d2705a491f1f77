// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"millstock/internal/core/tenant"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/intake"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/loads"
	"millstock/internal/domain/lots"
	"millstock/internal/domain/reconcile"
	"millstock/internal/domain/reports"
	"millstock/internal/infrastructure/cache"
	"millstock/internal/infrastructure/http/v1/handlers"
	"millstock/internal/infrastructure/http/v1/middleware"
	"millstock/internal/infrastructure/storage/postgres/ledger_repo"
	"millstock/internal/infrastructure/storage/postgres/load_repo"
	"millstock/internal/infrastructure/storage/postgres/lot_repo"
	"millstock/internal/infrastructure/storage/postgres/report_repo"
	"millstock/pkg/logger"
	"millstock/pkg/numerator"
)

// RouterConfig holds router configuration for multi-tenant architecture.
type RouterConfig struct {
	// TenantManager manages database connections for all tenants
	TenantManager *tenant.Manager

	// MetaPool is connection to meta-database (for health checks)
	MetaPool *pgxpool.Pool

	// Logger for request logging
	Logger *logger.Logger

	// RedisClient backs the per-tenant stock totals cache. Optional; with a
	// nil client every totals read goes to the database.
	RedisClient *redis.Client
}

// NewRouter creates and configures the Gin router for multi-tenant architecture.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.MetaPool, cfg.TenantManager, cfg.RedisClient)
	healthHandler.RegisterRoutes(router.Group("/health"))

	// API v1 - every route resolves the tenant database first
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.TenantDB(cfg.TenantManager))
	apiV1.Use(middleware.Operator())
	registerRoutes(apiV1, cfg)

	return router
}

// registerRoutes wires repositories, services and handlers.
// Repos and services are created once; the TxManager and pool come from the
// request context per tenant.
func registerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	totalsCache := cache.NewTotalsCache(cfg.RedisClient, 0)

	lotRepo := lot_repo.NewLotRepo()
	loadRepo := load_repo.NewLoadRepo()
	ledgerRepo := ledger_repo.NewLedgerRepo()
	reportRepo := report_repo.NewReportRepo()

	ledgerService := ledger.NewService(ledgerRepo)
	lotService := lots.NewService(lotRepo)
	intakeService := intake.NewService(lotRepo, ledgerService, nil)
	planner := allocation.NewPlanner(lotRepo)
	loadService := loads.NewService(loadRepo, lotRepo, ledgerService, numerator.NewFromContext(), nil)
	engine := reconcile.NewEngine(loadRepo, lotRepo, ledgerService, reportRepo, nil)
	reportService := reports.NewService(reportRepo)

	lotsHandler := handlers.NewLotsHandler(baseHandler, lotService, intakeService, totalsCache)
	lotsHandler.RegisterRoutes(rg.Group("/lots"))

	loadsHandler := handlers.NewLoadsHandler(baseHandler, planner, loadService, engine, totalsCache)
	loadsHandler.RegisterRoutes(rg.Group("/loads"))

	stockHandler := handlers.NewStockHandler(baseHandler, ledgerService, totalsCache)
	stockHandler.RegisterRoutes(rg.Group("/stock"))

	reportsHandler := handlers.NewReportsHandler(baseHandler, reportService)
	reportsHandler.RegisterRoutes(rg.Group("/reports"))
}
