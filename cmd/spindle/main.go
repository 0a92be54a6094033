package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/spindle-erp/spindle-erp/internal/app"
	"github.com/spindle-erp/spindle-erp/internal/catalog"
	"github.com/spindle-erp/spindle-erp/internal/invoice"
	"github.com/spindle-erp/spindle-erp/internal/ledger"
	"github.com/spindle-erp/spindle-erp/internal/observability"
	"github.com/spindle-erp/spindle-erp/internal/party"
	"github.com/spindle-erp/spindle-erp/internal/platform/cache"
	"github.com/spindle-erp/spindle-erp/internal/platform/db"
	"github.com/spindle-erp/spindle-erp/internal/reports"
	"github.com/spindle-erp/spindle-erp/internal/settlement"
	"github.com/spindle-erp/spindle-erp/internal/shared"
	"github.com/spindle-erp/spindle-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, settlement locks and report cache degraded", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	partyMutex := shared.NewPartyMutex(redisClient, cfg.SettlementLockTTL)
	metrics := observability.NewMetrics()

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	partyRepo := party.NewRepository(dbpool)
	partyService := party.NewService(partyRepo)
	partyHandler := party.NewHandler(logger, partyService)

	invoiceRepo := invoice.NewRepository(dbpool)
	invoiceService := invoice.NewService(invoiceRepo, partyService, logger, invoice.IsUniqueViolation,
		invoice.Policy{AllowNegativeStock: cfg.AllowNegativeStock})
	invoiceHandler := invoice.NewHandler(logger, invoiceService)

	settlementRepo := settlement.NewRepository(dbpool)
	settlementService := settlement.NewService(settlementRepo, partyService, partyMutex, idempotencyStore, metrics, auditLogger, logger)
	settlementHandler := settlement.NewHandler(logger, settlementService)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Warn("jobs client init", slog.Any("error", err))
	}
	defer func() {
		if jobsClient != nil {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(jobsClient, inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		PartyHandler:      partyHandler,
		InvoiceHandler:    invoiceHandler,
		SettlementHandler: settlementHandler,
		CatalogHandler:    catalogHandler,
		ReportsHandler:    reportsHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
