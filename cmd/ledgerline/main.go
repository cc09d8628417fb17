package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline-erp/ledgerline/internal/app"
	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/credit"
	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/platform/cache"
	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/purchasing"
	"github.com/ledgerline-erp/ledgerline/internal/returns"
	"github.com/ledgerline-erp/ledgerline/internal/sales"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
	"github.com/ledgerline-erp/ledgerline/internal/transfers"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caches disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	publisher := events.NewAsynqPublisher(asynqClient)

	auditLogger := shared.NewAuditLogger(pool)
	sequences := shared.NewSequenceStore(pool)

	productCache := catalog.NewProductCache(redisClient, cfg.CacheTTL)
	customerCache := credit.NewCustomerCache(redisClient, cfg.CacheTTL)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, productCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, publisher, auditLogger, catalogService, logger)
	stockHandler := stock.NewHandler(logger, stockService)

	creditRepo := credit.NewRepository(pool)
	creditService := credit.NewService(creditRepo, publisher, auditLogger, customerCache, logger)
	creditHandler := credit.NewHandler(logger, creditService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, catalogRepo, stockService, creditService, sequences, publisher, auditLogger, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	returnsRepo := returns.NewRepository(pool)
	returnsService := returns.NewService(returnsRepo, stockService, catalogRepo, sequences, auditLogger, logger)
	returnsHandler := returns.NewHandler(logger, returnsService)

	transfersRepo := transfers.NewRepository(pool)
	transfersService := transfers.NewService(transfersRepo, stockService, sequences, auditLogger, logger)
	transfersHandler := transfers.NewHandler(logger, transfersService)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, stockService, sequences, auditLogger, logger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              pool,
		CatalogHandler:    catalogHandler,
		StockHandler:      stockHandler,
		CreditHandler:     creditHandler,
		SalesHandler:      salesHandler,
		ReturnsHandler:    returnsHandler,
		TransfersHandler:  transfersHandler,
		PurchasingHandler: purchasingHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
