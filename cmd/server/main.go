package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/internal/kvstore"
	"github.com/mamadbah2/storefront/internal/repository/mongodb"
	"github.com/mamadbah2/storefront/internal/repository/sheets"
	"github.com/mamadbah2/storefront/internal/scheduler"
	"github.com/mamadbah2/storefront/internal/server/handlers"
	"github.com/mamadbah2/storefront/internal/server/router"
	authsvc "github.com/mamadbah2/storefront/internal/service/auth"
	catalogsvc "github.com/mamadbah2/storefront/internal/service/catalog"
	orderssvc "github.com/mamadbah2/storefront/internal/service/orders"
	possvc "github.com/mamadbah2/storefront/internal/service/pos"
	reportingsvc "github.com/mamadbah2/storefront/internal/service/reporting"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
	"github.com/mamadbah2/storefront/pkg/clients/sheetcsv"
	whatsappclient "github.com/mamadbah2/storefront/pkg/clients/whatsapp"
	"github.com/mamadbah2/storefront/pkg/logger"
)

const sessionSweepSpec = "@every 15m"

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx := context.Background()

	store, err := kvstore.Open(ctx, cfg.Cache, baseLogger.Named("kvstore"))
	if err != nil {
		baseLogger.Fatal("failed to open cache store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			baseLogger.Error("failed to close cache store", zap.Error(err))
		}
	}()

	var (
		fetcher    catalogsvc.Fetcher
		sheetsRepo sheets.Repository
	)
	switch cfg.Sources.Mode {
	case "sheets":
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetsRepo = repo
		fetcher = catalogsvc.NewSheetsFetcher(repo, cfg.Sheets)
	default:
		fetcher = catalogsvc.NewCSVFetcher(sheetcsv.NewClient(cfg.Sources.ClientTimeout), cfg.Sources)
	}

	alerts := baseLogger.Named("alerts")
	runner := fetch.NewRunner(baseLogger.Named("fetch"),
		fetch.WithDefaults(fetch.Options{MaxRetries: cfg.Fetch.MaxRetries, RetryDelay: cfg.Fetch.RetryDelay}),
		fetch.WithAlerter(fetch.AlerterFunc(func(_ context.Context, source string, err error) {
			alerts.Error("sheet data unavailable", zap.String("source", source), zap.Error(err))
		})))
	catalogSvc := catalogsvc.NewService(fetcher, runner, baseLogger.Named("svc.catalog"))

	refresh := scheduler.NewRefreshScheduler(baseLogger.Named("refresh"))
	application, err := app.New(store, catalogSvc, refresh, baseLogger.Named("app"))
	if err != nil {
		baseLogger.Fatal("failed to init application", zap.Error(err))
	}
	refresh.Start()
	defer refresh.Stop()

	var sender possvc.MessageSender
	if cfg.WhatsApp.AccessToken != "" {
		sender = whatsappclient.NewClient(cfg.WhatsApp)
		baseLogger.Info("receipt sharing enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, receipt sharing disabled")
	}

	webhook := appscript.NewClient(cfg.Webhook)
	posSvc := possvc.NewService(webhook, sender, cfg.Store, baseLogger.Named("svc.pos"))
	ordersSvc := orderssvc.NewService(webhook, posSvc, baseLogger.Named("svc.orders"))
	authSvc := authsvc.NewService(cfg.Auth, application, baseLogger.Named("svc.auth"))

	var reportOpts []reportingsvc.Option
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		reportOpts = append(reportOpts, reportingsvc.WithArchive(mongoRepo))
	}
	if sheetsRepo != nil && cfg.Reporting.SheetRange != "" {
		reportOpts = append(reportOpts, reportingsvc.WithSheetSummary(sheetsRepo, cfg.Reporting.SheetRange))
	}
	reportingSvc := reportingsvc.NewService(application, cfg.Store, baseLogger.Named("svc.reporting"), reportOpts...)

	sched := scheduler.NewScheduler(cfg.Reporting.CronSchedule, cfg.Store.Location(), reportingSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()
	if err := sched.Every(sessionSweepSpec, "sweep idle sessions", func(ctx context.Context) {
		application.SweepSessions(ctx, app.SessionIdleTimeout)
	}); err != nil {
		baseLogger.Fatal("failed to schedule session sweep", zap.Error(err))
	}

	engine := router.New(router.Handlers{
		Middleware: handlers.NewMiddleware(application, authSvc, baseLogger.Named("handlers.middleware")),
		Auth:       handlers.NewAuthHandler(application, authSvc, baseLogger.Named("handlers.auth")),
		Catalog:    handlers.NewCatalogHandler(application, baseLogger.Named("handlers.catalog")),
		Cart:       handlers.NewCartHandler(application, baseLogger.Named("handlers.cart")),
		Sales:      handlers.NewSalesHandler(application, posSvc, ordersSvc, baseLogger.Named("handlers.sales")),
		Reports:    handlers.NewReportHandler(reportingSvc, baseLogger.Named("handlers.reports")),
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("source_mode", cfg.Sources.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	application.Close(shutdownCtx)
}
