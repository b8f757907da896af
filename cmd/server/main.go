package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appauction "github.com/plebmarket/backend/internal/application/auction"
	"github.com/plebmarket/backend/internal/application/payout"
	appsettlement "github.com/plebmarket/backend/internal/application/settlement"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
	"github.com/plebmarket/backend/internal/infrastructure/cache"
	"github.com/plebmarket/backend/internal/infrastructure/config"
	"github.com/plebmarket/backend/internal/infrastructure/lightning"
	"github.com/plebmarket/backend/internal/infrastructure/logger"
	"github.com/plebmarket/backend/internal/infrastructure/persistence"
	"github.com/plebmarket/backend/internal/infrastructure/settlementfeed"
	"github.com/plebmarket/backend/internal/infrastructure/telemetry"
	"github.com/plebmarket/backend/internal/interfaces/http/handler"
	"github.com/plebmarket/backend/internal/interfaces/http/middleware"
	"github.com/plebmarket/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromAppConfig(
		cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.App.Name, cfg.App.IsProduction()))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting auction settlement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("feed", cfg.Settlement.Feed),
	)

	ctx := context.Background()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log.Named(logger.ComponentTelemetry))
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = tel.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	settlementMetrics, err := telemetry.NewSettlementMetrics(tel.Meter("settlement"))
	if err != nil {
		log.Fatal("Failed to create settlement metrics", zap.Error(err))
	}

	// GORM logs go through zap
	gormLog := logger.NewGormLogger(log.Named(logger.ComponentGorm), logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, cfg.Database.DBName, false, log); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}
	if _, err := telemetry.RegisterPoolMetrics(tel.Meter("db"), db); err != nil {
		log.Warn("Failed to register database pool metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	auctionRepo := persistence.NewGormAuctionRepository(db.DB)
	bidRepo := persistence.NewGormBidRepository(db.DB)
	cursorRepo := persistence.NewGormCursorRepository(db.DB)
	settlementScope := persistence.NewGormSettlementScope(db.DB)

	gateway, err := newInvoiceGateway(cfg, settlementMetrics, log)
	if err != nil {
		log.Fatal("Failed to create invoice gateway", zap.Error(err))
	}

	feed, closeFeed, err := newSettlementFeed(cfg, bidRepo, auctionRepo, log)
	if err != nil {
		log.Fatal("Failed to create settlement feed", zap.Error(err))
	}
	defer closeFeed()

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log.Named(logger.ComponentIdempotency)),
	).Create(ctx, cfg.Payout.IdempotencyStore)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Application services
	reconciler := appsettlement.NewReconciler(
		feed,
		settlementScope,
		cursorRepo,
		appsettlement.ReconcilerConfig{
			ExtensionWindow: cfg.Settlement.ExtensionWindow,
			ReconnectDelay:  cfg.Settlement.ReconnectDelay,
		},
		log.Named(logger.ComponentReconciler),
		appsettlement.WithMetrics(settlementMetrics),
	)
	bidService := appauction.NewBidService(appauction.BidServiceConfig{
		Auctions:      auctionRepo,
		Bids:          bidRepo,
		Gateway:       gateway,
		InvoiceAmount: cfg.Auction.BidInvoiceAmount,
		Clock:         shared.SystemClock,
		Logger:        log.Named(logger.ComponentBids),
	})
	contributionService := appauction.NewContributionService(appauction.ContributionServiceConfig{
		Auctions:       auctionRepo,
		Bids:           bidRepo,
		Gateway:        gateway,
		Minimum:        cfg.Auction.MinimumContributionAmount,
		DefaultPercent: decimal.NewFromFloat(cfg.Auction.ContributionPercentDefault),
		Clock:          shared.SystemClock,
		Logger:         log.Named(logger.ComponentContributions),
	})
	payoutService := payout.NewService(auctionRepo, bidRepo, gateway, idempotencyStore,
		cfg.Payout.IdempotencyTTL, log.Named(logger.ComponentPayout))

	if cfg.Settlement.AutoStart {
		if err := reconciler.Start(ctx); err != nil {
			log.Fatal("Failed to start settlement reconciler", zap.Error(err))
		}
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: request ID first so every later layer can tag with it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	engine.Use(middleware.SpanAttributes(), middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(tel.Meter("http.server")))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodyBytes))

	routes := router.RegisterOperatorRoutes(engine, router.OperatorHandlers{
		System:        handler.NewSystemHandler(cfg.App.Name, version, db),
		Settlement:    handler.NewSettlementHandler(reconciler),
		Auction:       handler.NewAuctionHandler(bidService, contributionService, payoutService),
		OperatorToken: cfg.HTTP.OperatorToken,
	})
	for _, r := range routes {
		log.Debug("Route registered",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.Bool("guarded", r.Guarded),
		)
	}
	if cfg.HTTP.OperatorToken == "" {
		log.Warn("No operator token configured; settlement control and payouts are unauthenticated")
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// the reconciler commits its in-flight event before returning
	if err := reconciler.Stop(shutdownCtx); err != nil {
		log.Error("Settlement reconciler did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully",
		zap.Uint64("last_settle_index", reconciler.LastSettleIndex()),
	)
}

func newInvoiceGateway(cfg *config.Config, observer lightning.CallObserver, log *zap.Logger) (settlement.InvoiceGateway, error) {
	if cfg.Lightning.Mock {
		log.Warn("Using mock Lightning gateway; invoices are not real")
		return lightning.NewMockLndHubClient(lightning.WithLogger(log.Named(logger.ComponentLndHub))), nil
	}

	resolver, err := lightning.NewAddressResolver(&lightning.ResolverConfig{
		ProxyURL:        cfg.AddressResolver.ProxyURL,
		Timeout:         cfg.AddressResolver.Timeout,
		BreakerFailures: cfg.AddressResolver.BreakerFailures,
		BreakerTimeout:  cfg.AddressResolver.BreakerTimeout,
	},
		lightning.WithLogger(log.Named(logger.ComponentAddressResolver)),
		lightning.WithObserver(observer),
	)
	if err != nil {
		return nil, err
	}

	return lightning.NewLndHubClient(&lightning.LndHubConfig{
		URL:         cfg.Lightning.URL,
		Login:       cfg.Lightning.User,
		Password:    cfg.Lightning.Password,
		Timeout:     cfg.Lightning.Timeout,
		AuthBackoff: cfg.Lightning.AuthBackoff,
	}, resolver,
		lightning.WithLogger(log.Named(logger.ComponentLndHub)),
		lightning.WithObserver(observer),
	)
}

func newSettlementFeed(
	cfg *config.Config,
	bids *persistence.GormBidRepository,
	auctions *persistence.GormAuctionRepository,
	log *zap.Logger,
) (settlement.Feed, func(), error) {
	switch cfg.Settlement.Feed {
	case config.FeedMock:
		log.Warn("Using polling settlement feed; every open invoice will be reported as paid")
		feed := settlementfeed.NewPollingFeed(bids, auctions,
			settlementfeed.WithPollInterval(cfg.Settlement.MockPollInterval),
			settlementfeed.WithStartingIndex(cfg.Settlement.MockStartingIndex),
			settlementfeed.WithFeedLogger(log.Named(logger.ComponentPollingFeed)),
		)
		return feed, func() {}, nil
	default:
		feed, err := settlementfeed.NewLndFeed(settlementfeed.LndConfig{
			Host:         cfg.LND.Host,
			TLSCertPath:  cfg.LND.TLSCertPath,
			MacaroonPath: cfg.LND.MacaroonPath,
		}, log.Named(logger.ComponentLndFeed))
		if err != nil {
			return nil, nil, err
		}
		return feed, func() {
			if err := feed.Close(); err != nil {
				log.Error("Error closing lnd feed", zap.Error(err))
			}
		}, nil
	}
}
