package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sybil/internal/config"
	cronrunner "sybil/internal/cron"
	"sybil/internal/db"
	"sybil/internal/handler"
	"sybil/internal/logger"
	"sybil/internal/market"
	"sybil/internal/protocol"
	"sybil/internal/reasoner"
	gormrepository "sybil/internal/repository/gorm"
	"sybil/internal/resolution"
	"sybil/internal/search"
	"sybil/internal/service"
)

func main() {
	cfgPath := os.Getenv("SYBIL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SYBIL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var searcher resolution.Searcher
	if cfg.Search.BaseURL != "" {
		searchHTTP := &http.Client{Timeout: cfg.Search.Timeout}
		searcher = search.NewClient(searchHTTP, cfg.Search.BaseURL, cfg.Search.APIKey)
	} else {
		logger.Warn("no search backend configured, resolution runs without gathered evidence")
	}
	gatherer := &resolution.FanoutGatherer{
		Searcher: searcher,
		Config:   cfg.Resolution,
		Logger:   logger,
	}
	engine := resolution.NewEngine(store, gatherer, cfg.Resolution, logger)

	var judge reasoner.Reasoner
	if cfg.Reasoner.BaseURL != "" {
		reasonerHTTP := &http.Client{Timeout: cfg.Reasoner.Timeout}
		judge = reasoner.NewClient(reasonerHTTP, cfg.Reasoner.BaseURL, cfg.Reasoner.APIKey, cfg.Reasoner.Model)
	} else {
		logger.Warn("no reasoner configured, agent protocol unavailable")
	}
	registry := protocol.NewRegistry(judge)

	ingestSvc := &service.IngestService{Repo: store, Logger: logger}
	proposalSvc := &service.ProposalService{Repo: store, Logger: logger}
	predictionSvc := &service.PredictionService{Repo: store, Logger: logger}
	workflowSvc := &service.WorkflowService{
		Repo:        store,
		Predictions: predictionSvc,
		Config:      cfg.Workflow,
		Logger:      logger,
	}
	scoringSvc := &service.ScoringService{Repo: store, Config: cfg.Scoring, Logger: logger}

	var fetcher service.QuoteFetcher
	if cfg.MarketSync.BaseURL != "" {
		marketHTTP := &http.Client{Timeout: cfg.MarketSync.Timeout}
		fetcher = market.NewClient(marketHTTP, cfg.MarketSync.BaseURL)
	}
	listingSvc := &service.ListingService{
		Repo:    store,
		Fetcher: fetcher,
		Config:  cfg.MarketSync,
		Logger:  logger,
	}
	sweeper := &service.Sweeper{
		Repo:   store,
		Engine: engine,
		Config: cfg.Resolution,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	ingestHandler := &handler.IngestHandler{Repo: store, Ingest: ingestSvc}
	ingestHandler.Register(router)
	proposalHandler := &handler.ProposalHandler{Repo: store, Proposals: proposalSvc}
	proposalHandler.Register(router)
	eventHandler := &handler.EventHandler{
		Repo:     store,
		Engine:   engine,
		Scoring:  scoringSvc,
		Listings: listingSvc,
	}
	eventHandler.Register(router)
	workflowHandler := &handler.WorkflowHandler{
		Repo:      store,
		Workflows: workflowSvc,
		Protocols: registry,
	}
	workflowHandler.Register(router)
	predictionHandler := &handler.PredictionHandler{
		Repo:        store,
		Predictions: predictionSvc,
		Scoring:     scoringSvc,
	}
	predictionHandler.Register(router)
	protocolHandler := &handler.ProtocolHandler{Repo: store, Scoring: scoringSvc}
	protocolHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		err = cronRunner.Add("resolution_sweep", cfg.Cron.ResolutionSweep, func(ctx context.Context) {
			attempted, err := sweeper.RunOnce(ctx)
			if err != nil {
				logger.Warn("resolution sweep failed", zap.Error(err))
				return
			}
			if attempted > 0 {
				logger.Info("resolution sweep complete", zap.Int("events", attempted))
			}
		})
		if err != nil {
			logger.Warn("cron register resolution sweep failed", zap.Error(err))
		}

		if cfg.MarketSync.Enabled && fetcher != nil {
			err = cronRunner.Add("listing_refresh", cfg.Cron.ListingRefresh, func(ctx context.Context) {
				refreshed, err := listingSvc.RefreshAll(ctx)
				if err != nil {
					logger.Warn("listing refresh failed", zap.Error(err))
					return
				}
				if refreshed > 0 {
					logger.Info("listings refreshed", zap.Int("count", refreshed))
				}
			})
			if err != nil {
				logger.Warn("cron register listing refresh failed", zap.Error(err))
			}
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
