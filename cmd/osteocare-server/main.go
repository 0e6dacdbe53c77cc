package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/osteocare/osteocare/internal/config"
	"github.com/osteocare/osteocare/internal/domain/history"
	"github.com/osteocare/osteocare/internal/domain/manual"
	"github.com/osteocare/osteocare/internal/domain/mri"
	"github.com/osteocare/osteocare/internal/domain/report"
	"github.com/osteocare/osteocare/internal/domain/xray"
	"github.com/osteocare/osteocare/internal/platform/cache"
	"github.com/osteocare/osteocare/internal/platform/db"
	"github.com/osteocare/osteocare/internal/platform/inference"
	"github.com/osteocare/osteocare/internal/platform/middleware"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "osteocare-server",
		Short: "Osteoporosis risk assessment API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Inference backend. Without a model server every modality falls back to
	// in-process scoring and heuristics.
	var (
		tabularModel inference.TabularModel
		imageModel   inference.ImageModel
	)
	if cfg.ModelServerURL != "" {
		client := inference.NewClient(cfg.ModelServerURL, cfg.ModelTimeout())
		tabularModel = client
		imageModel = client
		logger.Info().Str("url", cfg.ModelServerURL).Msg("model server configured")
	} else {
		logger.Info().Msg("no model server configured, using in-process scoring")
	}

	// Assessment cache (optional)
	var assessCache *cache.Cache
	if cfg.RedisURL != "" {
		assessCache, err = cache.New(cfg.RedisURL, time.Hour, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer assessCache.Close()
		logger.Info().Msg("connected to redis")
	}

	// Assessment audit store (optional)
	var (
		histSvc   *history.Service
		dbHealth  echo.HandlerFunc
		reportRec report.Recorder
		manualRec manual.Recorder
		xrayRec   xray.Recorder
		mriRec    mri.Recorder
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := history.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare assessment schema")
		}

		histSvc = history.NewService(history.NewRepoPG(pool))
		reportRec = histSvc
		manualRec = histSvc
		xrayRec = histSvc
		mriRec = histSvc
		dbHealth = db.HealthHandler(pool)
		logger.Info().Msg("connected to database")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))
	e.Use(middleware.BodyLimit(cfg.MaxReportMB, map[string]int64{
		"/predict/xray":   cfg.MaxXrayMB,
		"/predict/mri":    cfg.MaxMRIMB,
		"/predict/report": cfg.MaxReportMB,
	}))

	// API groups
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	predict := e.Group("/predict")
	predict.Use(rateLimit)
	apiV1 := e.Group("/api/v1")
	apiV1.Use(rateLimit)

	// Modality handlers
	manual.NewHandler(manual.NewService(tabularModel, manualRec, logger)).RegisterRoutes(predict)
	report.NewHandler(report.NewService(tabularModel, assessCache, reportRec, logger)).RegisterRoutes(predict)
	xray.NewHandler(xray.NewService(imageModel, assessCache, xrayRec, logger)).RegisterRoutes(predict)
	mri.NewHandler(mri.NewService(imageModel, assessCache, mriRec, logger)).RegisterRoutes(predict)

	// Assessment audit trail (only with a database)
	if histSvc != nil {
		history.NewHandler(histSvc).RegisterRoutes(apiV1)
		e.GET("/health/db", dbHealth)
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":       "ok",
			"model_loaded": tabularModel != nil,
			"version":      version,
		})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
