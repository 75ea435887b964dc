package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                    // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Recover and RequestID

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/config" // Internal config loader
	"github.com/iliyamo/parking-cession/internal/database"
	"github.com/iliyamo/parking-cession/internal/handler"
	"github.com/iliyamo/parking-cession/internal/logging"
	"github.com/iliyamo/parking-cession/internal/middleware"
	"github.com/iliyamo/parking-cession/internal/queue"
	"github.com/iliyamo/parking-cession/internal/repository"
	"github.com/iliyamo/parking-cession/internal/router" // Internal router setup
	"github.com/iliyamo/parking-cession/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	clk := clock.Real(cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.Migrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("database migrate failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// The sync capability writes rows the caller does not own, so it gets
	// its own pool and credentials.
	syncDB, err := database.Open(cfg.SyncDBUser, cfg.SyncDBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("sync database connect failed", "error", err)
		os.Exit(1)
	}
	defer syncDB.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; spot cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	spots := repository.NewCachedSpotRepo(repository.NewSpotRepo(db), rdb, config.LoadCacheConfig(), logger)
	if err := spots.Invalidate(ctx); err != nil {
		logger.Warn("spot cache invalidate failed", "error", err)
	}
	reservations := repository.NewReservationRepo(db)
	cessions := repository.NewCessionRepo(db)
	visitors := repository.NewVisitorBookingRepo(db)
	users := repository.NewUserRepo(db)
	sync := repository.NewCessionSync(syncDB)

	publisher := queue.NewPublisher(cfg.RabbitURL, logger)
	defer publisher.Close()

	availabilitySvc := service.NewAvailabilityService(spots, reservations, cessions, visitors, clk, logger)
	reservationSvc := service.NewReservationService(spots, reservations, cessions, sync, publisher, clk, logger)
	cessionSvc := service.NewCessionService(spots, reservations, cessions, sync, publisher, clk, logger)
	visitorSvc := service.NewVisitorService(spots, visitors, publisher, clk, logger)

	if cfg.NotifyConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.NotifyLogDir, visitors, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	}
	if cfg.ReconcileInterval > 0 {
		go service.NewReconciler(cessions, sync, clk, logger).Run(ctx, cfg.ReconcileInterval)
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e) // Register application routes
	router.RegisterAPI(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, logger),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Reservations: handler.NewReservationHandler(reservationSvc),
		Cessions:     handler.NewCessionHandler(cessionSvc),
		Visitors:     handler.NewVisitorHandler(visitorSvc),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
