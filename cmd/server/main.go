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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/config"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/handlers"
	"github.com/loadlink/loadlink-backend/internal/middleware"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/loadlink/loadlink-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting LoadLink backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("driver", cfg.Database.Driver).Info("Opening store...")
	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()
	logger.Info("Store ready")

	// Rate limit windows live in redis when configured
	var (
		counter       services.RateLimitCounter
		memoryCounter *services.MemoryCounter
	)
	if cfg.Redis.URL != "" {
		client, err := database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		counter = services.NewRedisCounter(client)
		logger.Info("Rate limiter backed by redis")
	} else {
		memoryCounter = services.NewMemoryCounter()
		counter = memoryCounter
		logger.Info("Rate limiter running in memory")
	}
	limiter := services.NewRateLimitService(counter, cfg.RateLimit.Requests, cfg.RateLimit.Window(), logger)

	var publisher events.Publisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.WithField("topic", cfg.Kafka.Topic).Info("Publishing events to kafka")
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, logger)

	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	ledger := services.NewLedger(logger)
	authService := services.NewAuthService(store, jwtService, cfg.Security.BcryptCost, logger)
	userService := services.NewUserService(store)
	vehicleService := services.NewVehicleService(store, logger)
	tripService := services.NewTripService(store, ledger, emitter, logger)
	bookingService := services.NewBookingService(store, ledger, emitter, logger)
	paymentService := services.NewPaymentService(store, emitter, logger)
	reviewService := services.NewReviewService(store, emitter, logger)

	cronService := services.NewCronService(
		bookingService,
		memoryCounter,
		cfg.Booking.AutoCompleteAfter,
		cfg.Booking.SweepSchedule,
		logger,
	)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:    handlers.NewAuthHandler(authService, logger),
		User:    handlers.NewUserHandler(userService, logger),
		Vehicle: handlers.NewVehicleHandler(vehicleService, logger),
		Trip:    handlers.NewTripHandler(tripService, logger),
		Booking: handlers.NewBookingHandler(bookingService, logger),
		Payment: handlers.NewPaymentHandler(paymentService, logger),
		Review:  handlers.NewReviewHandler(reviewService, logger),
		Health:  handlers.NewHealthHandler(store, version),
	}, jwtService, limiter, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		cronService.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		return
	}
	logger.Info("Server exited successfully")
}
