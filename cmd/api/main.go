package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blastline/campaign-dispatch/internal/config"
	"github.com/blastline/campaign-dispatch/internal/db"
	"github.com/blastline/campaign-dispatch/internal/events"
	"github.com/blastline/campaign-dispatch/internal/gateway"
	"github.com/blastline/campaign-dispatch/internal/handler"
	"github.com/blastline/campaign-dispatch/internal/repository"
	"github.com/blastline/campaign-dispatch/internal/service"
	"github.com/blastline/campaign-dispatch/internal/worker"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign dispatch server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	database, err := db.New(db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	// Delivery event publisher (optional)
	var publisher events.Publisher
	if cfg.Events.RedisURL != "" {
		publisher, err = events.NewRedisPublisher(events.RedisConfig{
			URL:    cfg.Events.RedisURL,
			Stream: cfg.Events.Stream,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		publisher = events.NewNoopPublisher()
		logger.Info("event publishing disabled")
	}
	defer publisher.Close()

	// Messaging gateway client
	var gatewayClient gateway.Client
	if cfg.Gateway.URL != "" {
		gatewayClient = gateway.NewEvolutionClient(gateway.Config{
			URL:      cfg.Gateway.URL,
			APIKey:   cfg.Gateway.APIKey,
			Instance: cfg.Gateway.Instance,
		}, logger)
		logger.Info("using Evolution API gateway", slog.String("url", cfg.Gateway.URL))
	} else {
		gatewayClient = gateway.NewMockClient(0.92)
		logger.Warn("no gateway configured, using mock gateway")
	}

	// Initialize repositories
	contactRepo := repository.NewContactRepository(database.DB)
	campaignRepo := repository.NewCampaignRepository(database.DB)
	deliveryRepo := repository.NewDeliveryRepository(database.DB)

	// Dispatch worker lifetime: cancelled on shutdown so running loops stop
	// at their next iteration boundary.
	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Initialize dispatch engine
	tracker := worker.NewTracker()
	registry := worker.NewRegistry()
	templateSvc := service.NewTemplateService()
	selector := service.NewContactSelector(contactRepo)

	dispatcher := worker.NewDispatcher(
		contactRepo,
		deliveryRepo,
		campaignRepo,
		gatewayClient,
		templateSvc,
		tracker,
		registry,
		publisher,
		logger,
	)

	campaignSvc := service.NewCampaignService(
		runCtx,
		campaignRepo,
		deliveryRepo,
		selector,
		dispatcher,
		tracker,
		registry,
		cfg.Dispatch.DefaultDelaySeconds,
		cfg.Dispatch.MaxDelaySeconds,
		logger,
	)

	// Initialize handlers
	campaignHandler := handler.NewCampaignHandler(campaignSvc, logger)
	healthHandler := handler.NewHealthHandler(database.DB, publisher, logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)

	// Register routes
	r.Get("/health", healthHandler.Health)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/send-bulk", campaignHandler.SendBulk)
		r.Get("/{id}/status", campaignHandler.GetStatus)
		r.Post("/{id}/cancel", campaignHandler.Cancel)
		r.Get("/{id}/deliveries", campaignHandler.ListDeliveries)
	})

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// Stop dispatch workers and give in-flight sends time to settle
		stopWorkers()
		time.Sleep(2 * time.Second)

		logger.Info("server stopped gracefully")
	}
}
