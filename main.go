package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-registration/internal/analytics"
	analytics_api "ms-registration/internal/analytics/api"
	"ms-registration/internal/assets"
	"ms-registration/internal/auth"
	"ms-registration/internal/catalog"
	"ms-registration/internal/config"
	"ms-registration/internal/database"
	"ms-registration/internal/kafka"
	"ms-registration/internal/logger"
	"ms-registration/internal/passes"
	"ms-registration/internal/ratelimit"
	"ms-registration/internal/registration"
	"ms-registration/internal/registration/reg_api"
	"ms-registration/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// startSeatFanout picks how seat changes reach SSE clients. With Kafka every
// instance consumes the seat topic under its own group; without it the
// emitter is fed in-process.
func startSeatFanout(ctx context.Context, cfg *config.Config, emitter *sse.SeatEventEmitter, log *logger.Logger) (registration.EventPublisher, func()) {
	if !cfg.Kafka.Enabled {
		log.Info("KAFKA", "Kafka disabled, seat updates are delivered in-process")
		return sse.LocalPublisher{Emitter: emitter}, func() {}
	}

	topics := []string{cfg.Kafka.Topics.RegistrationCreated, cfg.Kafka.Topics.SeatStatus}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	log.Info("KAFKA", "Kafka producer initialized successfully")

	groupID := fmt.Sprintf("%s-%s", cfg.Kafka.GroupID, uuid.NewString()[:8])
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SeatStatus, groupID, log)
	consumerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(consumerCtx, emitter.Emit)
	}()
	log.Info("KAFKA", fmt.Sprintf("Seat status consumer started (group %s)", groupID))

	stop := func() {
		cancel()
		<-done
		if err := consumer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close consumer: %v", err))
		}
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
	return kafka.NewPublisher(producer, cfg.Kafka.Topics), stop
}

func passSecret(cfg *config.Config, log *logger.Logger) string {
	if cfg.Passes.Secret != "" {
		return cfg.Passes.Secret
	}
	log.Warn("CONFIG", "PASS_SECRET not set, passes issued now will not verify after a restart")
	return uuid.NewString()
}

func main() {
	log := logger.NewLogger("registration-service")
	defer log.Close()

	log.Info("APP", "Starting Registration Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	events, err := catalog.Load(cfg.EventsFile)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Failed to load event catalog: %v", err))
	}
	log.Info("CONFIG", fmt.Sprintf("Loaded %d events", len(events.Events())))

	backend, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open %s store: %v", cfg.Database.Driver, err))
	}
	defer backend.Close()

	assetStore, err := assets.NewS3Store(ctx, cfg.Assets)
	if err != nil {
		log.Fatal("ASSETS", fmt.Sprintf("Failed to configure asset store: %v", err))
	}
	janitor := assets.NewJanitor(assetStore, log, cfg.Assets.DeleteMaxRetries, cfg.Assets.UploadTimeout)
	janitor.Start()
	defer janitor.Close()

	redisClient, err := auth.ConnectRedis(cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	authenticator, err := auth.NewAuthenticator(cfg.Admin, auth.NewRedisSessionStore(redisClient), log)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to configure admin login: %v", err))
	}
	limiter := ratelimit.New(cfg.RateLimit, redisClient, log)

	emitter := sse.NewSeatEventEmitter()
	publisher, stopFanout := startSeatFanout(ctx, cfg, emitter, log)
	defer stopFanout()

	service := registration.NewService(registration.Dependencies{
		Catalog: events,
		Ledger:  backend.Store,
		Store:   backend.Store,
		Assets:  assetStore,
		Reaper:  janitor,
		Events:  publisher,
		Logger:  log,
	}, registration.Options{
		UploadTimeout:  cfg.Assets.UploadTimeout,
		StoreTimeout:   cfg.Database.StoreTimeout,
		MaxUploadBytes: cfg.Assets.MaxUploadBytes,
	})

	handler := reg_api.NewHandler(service, emitter, passes.NewGenerator(passSecret(cfg, log)), authenticator, log, cfg.Assets.MaxUploadBytes)
	// Seat streams never go idle, so Shutdown would wait on them until its
	// deadline. They get their own signal; other requests drain normally.
	streams, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	handler.Shutdown = streams.Done()
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(events, backend.Store, backend.Store), log)

	realIP, err := ratelimit.TrustedRealIP(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid TRUSTED_PROXIES: %v", err))
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(realIP)
	r.Use(log.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handler.RegisterRoutes(r, limiter.Middleware, analyticsHandler.RegisterRoutes)
	log.Info("ROUTER", "Event, registration and admin routes registered")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	server.RegisterOnShutdown(endStreams)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Registration Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	select {
	case <-ctx.Done():
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Registration Service shutdown complete")
	}
}
