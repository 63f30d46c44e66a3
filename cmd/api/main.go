package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/shelfwise/lending/internal/auth"
	"github.com/shelfwise/lending/internal/http/handlers"
	imw "github.com/shelfwise/lending/internal/http/middleware"
	"github.com/shelfwise/lending/internal/mailer"
	"github.com/shelfwise/lending/internal/repo/postgres"
	"github.com/shelfwise/lending/internal/service"
	"github.com/shelfwise/lending/internal/storage"
	"github.com/shelfwise/lending/pkg/config"
	"github.com/shelfwise/lending/pkg/database"
	"github.com/shelfwise/lending/pkg/events"
	"github.com/shelfwise/lending/pkg/logger"
	mw "github.com/shelfwise/lending/pkg/middleware"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Object storage
	store, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		logger.Error("Failed to connect to object storage", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBuckets(ctx, cfg.Storage.PublicBucket, cfg.Storage.ProtectedBucket); err != nil {
		logger.Error("Failed to provision storage buckets", "error", err)
		os.Exit(1)
	}

	// Event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Shared attempt store. Rate-limit state must not be process-local
	// or limits become bypassable across instances.
	var attemptStore auth.AttemptStore
	if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
		attemptStore = auth.NewRedisAttemptStore(redis.NewClient(opts))
	} else {
		logger.Warn("Invalid REDIS_URL, falling back to in-memory attempt store", "error", err)
		attemptStore = auth.NewMemoryAttemptStore()
	}
	limiter := auth.NewRateLimiter(attemptStore, cfg.Auth.AttemptLimit, cfg.Auth.AttemptWindow)

	// Auth core
	otp := auth.NewOTP([]byte(cfg.Auth.Seed), cfg.Auth.OTPWindowMinutes)
	sessions := auth.NewSessionCodec([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)

	// Mailer
	var mail mailer.Service
	switch {
	case cfg.Email.DevMode:
		mail = mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		mail = mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}

	// Repositories
	itemRepo := postgres.NewItemRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)

	// Services
	tiers := storage.NewAccessTier(store, cfg.Storage.PublicBucket, cfg.Storage.ProtectedBucket)
	authService := service.NewAuthService(otp, sessions, limiter, mail, eventBus)
	catalogService := service.NewCatalogService(itemRepo, store, tiers, eventBus, cfg)
	lendingService := service.NewLendingService(itemRepo, loanRepo, tiers, eventBus, cfg.Lending.RetainProtected)

	// Replays protected-copy transitions that failed after the ledger
	// write committed.
	syncConsumer := service.NewStorageSyncConsumer(itemRepo, loanRepo, tiers, cfg.Lending.RetainProtected)
	if err := syncConsumer.Start(eventBus); err != nil {
		logger.Error("Failed to subscribe to storage sync events", "error", err)
		os.Exit(1)
	}

	h := handlers.New(authService, catalogService, lendingService)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("lending"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		// Authentication
		r.Group(func(r chi.Router) {
			r.Use(imw.RateLimitByIP(limiter))
			r.Post("/auth/otp", h.RequestOTP)
			r.Post("/auth/login", h.Login)
		})
		r.Post("/auth/logout", h.Logout)

		// Catalog
		r.Post("/upload", h.Upload)
		r.Get("/items", h.ListItems)
		r.Delete("/items/{edition}", h.DeleteItem)

		// Reading (loan check handled per item inside the handler)
		r.Get("/read/{edition}", h.Read)

		// Lending
		r.Group(func(r chi.Router) {
			r.Use(imw.RequireSession(authService))
			r.Post("/items/{edition}/borrow", h.Borrow)
			r.Post("/items/{edition}/return", h.Return)
			r.Get("/loans", h.ListLoans)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down lending service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Lending service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting lending service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Lending service error", "error", err)
		os.Exit(1)
	}
}
