package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/gigmarket/gigmarket-api/internal/config"
	"github.com/gigmarket/gigmarket-api/internal/domain/appointment"
	"github.com/gigmarket/gigmarket-api/internal/domain/notification"
	"github.com/gigmarket/gigmarket-api/internal/domain/payment"
	"github.com/gigmarket/gigmarket-api/internal/domain/wallet"
	"github.com/gigmarket/gigmarket-api/internal/middleware"
	"github.com/gigmarket/gigmarket-api/internal/pkg/database"
	"github.com/gigmarket/gigmarket-api/internal/pkg/jwt"
	"github.com/gigmarket/gigmarket-api/internal/pkg/lock"
	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
	"github.com/gigmarket/gigmarket-api/internal/pkg/payfast"
	"github.com/gigmarket/gigmarket-api/internal/pkg/realtime"
	pkgresponse "github.com/gigmarket/gigmarket-api/internal/pkg/response"
	"github.com/gigmarket/gigmarket-api/internal/pkg/storage"
	"github.com/gigmarket/gigmarket-api/internal/pkg/yoco"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
		Service:     "gigmarket-api",
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting GigMarket API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	locker := lock.New(redis, "gigmarket:")

	archive, err := storage.New(storage.Config{
		Driver:      cfg.WebhookArchive,
		S3Endpoint:  cfg.S3Endpoint,
		S3Region:    cfg.S3Region,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		LocalPath:   cfg.WebhookArchivePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create webhook archive storage")
	}

	// ---------- WebSocket hub ----------
	hub := realtime.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	paymentRepo := payment.NewRepository(db, walletRepo)
	notificationRepo := notification.NewRepository(db)
	appointmentRepo := appointment.NewRepository(db)

	// ---------- Services ----------
	notificationService := notification.NewService(notificationRepo, hub)
	walletService := wallet.NewService(walletRepo)
	paymentService := payment.NewService(paymentRepo, notificationService, buildGateways(cfg), payment.DefaultConfig())
	appointmentService := appointment.NewService(appointmentRepo, notificationService)

	// ---------- Handlers ----------
	h := handlers{
		payments:      payment.NewHandler(paymentService),
		webhooks:      payment.NewWebhookHandler(paymentService, locker, archive, payment.WebhookConfig{LockTTL: cfg.WebhookLockTTL}),
		wallet:        wallet.NewHandler(walletService),
		notifications: notification.NewHandler(notificationService, hub, cfg.AllowedOrigins),
		recurring:     appointment.NewHandler(appointmentService),
	}

	router := newRouter(cfg, middleware.Auth(jwtService), h)

	// ---------- Background jobs ----------
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	go notification.NewCleanupJob(notificationRepo, cfg.NotificationRetentionDays).Start(jobsCtx, 24*time.Hour)

	var recurrenceWorker *appointment.Worker
	if cfg.RecurrenceWorkerEnabled {
		recurrenceWorker = appointment.NewWorker(appointmentRepo, locker, appointment.WorkerConfig{
			Interval:    cfg.RecurrenceWorkerInterval,
			HorizonDays: cfg.RecurrenceHorizonDays,
		})
		recurrenceWorker.Start()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopJobs()
	if recurrenceWorker != nil {
		recurrenceWorker.Stop()
	}

	log.Info().Msg("Server exited")
}

type handlers struct {
	payments      *payment.Handler
	webhooks      *payment.WebhookHandler
	wallet        *wallet.Handler
	notifications *notification.Handler
	recurring     *appointment.Handler
}

func newRouter(cfg *config.Config, authMiddleware func(http.Handler) http.Handler, h handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress); the token may come as ?token=
	r.With(authMiddleware).Get("/ws", h.notifications.ServeWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	// Gateways post here without a user session
	r.Mount("/webhooks", h.webhooks.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Mount("/payments", h.payments.Routes(authMiddleware))
		r.Mount("/wallet", h.wallet.Routes(authMiddleware))
		r.Mount("/notifications", h.notifications.Routes(authMiddleware))
		r.Mount("/recurring-appointments", h.recurring.Routes(authMiddleware))
	})

	return r
}

// buildGateways wires only the providers that are configured. Unset
// providers stay nil interfaces and payments through them are refused.
func buildGateways(cfg *config.Config) payment.Gateways {
	var gateways payment.Gateways

	if cfg.YocoSecretKey != "" {
		gateways.Yoco = yoco.NewClient(yoco.Config{
			BaseURL:    cfg.YocoBaseURL,
			SecretKey:  cfg.YocoSecretKey,
			Currency:   cfg.YocoCurrency,
			SuccessURL: cfg.FrontendURL + "/payments/yoco/return?status=success",
			CancelURL:  cfg.FrontendURL + "/payments/yoco/return?status=cancelled",
			FailureURL: cfg.FrontendURL + "/payments/yoco/return?status=failed",
			Timeout:    cfg.PaymentTimeout,
		})
	} else {
		log.Warn().Msg("Yoco is not configured")
	}

	if cfg.PayFastMerchantID != "" {
		client := payfast.NewClient(payfast.Config{
			MerchantID:  cfg.PayFastMerchantID,
			MerchantKey: cfg.PayFastMerchantKey,
			Passphrase:  cfg.PayFastPassphrase,
			Sandbox:     cfg.PayFastSandbox,
			ReturnURL:   cfg.FrontendURL + "/payments/payfast/return",
			CancelURL:   cfg.FrontendURL + "/payments/payfast/cancel",
			NotifyURL:   cfg.BackendURL + "/webhooks/payfast",
			ValidIPs:    cfg.PayFastValidIPs,
			Timeout:     cfg.PaymentTimeout,
		})
		allowList, err := payfast.NewIPAllowList(cfg.PayFastValidIPs)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid PAYFAST_VALID_IPS")
		}
		gateways.PayFast = client
		gateways.PayFastITN = payfast.NewVerifier(client, allowList, cfg.IsProduction())
	} else {
		log.Warn().Msg("PayFast is not configured")
	}

	return gateways
}
