package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yousefihsm/natours/internal/bootstrap"
	"github.com/yousefihsm/natours/internal/http/handlers"
	"github.com/yousefihsm/natours/internal/http/middleware"
	"github.com/yousefihsm/natours/internal/notify"
	"github.com/yousefihsm/natours/internal/platform/mailer"
	"github.com/yousefihsm/natours/internal/platform/password"
	"github.com/yousefihsm/natours/internal/platform/payments"
	"github.com/yousefihsm/natours/internal/service"
	"github.com/yousefihsm/natours/pkg/auth"
	"github.com/yousefihsm/natours/pkg/cache"
	"github.com/yousefihsm/natours/pkg/config"
	"github.com/yousefihsm/natours/pkg/events"
	"github.com/yousefihsm/natours/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("API stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, payment webhooks will be rejected")
	}

	// Store
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("Store close failed", "error", err)
		}
	}()

	// Event bus
	var bus events.EventBus = events.NewLocalBus()
	if cfg.NATS.URL != "" {
		nb, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return err
		}
		bus = nb
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}
	defer bus.Close()

	// Redis backs idempotent replays and the login rate limit
	var (
		idem    *cache.RedisStore
		counter middleware.Counter
	)
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStoreFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rs.Close()
		idem, counter = rs, rs
		logger.Info("Connected to Redis")
	}

	hasher, err := password.NewHasher(password.Params{
		MemoryKiB:   cfg.Auth.ArgonMemoryKiB,
		Iterations:  cfg.Auth.ArgonIterations,
		Parallelism: cfg.Auth.ArgonParallelism,
	}, cfg.Auth.MaxHashWorkers)
	if err != nil {
		return err
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	mail := mailer.New(bootstrap.NewSender(cfg.Email))
	gateway := payments.NewStripeGateway(payments.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
		Timeout:       cfg.Stripe.RequestTimeout,
	})

	// Services
	authService := service.NewAuthService(store.Users, hasher, issuer, mail, bus, service.AuthOptions{
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	})
	tourService := service.NewTourService(store.Tours, nil)
	bookingService := service.NewBookingService(store.Bookings, store.Tours, store.Users, gateway, mail, bus, nil)

	if err := notify.SubscribeConfirmations(bus, cfg.NATS.Queue, bookingService); err != nil {
		return err
	}

	routerCfg := handlers.Config{
		Auth:           authService,
		Tours:          tourService,
		Bookings:       bookingService,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		RateLimit: middleware.NewRateLimiter(counter, middleware.RateLimitConfig{
			Requests: 10,
			Window:   15 * time.Minute,
		}).Middleware(),
		CookieTTL:   cfg.Auth.CookieTTL,
		BaseURL:     cfg.App.BaseURL,
		CORSOrigins: cfg.Server.CORSOrigins,
		TrustProxy:  cfg.Server.TrustProxy,
	}
	if idem != nil {
		routerCfg.Idempotency = idem
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Natours API", "port", cfg.Server.Port, "env", cfg.App.Env, "db", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down Natours API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
