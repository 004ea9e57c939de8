package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sadman-arif/consultpay/internal/availability"
	"github.com/sadman-arif/consultpay/internal/booking"
	"github.com/sadman-arif/consultpay/internal/handlers"
	"github.com/sadman-arif/consultpay/internal/installments"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/payments"
	"github.com/sadman-arif/consultpay/internal/pricing"
	"github.com/sadman-arif/consultpay/internal/storage"
	"github.com/sadman-arif/consultpay/internal/wallet"
	"github.com/sadman-arif/consultpay/libs/config"
	"github.com/sadman-arif/consultpay/libs/db"
	"github.com/sadman-arif/consultpay/libs/httpx"
	"github.com/sadman-arif/consultpay/libs/kafkax"
	otelx "github.com/sadman-arif/consultpay/libs/otel"
	"github.com/sadman-arif/consultpay/libs/runtime"
)

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTaxRates reads "bd=0.05,de=0.19" into jurisdiction rates.
func parseTaxRates(raw string, logger *slog.Logger) map[string]decimal.Decimal {
	rates := map[string]decimal.Decimal{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, val, ok := strings.Cut(part, "=")
		if !ok {
			logger.Warn("invalid tax rate entry", "value", part)
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			logger.Warn("invalid tax rate entry", "value", part)
			continue
		}
		rates[strings.ToLower(strings.TrimSpace(code))] = rate
	}
	return rates
}

func pricingConfig(logger *slog.Logger) (pricing.Config, error) {
	cfg := pricing.DefaultConfig()

	feeRate, err := config.Rate("PLATFORM_FEE_RATE", 0.15)
	if err != nil {
		return pricing.Config{}, err
	}
	cancelRate, err := config.Rate("CANCELLATION_FEE_RATE", 0.10)
	if err != nil {
		return pricing.Config{}, err
	}
	window, err := config.Duration("CANCELLATION_WINDOW", 24*time.Hour)
	if err != nil {
		return pricing.Config{}, err
	}

	cfg.PlatformFeeRate = decimal.NewFromFloat(feeRate)
	cfg.CancellationFeeRate = decimal.NewFromFloat(cancelRate)
	cfg.CancellationWindow = window
	cfg.TaxRates = parseTaxRates(config.String("TAX_RATES", ""), logger)
	return cfg, nil
}

func main() {
	service := config.String("SERVICE_NAME", "consultpay")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DATABASE_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, int32(maxConns))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	stripeKey, err := config.RequiredString("STRIPE_SECRET_KEY")
	if err != nil {
		panic(err)
	}

	priceCfg, err := pricingConfig(logger)
	if err != nil {
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewPG(pool, outboxRepo)
	gateway := payments.NewStripeGateway(stripeKey)

	bookingSvc := booking.NewService(store, gateway, priceCfg, logger)
	walletSvc := wallet.NewService(store, logger)
	planSvc := installments.NewService(store, logger)
	resolver := availability.NewResolver(store)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger, jwtSecret)
	availabilityHandler := handlers.NewAvailabilityHandler(resolver, logger)
	walletHandler := handlers.NewWalletHandler(walletSvc, logger, jwtSecret)
	installmentHandler := handlers.NewInstallmentHandler(planSvc, logger, jwtSecret)

	webhookTolerance, err := config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300)
	if err != nil {
		panic(err)
	}
	webhookHandler := handlers.NewWebhookHandler(
		bookingSvc,
		logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		webhookTolerance,
	)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("GET /api/v1/public/experts/{id}/availability", availabilityHandler.Windows)
	mux.HandleFunc("POST /api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookingHandler.Get)
	mux.HandleFunc("GET /api/v1/bookings/{id}/history", bookingHandler.History)
	mux.HandleFunc("POST /api/v1/bookings/{id}/complete", bookingHandler.Complete)
	mux.HandleFunc("POST /api/v1/bookings/{id}/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("POST /api/v1/bookings/{id}/installments", installmentHandler.CreatePlan)
	mux.HandleFunc("POST /api/v1/installments/{id}/pay", installmentHandler.Pay)
	mux.HandleFunc("GET /api/v1/wallet", walletHandler.Get)
	mux.HandleFunc("GET /api/v1/wallet/transactions", walletHandler.Transactions)
	mux.HandleFunc("GET /api/v1/wallet/reconcile", walletHandler.Reconcile)
	mux.HandleFunc("POST /api/v1/wallet/withdrawals", walletHandler.RequestWithdrawal)
	mux.HandleFunc("POST /api/v1/wallet/withdrawals/{id}/decision", walletHandler.DecideWithdrawal)
	mux.HandleFunc("POST /api/v1/payments/webhook", webhookHandler.Stripe)

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	var limiter httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
	} else {
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		limiter,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
