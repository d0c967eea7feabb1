package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glowplan/notification-service/internal/email"
	"github.com/glowplan/notification-service/internal/handlers"
	"github.com/glowplan/notification-service/internal/storage"
	"github.com/glowplan/notification-service/libs/config"
	"github.com/glowplan/notification-service/libs/db"
	"github.com/glowplan/notification-service/libs/httpx"
	otelx "github.com/glowplan/notification-service/libs/otel"
	"github.com/glowplan/notification-service/libs/runtime"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewAppointmentsRepository(pool)
	sender := buildSender(logger)

	handler := handlers.NewNotificationHandler(repo, sender, logger, handlers.Config{
		FromAddress: config.String("MAIL_FROM", "GlowPlan <notifications@glowplan.fr>"),
	})

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	rateLimit := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 60), time.Minute).Middleware()
	var rdb *redis.Client
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		rateLimit = httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 60), time.Minute, service).
			Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}

	notifications := http.NewServeMux()
	handler.Register(notifications)
	protected := httpx.Chain(notifications,
		httpx.WithBearerAuth(config.String("INTERNAL_API_TOKEN", "")),
		rateLimit,
	)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/notifications/", protected)

	root := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
	)
	root = otelhttp.NewHandler(root, "notification")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           root,
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

// buildSender picks the outbound mail provider. A missing API credential is
// not fatal: the service runs with sending disabled and handlers report
// success without mail, logging a warning per skipped send.
func buildSender(logger *slog.Logger) email.Sender {
	switch strings.ToLower(config.String("MAIL_PROVIDER", "api")) {
	case "smtp":
		host := config.String("SMTP_HOST", "mailpit")
		smtpPort := config.String("SMTP_PORT", "1025")
		return email.NewSMTPSender(host, smtpPort)
	default:
		apiKey := config.String("MAIL_API_KEY", "")
		if apiKey == "" {
			logger.Warn("MAIL_API_KEY not set; outbound email disabled")
			return nil
		}
		return email.NewAPISender(config.String("MAIL_API_URL", ""), apiKey)
	}
}

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
