package main

import (
	"context"
	"net/http"
	"time"

	"github.com/dfornaro/salonbook/libs/config"
	"github.com/dfornaro/salonbook/libs/db"
	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/libs/httpx"
	"github.com/dfornaro/salonbook/libs/kafkax"
	otelx "github.com/dfornaro/salonbook/libs/otel"
	"github.com/dfornaro/salonbook/libs/runtime"
	"github.com/dfornaro/salonbook/services/billing-service/internal/handlers"
	"github.com/dfornaro/salonbook/services/billing-service/internal/storage"
	"github.com/dfornaro/salonbook/services/billing-service/internal/subscriptions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "billing-service")
	port, err := config.Port("PORT", "8084")
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

	repo := storage.NewRepository(pool)
	outboxRepo := eventx.NewOutboxRepository(pool)
	subSvc := subscriptions.New(repo, outboxRepo)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := eventx.NewPublisher(pool, outboxRepo, logger, eventx.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	webhookSecret := config.String("STRIPE_WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; stripe webhook disabled")
	}
	tolerance := config.DurationSeconds("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 5*time.Minute)
	handler := handlers.New(repo, subSvc, logger, webhookSecret, tolerance)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/billing/webhooks/stripe", handler.StripeWebhook)
	mux.HandleFunc("/api/v1/billing/subscription", handler.GetSubscription)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "billing")
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
