package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dfornaro/salonbook/libs/config"
	"github.com/dfornaro/salonbook/libs/db"
	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/libs/httpx"
	"github.com/dfornaro/salonbook/libs/kafkax"
	otelx "github.com/dfornaro/salonbook/libs/otel"
	"github.com/dfornaro/salonbook/libs/runtime"
	"github.com/dfornaro/salonbook/services/booking-service/internal/handlers"
	"github.com/dfornaro/salonbook/services/booking-service/internal/queue"
	"github.com/dfornaro/salonbook/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	repo := storage.NewBookingRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	outboxRepo := eventx.NewOutboxRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := eventx.NewPublisher(pool, outboxRepo, logger, eventx.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := eventx.NewInboxRepository(pool)
	entitlementsConsumer := eventx.NewConsumer(logger, inboxRepo, eventx.ConsumerConfig{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "billing.entitlements.updated.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			BusinessID             string `json:"business_id"`
			Tier                   string `json:"tier"`
			MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.BusinessID == "" || payload.Tier == "" || payload.MaxMonthlyAppointments <= 0 {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if err := repo.UpsertEntitlements(ctx, tx, storage.BusinessEntitlements{
			BusinessID:             payload.BusinessID,
			Tier:                   payload.Tier,
			MaxMonthlyAppointments: payload.MaxMonthlyAppointments,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	go entitlementsConsumer.Run(ctx)

	bookingQueue := queue.New()
	bookingHandler := handlers.NewBookingHandler(repo, scheduleRepo, outboxRepo, bookingQueue, logger)

	interval := config.DurationSeconds("QUEUE_RETRY_INTERVAL_SECONDS", 5*time.Second)
	maxAttempts := config.Int("QUEUE_MAX_ATTEMPTS", 3)
	worker := queue.NewWorker(bookingQueue, bookingHandler.Submit, func(b queue.Booking, st queue.Status) {
		// Terminal outcomes surface through the status endpoint; the log line
		// is the operator-facing record.
		logger.Info("booking reached terminal state",
			"queued_id", b.ID,
			"state", st.State.String(),
			"attempts", st.Attempts,
			"appointment_id", st.AppointmentID,
			"reason", st.Reason,
		)
	}, logger, queue.WorkerConfig{Interval: interval, MaxAttempts: maxAttempts})
	go worker.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/public/book/status", bookingHandler.BookStatus)
	mux.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			bookingHandler.Create(w, r)
		case http.MethodGet:
			bookingHandler.List(w, r)
		case http.MethodDelete:
			bookingHandler.Delete(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
