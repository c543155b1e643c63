package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dfornaro/salonbook/libs/config"
	"github.com/dfornaro/salonbook/libs/db"
	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/libs/httpx"
	"github.com/dfornaro/salonbook/libs/kafkax"
	otelx "github.com/dfornaro/salonbook/libs/otel"
	"github.com/dfornaro/salonbook/libs/runtime"
	"github.com/dfornaro/salonbook/services/notification-service/internal/email"
	"github.com/dfornaro/salonbook/services/notification-service/internal/sms"
	"github.com/dfornaro/salonbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Reason        string `json:"reason"`
}

func confirmationText(p appointmentPayload) (subject, body string) {
	when := p.StartTime
	if t, err := time.Parse(time.RFC3339, p.StartTime); err == nil {
		when = t.Format("Mon, 2 Jan 2006 15:04")
	}
	subject = "Appointment confirmed"
	body = fmt.Sprintf("Hi %s, your appointment on %s is confirmed. See you then!", p.CustomerName, when)
	return subject, body
}

func cancellationText(p appointmentPayload) (subject, body string) {
	when := p.StartTime
	if t, err := time.Parse(time.RFC3339, p.StartTime); err == nil {
		when = t.Format("Mon, 2 Jan 2006 15:04")
	}
	subject = "Appointment cancelled"
	body = fmt.Sprintf("Hi %s, your appointment on %s has been cancelled.", p.CustomerName, when)
	if strings.TrimSpace(p.Reason) != "" {
		body += " Reason: " + p.Reason
	}
	return subject, body
}

func main() {
	config.LoadDotenv()

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

	inboxRepo := eventx.NewInboxRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@salonbook.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	default:
		smsSender = sms.NewNoopSender()
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	deliver := func(ctx context.Context, kind string, p appointmentPayload, subject, body string) error {
		if addr := strings.TrimSpace(p.CustomerEmail); addr != "" {
			status := "sent"
			if err := emailSender.Send(addr, subject, body); err != nil {
				status = "failed"
				logger.Error("email send failed", "err", err, "recipient", addr)
			}
			if err := notificationsRepo.Insert(ctx, storage.Notification{
				AppointmentID: p.AppointmentID,
				BusinessID:    p.BusinessID,
				Channel:       "email",
				Recipient:     addr,
				Kind:          kind,
				Payload:       map[string]any{"subject": subject},
				Status:        status,
			}); err != nil {
				return err
			}
		}
		if phone := strings.TrimSpace(p.CustomerPhone); phone != "" {
			status := "sent"
			if err := smsSender.Send(ctx, phone, body); err != nil {
				status = "failed"
				logger.Error("sms send failed", "err", err, "recipient", phone)
			}
			if err := notificationsRepo.Insert(ctx, storage.Notification{
				AppointmentID: p.AppointmentID,
				BusinessID:    p.BusinessID,
				Channel:       "sms",
				Recipient:     phone,
				Kind:          kind,
				Payload:       map[string]any{"provider": smsSender.ProviderID()},
				Status:        status,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	startConsumer := func(topic, kind string, render func(appointmentPayload) (string, string)) {
		c := eventx.NewConsumer(logger, inboxRepo, eventx.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload appointmentPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid appointment payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" || payload.BusinessID == "" {
				logger.Error("missing appointment fields", "topic", msg.Topic)
				return nil
			}
			subject, body := render(payload)
			if err := deliver(ctx, kind, payload, subject, body); err != nil {
				return err
			}
			logger.Info("appointment event processed", "appointment_id", payload.AppointmentID, "kind", kind)
			return nil
		})
		go c.Run(ctx)
	}

	startConsumer(config.String("KAFKA_BOOKED_TOPIC", "booking.appointment.booked.v1"), "confirmation", confirmationText)
	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "booking.appointment.cancelled.v1"), "cancellation", cancellationText)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
