package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/services/booking-service/internal/model"
	"github.com/dfornaro/salonbook/services/booking-service/internal/queue"
	"github.com/dfornaro/salonbook/services/booking-service/internal/storage"
)

type BookingHandler struct {
	repo     *storage.BookingRepository
	schedule *storage.ScheduleRepository
	outbox   *eventx.OutboxRepository
	queue    *queue.Queue
	logger   *slog.Logger
}

func NewBookingHandler(repo *storage.BookingRepository, schedule *storage.ScheduleRepository, outboxRepo *eventx.OutboxRepository, q *queue.Queue, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:     repo,
		schedule: schedule,
		outbox:   outboxRepo,
		queue:    q,
		logger:   logger,
	}
}

var errPaymentRequired = errors.New("monthly appointment limit reached (upgrade required)")

// CreateAppointment is the single write path for new appointments: plan cap,
// conflict re-check plus customer upsert (in the repository), and the booked
// event, all in one transaction. Both the queue drain and the admin create
// route land here.
func (h *BookingHandler) CreateAppointment(ctx context.Context, appt *model.Appointment) (string, error) {
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.enforceMonthlyLimit(ctx, tx, appt.BusinessID, appt.StartTime); err != nil {
		return "", err
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"business_id":    appt.BusinessID,
		"staff_id":       appt.StaffID,
		"service_id":     appt.ServiceID,
		"customer_name":  appt.CustomerName,
		"customer_email": appt.CustomerEmail,
		"customer_phone": appt.CustomerPhone,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
		"status":         appt.Status.String(),
	})
	if err != nil {
		return "", err
	}
	if err := h.outbox.Insert(ctx, tx, eventx.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     "booking.appointment.booked.v1",
		Payload:       payload,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Submit adapts CreateAppointment to the queue's submitter contract.
func (h *BookingHandler) Submit(ctx context.Context, p queue.Payload) (string, error) {
	appt := &model.Appointment{
		BusinessID:    p.BusinessID,
		ServiceID:     p.ServiceID,
		StaffID:       p.StaffID,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		Status:        model.StatusScheduled,
		Notes:         p.Notes,
	}
	return h.CreateAppointment(ctx, appt)
}

// enforceMonthlyLimit caps non-cancelled appointments per calendar month from
// the cached entitlements; tenants without a row get the free-tier default.
func (h *BookingHandler) enforceMonthlyLimit(ctx context.Context, tx pgx.Tx, businessID string, start time.Time) error {
	const defaultFreeMax = 200

	ent, ok, err := h.repo.GetEntitlements(ctx, tx, businessID)
	if err != nil {
		return err
	}
	max := defaultFreeMax
	if ok && ent.MaxMonthlyAppointments > 0 {
		max = ent.MaxMonthlyAppointments
	}

	startUTC := start.UTC()
	monthStart := time.Date(startUTC.Year(), startUTC.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	cnt, err := h.repo.CountLiveInRange(ctx, tx, businessID, monthStart, monthEnd)
	if err != nil {
		return err
	}
	if cnt >= max {
		return errPaymentRequired
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
