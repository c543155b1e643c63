package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/services/booking-service/internal/model"
	"github.com/dfornaro/salonbook/services/booking-service/internal/storage"
)

type createAppointmentRequest struct {
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Notes         string `json:"notes"`
}

// Create is the admin-initiated direct create: same conflict check and event
// as the queued path, but synchronous.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.BusinessID == "" || req.ServiceID == "" || req.CustomerName == "" {
		http.Error(w, "business_id, service_id and customer_name are required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	appt := &model.Appointment{
		BusinessID:    req.BusinessID,
		ServiceID:     req.ServiceID,
		StaffID:       req.StaffID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusScheduled,
		Notes:         strings.TrimSpace(req.Notes),
	}

	id, err := h.CreateAppointment(r.Context(), appt)
	if err != nil {
		switch {
		case storage.IsConflict(err):
			http.Error(w, "time slot already booked", http.StatusConflict)
		case errors.Is(err, errPaymentRequired):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		default:
			h.logger.Error("appointment create failed", "err", err)
			http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"appointment_id": id})
}

type listAppointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	StaffName     string `json:"staff_name,omitempty"`
	ServiceID     string `json:"service_id"`
	ServiceName   string `json:"service_name,omitempty"`
	CustomerName  string `json:"customer_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 30)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid from (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		from = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid to (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		to = t.AddDate(0, 0, 1)
	}

	appts, err := h.repo.ListRange(r.Context(), businessID, from, to, 0)
	if err != nil {
		h.logger.Error("failed to list appointments", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			StaffID:       appt.StaffID,
			StaffName:     appt.StaffName,
			ServiceID:     appt.ServiceID,
			ServiceName:   appt.ServiceName,
			CustomerName:  appt.CustomerName,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
			Status:        appt.Status.String(),
			Notes:         appt.Notes,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type updateStatusRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// UpdateStatus applies a lifecycle transition. Illegal transitions are
// rejected; repeating a cancellation is idempotent.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.BusinessID == "" || req.AppointmentID == "" {
		http.Error(w, "business_id and appointment_id required", http.StatusBadRequest)
		return
	}
	next, err := model.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.BusinessID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == next {
		writeJSON(w, http.StatusOK, map[string]any{
			"appointment_id": appt.ID,
			"status":         next.String(),
		})
		return
	}
	if !appt.Status.CanTransitionTo(next) {
		http.Error(w, "illegal status transition "+appt.Status.String()+" -> "+next.String(), http.StatusConflict)
		return
	}

	if err := h.repo.SetStatus(ctx, tx, req.BusinessID, appt.ID, next, strings.TrimSpace(req.Reason)); err != nil {
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	if next == model.StatusCancelled {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"business_id":    appt.BusinessID,
			"staff_id":       appt.StaffID,
			"service_id":     appt.ServiceID,
			"customer_email": appt.CustomerEmail,
			"customer_phone": appt.CustomerPhone,
			"customer_name":  appt.CustomerName,
			"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
			"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
			"cancelled_at":   time.Now().UTC().Format(time.RFC3339),
			"reason":         strings.TrimSpace(req.Reason),
		})
		if err != nil {
			http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
			return
		}
		if err := h.outbox.Insert(ctx, tx, eventx.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     "booking.appointment.cancelled.v1",
			Payload:       payload,
		}); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": appt.ID,
		"status":         next.String(),
	})
}

type cancelRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

// Cancel is a convenience endpoint equivalent to a status update to
// cancelled. The slot frees up immediately once committed.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	body, err := json.Marshal(updateStatusRequest{
		BusinessID:    req.BusinessID,
		AppointmentID: req.AppointmentID,
		Status:        model.StatusCancelled.String(),
		Reason:        req.Reason,
	})
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	r2 := r.Clone(r.Context())
	r2.Body = io.NopCloser(bytes.NewReader(body))
	r2.ContentLength = int64(len(body))
	h.UpdateStatus(w, r2)
}

// Delete hard-removes an appointment row, for admin corrections only.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	appointmentID := strings.TrimSpace(q.Get("id"))
	if businessID == "" || appointmentID == "" {
		http.Error(w, "business_id and id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(r.Context(), businessID, appointmentID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment delete failed", "err", err)
		http.Error(w, "failed to delete appointment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
