package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dfornaro/salonbook/services/booking-service/internal/availability"
	"github.com/dfornaro/salonbook/services/booking-service/internal/queue"
)

type slotItem struct {
	Time       string `json:"time"`
	State      string `json:"state"`
	Selectable bool   `json:"selectable"`
}

// Slots returns the classified 30-minute grid for one day. Times in the
// response are the tenant's local wall clock (HH:mm), matching how slots are
// selected on booking.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if businessID == "" || dateStr == "" {
		http.Error(w, "business_id and date are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	loc, err := h.businessLocation(ctx, businessID)
	if err != nil {
		h.logger.Error("failed to resolve business timezone", "err", err, "business_id", businessID)
		http.Error(w, "could not load available times", http.StatusInternalServerError)
		return
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	hours, err := h.schedule.WeekHours(ctx, businessID)
	if err != nil {
		h.logger.Error("failed to load business hours", "err", err, "business_id", businessID)
		http.Error(w, "could not load available times", http.StatusInternalServerError)
		return
	}

	appts, err := h.repo.ListDay(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("failed to load appointments", "err", err, "business_id", businessID)
		http.Error(w, "could not load available times", http.StatusInternalServerError)
		return
	}
	blocks, err := h.repo.ListTimeBlocks(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("failed to load time blocks", "err", err, "business_id", businessID)
		http.Error(w, "could not load available times", http.StatusInternalServerError)
		return
	}

	durationMins := 0
	if serviceID != "" {
		durationMins, err = h.schedule.ServiceDuration(ctx, businessID, serviceID)
		if err != nil {
			h.logger.Error("failed to load service duration", "err", err, "service_id", serviceID)
			http.Error(w, "could not load available times", http.StatusInternalServerError)
			return
		}
	}

	in := availability.Input{
		Date:           day,
		Hours:          hours,
		StaffID:        staffID,
		ServiceMinutes: durationMins,
		Now:            time.Now().In(loc),
	}
	for _, a := range appts {
		in.Bookings = append(in.Bookings, availability.Booking{
			StaffID:   a.StaffID,
			Start:     a.StartTime.In(loc),
			End:       a.EndTime.In(loc),
			Cancelled: !a.Status.Blocking(),
		})
	}
	for _, b := range blocks {
		in.Blocks = append(in.Blocks, availability.Block{
			StaffID: b.StaffID,
			Start:   b.StartTime.In(loc),
			End:     b.EndTime.In(loc),
		})
	}

	slots := availability.DaySlots(in)
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			Time:       s.Label(),
			State:      s.State.String(),
			Selectable: s.Selectable(),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type publicBookRequest struct {
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"` // YYYY-MM-DD, tenant-local
	Time          string `json:"time"` // HH:mm, tenant-local
	Notes         string `json:"notes"`
}

// Book enqueues a public submission and returns immediately; the queue worker
// commits it. 202 tells the customer their request is queued, not accepted.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req publicBookRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)

	if req.BusinessID == "" || req.ServiceID == "" || req.CustomerName == "" {
		http.Error(w, "business_id, service_id and customer_name are required", http.StatusBadRequest)
		return
	}
	if req.CustomerEmail == "" && req.CustomerPhone == "" {
		http.Error(w, "customer_email or customer_phone is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	loc, err := h.businessLocation(ctx, req.BusinessID)
	if err != nil {
		http.Error(w, "could not resolve business", http.StatusInternalServerError)
		return
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, loc)
	if err != nil {
		http.Error(w, "invalid date/time", http.StatusBadRequest)
		return
	}

	durationMins, err := h.schedule.ServiceDuration(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		http.Error(w, "could not resolve service", http.StatusInternalServerError)
		return
	}
	if durationMins <= 0 {
		durationMins = availability.SlotMinutes
	}

	id, position := h.queue.Enqueue(queue.Payload{
		BusinessID:    req.BusinessID,
		ServiceID:     req.ServiceID,
		StaffID:       req.StaffID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(durationMins) * time.Minute),
		Notes:         strings.TrimSpace(req.Notes),
	})

	h.logger.Info("booking queued", "queued_id", id, "position", position, "business_id", req.BusinessID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued_id": id,
		"position":  position,
	})
}

// BookStatus reports the queue state for a submission: pending with its
// position, confirmed with the appointment id, or failed with the reason.
func (h *BookingHandler) BookStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	st, ok := h.queue.Status(id)
	if !ok {
		http.Error(w, "unknown submission", http.StatusNotFound)
		return
	}

	resp := map[string]any{
		"state":    st.State.String(),
		"attempts": st.Attempts,
	}
	switch st.State {
	case queue.StatePending:
		resp["position"] = st.Position
	case queue.StateConfirmed:
		resp["appointment_id"] = st.AppointmentID
	case queue.StateFailed:
		resp["reason"] = st.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) businessLocation(ctx context.Context, businessID string) (*time.Location, error) {
	tz, err := h.schedule.Timezone(ctx, businessID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// A bad stored zone should not take booking down; log and fall back.
		h.logger.Warn("invalid business timezone; using UTC", "tz", tz, "business_id", businessID)
		return time.UTC, nil
	}
	return loc, nil
}
