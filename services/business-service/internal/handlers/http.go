package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/services/business-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func businessIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Business-Id"))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	p, err := h.repo.GetOrCreateProfile(r.Context(), businessID)
	if err != nil {
		h.logger.Error("failed to load profile", "err", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	// First read also seeds the stock week so the slot grid works out of the box.
	if err := h.repo.SeedDefaultHours(r.Context(), businessID); err != nil {
		h.logger.Warn("failed to seed default hours", "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"business_id": p.BusinessID,
		"name":        p.Name,
		"timezone":    p.Timezone,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateProfile(r.Context(), businessID, req.Name, req.Timezone); err != nil {
		h.logger.Error("failed to update profile", "err", err)
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Hours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listHours(w, r)
	case http.MethodPut:
		h.putHours(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type hoursItem struct {
	Weekday     int  `json:"weekday"`
	OpenMinute  int  `json:"open_minute"`
	CloseMinute int  `json:"close_minute"`
	IsClosed    bool `json:"is_closed"`
}

func (h *Handler) listHours(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	hours, err := h.repo.ListHours(r.Context(), businessID)
	if err != nil {
		h.logger.Error("failed to list hours", "err", err)
		http.Error(w, "failed to list hours", http.StatusInternalServerError)
		return
	}

	items := make([]hoursItem, 0, len(hours))
	for _, bh := range hours {
		items = append(items, hoursItem{
			Weekday:     bh.Weekday,
			OpenMinute:  bh.OpenMinute,
			CloseMinute: bh.CloseMinute,
			IsClosed:    bh.IsClosed,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) putHours(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var items []hoursItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "at least one weekday required", http.StatusBadRequest)
		return
	}
	for _, it := range items {
		if it.Weekday < 0 || it.Weekday > 6 {
			http.Error(w, "weekday must be 0..6", http.StatusBadRequest)
			return
		}
		if !it.IsClosed {
			if it.OpenMinute < 0 || it.CloseMinute > 24*60 || it.OpenMinute >= it.CloseMinute {
				http.Error(w, "open_minute must be before close_minute within the day", http.StatusBadRequest)
				return
			}
			// The public grid is half-hour aligned; reject hours it cannot render.
			if it.OpenMinute%30 != 0 || it.CloseMinute%30 != 0 {
				http.Error(w, "minutes must align to 30-minute boundaries", http.StatusBadRequest)
				return
			}
		}
	}

	for _, it := range items {
		if err := h.repo.UpsertHours(r.Context(), businessID, storage.BusinessHours{
			Weekday:     it.Weekday,
			OpenMinute:  it.OpenMinute,
			CloseMinute: it.CloseMinute,
			IsClosed:    it.IsClosed,
		}); err != nil {
			h.logger.Error("failed to upsert hours", "err", err, "weekday", it.Weekday)
			http.Error(w, "failed to save hours", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listServices(w, r)
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodDelete:
		h.deleteService(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		DurationMins int     `json:"duration_minutes"`
		Price        float64 `json:"price"`
		Description  string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.DurationMins <= 0 {
		http.Error(w, "name and duration_minutes required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), businessID, req.Name, req.DurationMins, strconv.FormatFloat(req.Price, 'f', 2, 64), req.Description)
	if err != nil {
		h.logger.Error("failed to create service", "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	services, err := h.repo.ListServices(r.Context(), businessID, 0)
	if err != nil {
		h.logger.Error("failed to list services", "err", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(services))
	for _, s := range services {
		items = append(items, map[string]any{
			"id":               s.ID,
			"name":             s.Name,
			"duration_minutes": s.DurationMins,
			"price":            s.Price,
			"description":      s.Description,
			"created_at":       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	serviceID := strings.TrimSpace(r.URL.Query().Get("id"))
	if businessID == "" || serviceID == "" {
		http.Error(w, "missing X-Business-Id or id", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteService(r.Context(), businessID, serviceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete service", "err", err)
		http.Error(w, "failed to delete service", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listStaff(w, r)
	case http.MethodPost:
		h.createStaff(w, r)
	case http.MethodPatch:
		h.setStaffActive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	id, err := h.repo.CreateStaff(r.Context(), businessID, req.Name, active)
	if err != nil {
		h.logger.Error("failed to create staff", "err", err)
		http.Error(w, "failed to create staff", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	staff, err := h.repo.ListStaff(r.Context(), businessID, 0)
	if err != nil {
		h.logger.Error("failed to list staff", "err", err)
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(staff))
	for _, s := range staff {
		items = append(items, map[string]any{
			"id":        s.ID,
			"name":      s.Name,
			"is_active": s.IsActive,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) setStaffActive(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		StaffID  string `json:"staff_id"`
		IsActive bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetStaffActive(r.Context(), businessID, req.StaffID, req.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update staff", "err", err)
		http.Error(w, "failed to update staff", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TimeBlocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTimeBlocks(w, r)
	case http.MethodPost:
		h.createTimeBlock(w, r)
	case http.MethodDelete:
		h.deleteTimeBlock(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createTimeBlock(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		StaffID   string `json:"staff_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
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

	id, err := h.repo.CreateTimeBlock(r.Context(), businessID, strings.TrimSpace(req.StaffID), start, end, strings.TrimSpace(req.Reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to create time block", "err", err)
		http.Error(w, "failed to create time block", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listTimeBlocks(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 90)
	q := r.URL.Query()
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

	blocks, err := h.repo.ListTimeBlocks(r.Context(), businessID, from, to, 0)
	if err != nil {
		h.logger.Error("failed to list time blocks", "err", err)
		http.Error(w, "failed to list time blocks", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, map[string]any{
			"id":         b.ID,
			"staff_id":   b.StaffID,
			"start_time": b.StartTime.UTC().Format(time.RFC3339),
			"end_time":   b.EndTime.UTC().Format(time.RFC3339),
			"reason":     b.Reason,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) deleteTimeBlock(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromHeader(r)
	blockID := strings.TrimSpace(r.URL.Query().Get("id"))
	if businessID == "" || blockID == "" {
		http.Error(w, "missing X-Business-Id or id", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteTimeBlock(r.Context(), businessID, blockID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "time block not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete time block", "err", err)
		http.Error(w, "failed to delete time block", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
