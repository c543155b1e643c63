package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/services/billing-service/internal/entitlements"
	"github.com/dfornaro/salonbook/services/billing-service/internal/storage"
	"github.com/dfornaro/salonbook/services/billing-service/internal/subscriptions"
)

type Handler struct {
	repo                   *storage.Repository
	subSvc                 *subscriptions.Service
	logger                 *slog.Logger
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
}

func New(repo *storage.Repository, subSvc *subscriptions.Service, logger *slog.Logger, stripeWebhookSecret string, stripeWebhookTolerance time.Duration) *Handler {
	if stripeWebhookTolerance <= 0 {
		stripeWebhookTolerance = 5 * time.Minute
	}
	return &Handler{
		repo:                   repo,
		subSvc:                 subSvc,
		logger:                 logger,
		stripeWebhookSecret:    stripeWebhookSecret,
		stripeWebhookTolerance: stripeWebhookTolerance,
	}
}

// GetSubscription reports the tenant's current tier and derived limits.
// Tenants without a subscription row are on the free tier.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	sub, err := h.repo.GetSubscription(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			limits := entitlements.LimitsForTier("free")
			writeJSON(w, http.StatusOK, map[string]any{
				"business_id": businessID,
				"tier":        limits.Tier,
				"status":      "none",
				"limits":      limits,
			})
			return
		}
		h.logger.Error("failed to load subscription", "err", err)
		http.Error(w, "failed to load subscription", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"business_id": sub.BusinessID,
		"tier":        sub.Tier,
		"status":      sub.Status,
		"provider":    sub.Provider,
		"limits":      entitlements.LimitsForTier(sub.Tier),
	}
	if sub.CurrentPeriodStart != nil {
		resp["current_period_start"] = sub.CurrentPeriodStart.UTC().Format(time.RFC3339)
	}
	if sub.CurrentPeriodEnd != nil {
		resp["current_period_end"] = sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
