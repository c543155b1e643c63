package subscriptions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/libs/eventx"
	"github.com/dfornaro/salonbook/services/billing-service/internal/entitlements"
	"github.com/dfornaro/salonbook/services/billing-service/internal/storage"
)

// Service encapsulates subscription state transitions and the side effects (outbox events).
// Keeping this out of HTTP handlers makes it reusable for webhook + reconciliation flows.
type Service struct {
	repo       *storage.Repository
	outboxRepo *eventx.OutboxRepository
}

func New(repo *storage.Repository, outboxRepo *eventx.OutboxRepository) *Service {
	return &Service{repo: repo, outboxRepo: outboxRepo}
}

func (s *Service) ApplyActivated(ctx context.Context, tx pgx.Tx, businessID, tier string, activatedAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, businessID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		BusinessID:           businessID,
		Tier:                 tier,
		Status:               "active",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	// Only emit when the effective entitlement changes (tier/status). Provider ID updates alone shouldn't fan out.
	if ok && existing.Status == "active" && existing.Tier == tier {
		return nil
	}
	return s.emitEntitlements(ctx, tx, businessID, tier, activatedAt)
}

func (s *Service) ApplyCanceled(ctx context.Context, tx pgx.Tx, businessID string, canceledAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, businessID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		BusinessID:           businessID,
		Tier:                 "free",
		Status:               "canceled",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	if ok && existing.Status == "canceled" && existing.Tier == "free" {
		return nil
	}
	return s.emitEntitlements(ctx, tx, businessID, "free", canceledAt)
}

func (s *Service) emitEntitlements(ctx context.Context, tx pgx.Tx, businessID, tier string, effectiveAt time.Time) error {
	limits := entitlements.LimitsForTier(tier)
	payload, err := json.Marshal(map[string]any{
		"business_id":              businessID,
		"tier":                     limits.Tier,
		"max_staff":                limits.MaxStaff,
		"max_services":             limits.MaxServices,
		"max_monthly_appointments": limits.MaxMonthlyAppointments,
		"effective_at":             effectiveAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.Insert(ctx, tx, eventx.Event{
		AggregateType: "subscription",
		AggregateID:   businessID,
		EventType:     "billing.entitlements.updated.v1",
		Payload:       payload,
	})
}
