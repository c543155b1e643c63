package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// BusinessEntitlements is the locally cached slice of the tenant's plan,
// kept up to date by consuming billing entitlement events.
type BusinessEntitlements struct {
	BusinessID             string
	Tier                   string
	MaxMonthlyAppointments int
}

func (r *BookingRepository) UpsertEntitlements(ctx context.Context, tx pgx.Tx, ent BusinessEntitlements) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO business_entitlements (business_id, tier, max_monthly_appointments, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (business_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			max_monthly_appointments = EXCLUDED.max_monthly_appointments,
			updated_at = now()
	`, ent.BusinessID, ent.Tier, ent.MaxMonthlyAppointments)
	return err
}

func (r *BookingRepository) GetEntitlements(ctx context.Context, tx pgx.Tx, businessID string) (BusinessEntitlements, bool, error) {
	var ent BusinessEntitlements
	err := tx.QueryRow(ctx, `
		SELECT business_id::text, tier, max_monthly_appointments
		FROM business_entitlements
		WHERE business_id = $1
	`, businessID).Scan(&ent.BusinessID, &ent.Tier, &ent.MaxMonthlyAppointments)
	if errors.Is(err, pgx.ErrNoRows) {
		return BusinessEntitlements{}, false, nil
	}
	if err != nil {
		return BusinessEntitlements{}, false, err
	}
	return ent, true, nil
}

// CountLiveInRange counts non-cancelled appointments starting inside
// [from, to), used for monthly plan-cap enforcement.
func (r *BookingRepository) CountLiveInRange(ctx context.Context, tx pgx.Tx, businessID string, from, to time.Time) (int, error) {
	var cnt int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE business_id = $1
			AND status <> 'cancelled'
			AND start_time >= $2
			AND start_time < $3
	`, businessID, from, to).Scan(&cnt)
	return cnt, err
}
