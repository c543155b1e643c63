package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/libs/db"
	"github.com/dfornaro/salonbook/services/booking-service/internal/availability"
)

// ScheduleRepository reads the tenant configuration the availability engine
// consumes: profile timezone, business hours, and service durations. These
// tables are written by business-service; both services share one schema.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Timezone returns the tenant's IANA timezone name, defaulting to UTC for
// tenants without a profile row.
func (r *ScheduleRepository) Timezone(ctx context.Context, businessID string) (string, error) {
	var tz string
	err := r.pool.QueryRow(ctx, `
		SELECT timezone
		FROM business_profiles
		WHERE business_id = $1
	`, businessID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return "UTC", nil
	}
	if err != nil {
		return "", err
	}
	if tz == "" {
		tz = "UTC"
	}
	return tz, nil
}

// WeekHours loads the tenant's configured business hours. Weekdays without a
// row are simply absent; the engine applies its defaults for them.
func (r *ScheduleRepository) WeekHours(ctx context.Context, businessID string) (availability.WeekHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_minute, close_minute, is_closed
		FROM business_hours
		WHERE business_id = $1
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := availability.WeekHours{}
	for rows.Next() {
		var weekday, open, close int
		var closed bool
		if err := rows.Scan(&weekday, &open, &close, &closed); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		hours[time.Weekday(weekday)] = availability.DayHours{
			OpenMinute:  open,
			CloseMinute: close,
			Closed:      closed,
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return hours, nil
}

// ServiceDuration returns the service's duration in minutes, or 0 when the
// service is unknown (the engine treats 0 as a single slot).
func (r *ScheduleRepository) ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error) {
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes
		FROM business_services
		WHERE business_id = $1 AND id = $2
	`, businessID, serviceID).Scan(&mins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mins, nil
}
