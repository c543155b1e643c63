package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type BusinessProfile struct {
	BusinessID string
	Name       string
	Timezone   string
}

func (r *Repository) GetOrCreateProfile(ctx context.Context, businessID string) (BusinessProfile, error) {
	// Create a default profile if missing (keeps dev UX smooth while other services mature).
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_profiles (business_id)
		VALUES ($1)
		ON CONFLICT (business_id) DO NOTHING
	`, businessID)
	if err != nil {
		return BusinessProfile{}, err
	}

	var p BusinessProfile
	err = r.pool.QueryRow(ctx, `
		SELECT business_id::text, name, timezone
		FROM business_profiles
		WHERE business_id = $1
	`, businessID).Scan(&p.BusinessID, &p.Name, &p.Timezone)
	return p, err
}

func (r *Repository) UpdateProfile(ctx context.Context, businessID, name, timezone string) error {
	if timezone == "" {
		timezone = "UTC"
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_profiles (business_id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, businessID, name, timezone)
	return err
}

type BusinessHours struct {
	Weekday     int
	OpenMinute  int
	CloseMinute int
	IsClosed    bool
}

func (r *Repository) ListHours(ctx context.Context, businessID string) ([]BusinessHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_minute, close_minute, is_closed
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusinessHours
	for rows.Next() {
		var h BusinessHours
		if err := rows.Scan(&h.Weekday, &h.OpenMinute, &h.CloseMinute, &h.IsClosed); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) UpsertHours(ctx context.Context, businessID string, h BusinessHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (business_id, weekday, open_minute, close_minute, is_closed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, weekday) DO UPDATE
		SET open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			is_closed = EXCLUDED.is_closed
	`, businessID, h.Weekday, h.OpenMinute, h.CloseMinute, h.IsClosed)
	return err
}

// SeedDefaultHours writes the stock week (09:00-18:00 Mon-Sat, Sunday closed)
// without touching rows the tenant already customized.
func (r *Repository) SeedDefaultHours(ctx context.Context, businessID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for wd := 0; wd <= 6; wd++ {
		closed := wd == 0
		open, close := 540, 1080
		if closed {
			open, close = 0, 0
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_hours (business_id, weekday, open_minute, close_minute, is_closed)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (business_id, weekday) DO NOTHING
		`, businessID, wd, open, close, closed); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type BusinessService struct {
	ID           string
	BusinessID   string
	Name         string
	DurationMins int
	Price        string
	Description  string
	CreatedAt    time.Time
}

func (r *Repository) CreateService(ctx context.Context, businessID, name string, durationMinutes int, price, description string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_services (id, business_id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, businessID, name, durationMinutes, price, description)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListServices(ctx context.Context, businessID string, limit int) ([]BusinessService, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, description, created_at
		FROM business_services
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusinessService
	for rows.Next() {
		var s BusinessService
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) DeleteService(ctx context.Context, businessID, serviceID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM business_services
		WHERE business_id = $1 AND id = $2
	`, businessID, serviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
}

func (r *Repository) CreateStaff(ctx context.Context, businessID, name string, isActive bool) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, business_id, name, is_active)
		VALUES ($1, $2, $3, $4)
	`, id, businessID, name, isActive)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListStaff(ctx context.Context, businessID string, limit int) ([]Staff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, is_active
		FROM staff
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) SetStaffActive(ctx context.Context, businessID, staffID string, isActive bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff
		SET is_active = $3
		WHERE business_id = $1 AND id = $2
	`, businessID, staffID, isActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type TimeBlock struct {
	ID         string
	BusinessID string
	StaffID    string
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	CreatedAt  time.Time
}

func (r *Repository) CreateTimeBlock(ctx context.Context, businessID, staffID string, startTime, endTime time.Time, reason string) (string, error) {
	if staffID != "" {
		var exists bool
		if err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM staff WHERE id = $1 AND business_id = $2
			)
		`, staffID, businessID).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return "", pgx.ErrNoRows
		}
	}

	id := uuid.NewString()
	var staff any
	if staffID != "" {
		staff = staffID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO time_blocks (id, business_id, staff_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, businessID, staff, startTime, endTime, reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListTimeBlocks(ctx context.Context, businessID string, from, to time.Time, limit int) ([]TimeBlock, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(staff_id::text, ''), start_time, end_time, COALESCE(reason, ''), created_at
		FROM time_blocks
		WHERE business_id = $1
			AND end_time > $2
			AND start_time < $3
		ORDER BY start_time ASC
		LIMIT $4
	`, businessID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeBlock
	for rows.Next() {
		var t TimeBlock
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.StaffID, &t.StartTime, &t.EndTime, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) DeleteTimeBlock(ctx context.Context, businessID, blockID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM time_blocks
		WHERE business_id = $1 AND id = $2
	`, businessID, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
