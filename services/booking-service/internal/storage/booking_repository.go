package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dfornaro/salonbook/libs/db"
	"github.com/dfornaro/salonbook/services/booking-service/internal/model"
)

// ErrConflict is returned when the requested time range overlaps a live
// appointment for the same professional.
var ErrConflict = errors.New("time range conflicts with an existing appointment")

var ErrNotFound = errors.New("appointment not found")

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts the appointment after re-validating conflicts and upserting
// the customer, all in one transaction. Overlap uses half-open intersection
// (existing.start < new.end AND existing.end > new.start); cancelled
// appointments never conflict. An appointment without an assigned
// professional occupies the whole business, so it conflicts with every live
// appointment in the window and every staff-specific appointment conflicts
// with it. Locking the overlapping rows serializes concurrent creates for
// the same window; the count happens client-side because FOR UPDATE cannot
// be combined with an aggregate.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	customerID, err := r.upsertCustomer(ctx, tx, appt)
	if err != nil {
		return "", err
	}
	appt.CustomerID = customerID

	rows, err := tx.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE business_id = $1
			AND ($2::uuid IS NULL OR staff_id IS NULL OR staff_id = $2)
			AND status <> 'cancelled'
			AND start_time < $4
			AND end_time > $3
		FOR UPDATE
	`, appt.BusinessID, nullIfEmpty(appt.StaffID), appt.StartTime, appt.EndTime)
	if err != nil {
		return "", err
	}
	overlapping, err := countRows(rows)
	if err != nil {
		return "", err
	}
	if overlapping > 0 {
		return "", ErrConflict
	}

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, business_id, service_id, staff_id, customer_id, customer_name, customer_email, customer_phone,
			 start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, appt.BusinessID, appt.ServiceID, nullIfEmpty(appt.StaffID), customerID,
		appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.StartTime, appt.EndTime, appt.Status.String(), appt.Notes)
	if err != nil {
		return "", err
	}
	return id, nil
}

// upsertCustomer finds the tenant's customer by contact (email first, then
// phone) or creates one. Repeat bookers keep a single customer row.
func (r *BookingRepository) upsertCustomer(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	email := strings.TrimSpace(strings.ToLower(appt.CustomerEmail))
	phone := strings.TrimSpace(appt.CustomerPhone)

	var id string
	err := tx.QueryRow(ctx, `
		SELECT id::text
		FROM customers
		WHERE business_id = $1
			AND ((email <> '' AND email = $2) OR (phone <> '' AND phone = $3))
		ORDER BY created_at
		LIMIT 1
	`, appt.BusinessID, email, phone).Scan(&id)
	if err == nil {
		_, err = tx.Exec(ctx, `
			UPDATE customers SET name = $2, updated_at = now()
			WHERE id = $1
		`, id, appt.CustomerName)
		return id, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	id = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO customers (id, business_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
	`, id, appt.BusinessID, appt.CustomerName, email, phone)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT id::text, business_id::text, service_id::text, COALESCE(staff_id::text, ''), COALESCE(customer_id::text, ''),
			customer_name, customer_email, customer_phone,
			start_time, end_time, status, COALESCE(notes, ''), cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, appointmentID, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

// SetStatus persists a validated status change. Cancellation additionally
// stamps cancelled_at and the reason.
func (r *BookingRepository) SetStatus(ctx context.Context, tx pgx.Tx, businessID, appointmentID string, next model.Status, reason string) error {
	if next == model.StatusCancelled {
		_, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $3, cancelled_at = now(), cancellation_reason = $4
			WHERE id = $1 AND business_id = $2
		`, appointmentID, businessID, next.String(), reason)
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND business_id = $2
	`, appointmentID, businessID, next.String())
	return err
}

// Delete hard-removes an appointment. This is an admin correction path only;
// the normal lifecycle never deletes rows.
func (r *BookingRepository) Delete(ctx context.Context, businessID, appointmentID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1 AND business_id = $2
	`, appointmentID, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDay returns every appointment touching the given window, across all
// staff, including cancelled ones; the availability engine decides what
// occupies slots.
func (r *BookingRepository) ListDay(ctx context.Context, businessID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, service_id::text, COALESCE(staff_id::text, ''), COALESCE(customer_id::text, ''),
			customer_name, customer_email, customer_phone,
			start_time, end_time, status, COALESCE(notes, ''), cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM appointments
		WHERE business_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, businessID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListRange returns appointments for the admin dashboard with service and
// staff display names joined in.
func (r *BookingRepository) ListRange(ctx context.Context, businessID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT a.id::text, a.business_id::text, a.service_id::text, COALESCE(a.staff_id::text, ''), COALESCE(a.customer_id::text, ''),
			a.customer_name, a.customer_email, a.customer_phone,
			a.start_time, a.end_time, a.status, COALESCE(a.notes, ''), a.cancelled_at, COALESCE(a.cancellation_reason, ''), a.created_at,
			COALESCE(s.name, ''), COALESCE(st.name, '')
		FROM appointments a
		LEFT JOIN business_services s ON s.id = a.service_id
		LEFT JOIN staff st ON st.id = a.staff_id
		WHERE a.business_id = $1
			AND a.start_time >= $2
			AND a.start_time < $3
		ORDER BY a.start_time
		LIMIT $4
	`, businessID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointmentJoined(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *BookingRepository) ListTimeBlocks(ctx context.Context, businessID string, start, end time.Time) ([]model.TimeBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(staff_id::text, ''), start_time, end_time, COALESCE(reason, '')
		FROM time_blocks
		WHERE business_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, businessID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		var blk model.TimeBlock
		if err := rows.Scan(&blk.ID, &blk.BusinessID, &blk.StaffID, &blk.StartTime, &blk.EndTime, &blk.Reason); err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID, &appt.BusinessID, &appt.ServiceID, &appt.StaffID, &appt.CustomerID,
		&appt.CustomerName, &appt.CustomerEmail, &appt.CustomerPhone,
		&appt.StartTime, &appt.EndTime, &status, &appt.Notes, &cancelledAt, &appt.CancelReason, &appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	appt.Status, err = model.ParseStatus(status)
	return appt, err
}

func scanAppointmentJoined(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID, &appt.BusinessID, &appt.ServiceID, &appt.StaffID, &appt.CustomerID,
		&appt.CustomerName, &appt.CustomerEmail, &appt.CustomerPhone,
		&appt.StartTime, &appt.EndTime, &status, &appt.Notes, &cancelledAt, &appt.CancelReason, &appt.CreatedAt,
		&appt.ServiceName, &appt.StaffName,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	appt.Status, err = model.ParseStatus(status)
	return appt, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// rowIterator is the slice of pgx.Rows needed to drain a lock-acquiring
// select where only the row count matters.
type rowIterator interface {
	Next() bool
	Err() error
	Close()
}

func countRows(rows rowIterator) (int, error) {
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// nullIfEmpty maps the empty string to SQL NULL for nullable uuid columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
