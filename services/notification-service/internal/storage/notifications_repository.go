package storage

import (
	"context"
	"encoding/json"

	"github.com/dfornaro/salonbook/libs/db"
)

type Notification struct {
	AppointmentID string
	BusinessID    string
	Channel       string
	Recipient     string
	Kind          string
	Payload       map[string]any
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, business_id, channel, recipient, kind, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.AppointmentID, n.BusinessID, n.Channel, n.Recipient, n.Kind, payload, n.Status)
	return err
}
