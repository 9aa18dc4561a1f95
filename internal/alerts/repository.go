package alerts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartess/backend/internal/models"
)

// ErrUnknownHub is returned when an alert names a hub that does not exist.
var ErrUnknownHub = errors.New("unknown hub")

// Repository reads and writes alert rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an alerts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an alert and returns the hub's project ID. The hub must exist.
func (r *Repository) Insert(ctx context.Context, a *models.Alert) (string, error) {
	const q = `INSERT INTO alerts (hub_id, description, message, active, type, created_at, device_id, hub_ip)
		SELECT h.hub_id, $2, $3, $4, $5, $6, $7, $8 FROM hub h WHERE h.hub_id = $1
		RETURNING alert_id, (SELECT proj_id FROM hub WHERE hub_id = $1)`
	var projID string
	err := r.pool.QueryRow(ctx, q, a.HubID, a.Description, a.Message, a.Active, a.Type,
		a.CreatedAt, a.DeviceID, a.HubIP).Scan(&a.AlertID, &projID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownHub
	}
	if err != nil {
		return "", err
	}
	return projID, nil
}

// ListByHubs returns the alerts of the given hubs, newest first.
func (r *Repository) ListByHubs(ctx context.Context, hubIDs []string) ([]models.Alert, error) {
	if len(hubIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT alert_id, hub_id, description, message, active, type, created_at, device_id, hub_ip
		FROM alerts WHERE hub_id = ANY($1) ORDER BY created_at DESC, alert_id DESC`
	rows, err := r.pool.Query(ctx, q, hubIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertID, &a.HubID, &a.Description, &a.Message, &a.Active, &a.Type,
			&a.CreatedAt, &a.DeviceID, &a.HubIP); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
