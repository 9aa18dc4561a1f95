package units

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartess/backend/internal/models"
)

// ErrHubNotFound is returned when no hub matches a lookup.
var ErrHubNotFound = errors.New("hub not found")

// Repository reads hub, hub_user and ticket rows for the unit views.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a units repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const hubColumns = `hub_id, proj_id, unit_number, status`

func scanHubs(rows pgx.Rows) ([]models.Hub, error) {
	defer rows.Close()
	var list []models.Hub
	for rows.Next() {
		var h models.Hub
		if err := rows.Scan(&h.HubID, &h.ProjID, &h.UnitNumber, &h.Status); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// HubsByProjects returns the hubs of the given projects ordered by unit number.
func (r *Repository) HubsByProjects(ctx context.Context, projIDs []string) ([]models.Hub, error) {
	if len(projIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + hubColumns + ` FROM hub WHERE proj_id = ANY($1) ORDER BY unit_number, hub_id`
	rows, err := r.pool.Query(ctx, q, projIDs)
	if err != nil {
		return nil, err
	}
	return scanHubs(rows)
}

func (r *Repository) oneHub(ctx context.Context, q string, args ...any) (*models.Hub, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	list, err := scanHubs(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrHubNotFound
	}
	return &list[0], nil
}

// GetHubByUnit returns the hub with unitNumber in a project.
func (r *Repository) GetHubByUnit(ctx context.Context, projID, unitNumber string) (*models.Hub, error) {
	const q = `SELECT ` + hubColumns + ` FROM hub WHERE proj_id = $1 AND unit_number = $2 ORDER BY hub_id LIMIT 1`
	return r.oneHub(ctx, q, projID, unitNumber)
}

// GetHub returns a hub by ID.
func (r *Repository) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	const q = `SELECT ` + hubColumns + ` FROM hub WHERE hub_id = $1`
	return r.oneHub(ctx, q, hubID)
}

// HubUsersByHubs returns the hub_user rows of the given hubs.
func (r *Repository) HubUsersByHubs(ctx context.Context, hubIDs []string) ([]models.HubUser, error) {
	if len(hubIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT hub_id, user_id, hub_user_type FROM hub_user
		WHERE hub_id = ANY($1) ORDER BY hub_id, user_id`
	rows, err := r.pool.Query(ctx, q, hubIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.HubUser
	for rows.Next() {
		var hu models.HubUser
		var kind string
		if err := rows.Scan(&hu.HubID, &hu.UserID, &kind); err != nil {
			return nil, err
		}
		hu.HubUserType = models.HubUserType(kind)
		list = append(list, hu)
	}
	return list, rows.Err()
}

// TicketsByHubs returns the tickets raised against the given hubs, oldest first.
func (r *Repository) TicketsByHubs(ctx context.Context, hubIDs []string) ([]models.Ticket, error) {
	if len(hubIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ticket_id, proj_id, hub_id, description, type, status, created_at
		FROM tickets WHERE hub_id = ANY($1) ORDER BY created_at, ticket_id`
	rows, err := r.pool.Query(ctx, q, hubIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Ticket
	for rows.Next() {
		var t models.Ticket
		var status string
		if err := rows.Scan(&t.TicketID, &t.ProjID, &t.HubID, &t.Description, &t.Type, &status, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Status = models.TicketStatus(status)
		list = append(list, t)
	}
	return list, rows.Err()
}

// DeleteHubUser removes a user from a hub and reports how many rows went away.
func (r *Repository) DeleteHubUser(ctx context.Context, hubID, userID string) (int64, error) {
	const q = `DELETE FROM hub_user WHERE hub_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, hubID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
