package organizations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartess/backend/internal/models"
)

// ErrNoMembership is returned when a user has no membership row for a project.
var ErrNoMembership = errors.New("no membership")

// Repository reads org_user and project rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrgUsers(rows pgx.Rows) ([]models.OrgUser, error) {
	defer rows.Close()
	var list []models.OrgUser
	for rows.Next() {
		var m models.OrgUser
		var role string
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.ProjID, &role); err != nil {
			return nil, err
		}
		m.OrgUserType = models.OrgUserType(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// GetMembership returns the user's membership row for a project.
func (r *Repository) GetMembership(ctx context.Context, userID, projID string) (*models.OrgUser, error) {
	const q = `SELECT user_id, org_id, proj_id, org_user_type FROM org_user
		WHERE user_id = $1 AND proj_id = $2
		ORDER BY org_user_id LIMIT 1`
	var m models.OrgUser
	var role string
	err := r.pool.QueryRow(ctx, q, userID, projID).Scan(&m.UserID, &m.OrgID, &m.ProjID, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMembership
	}
	if err != nil {
		return nil, err
	}
	m.OrgUserType = models.OrgUserType(role)
	return &m, nil
}

// ListMemberships returns every membership row of a user, oldest first.
func (r *Repository) ListMemberships(ctx context.Context, userID string) ([]models.OrgUser, error) {
	const q = `SELECT user_id, org_id, proj_id, org_user_type FROM org_user
		WHERE user_id = $1 ORDER BY org_user_id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanOrgUsers(rows)
}

// ListProjectMembers returns the members of a project whose role is in types.
func (r *Repository) ListProjectMembers(ctx context.Context, projID string, types []models.OrgUserType) ([]models.OrgUser, error) {
	roles := make([]string, len(types))
	for i, t := range types {
		roles[i] = string(t)
	}
	const q = `SELECT user_id, org_id, proj_id, org_user_type FROM org_user
		WHERE proj_id = $1 AND org_user_type = ANY($2) ORDER BY org_user_id`
	rows, err := r.pool.Query(ctx, q, projID, roles)
	if err != nil {
		return nil, err
	}
	return scanOrgUsers(rows)
}

const projectColumns = `proj_id, org_id, address, admin_users_count, hub_users_count, pending_tickets_count`

func scanProjects(rows pgx.Rows) ([]models.Project, error) {
	defer rows.Close()
	var list []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ProjID, &p.OrgID, &p.Address, &p.AdminUsersCount, &p.HubUsersCount, &p.PendingTicketsCount); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ProjectsByIDs returns the projects with the given IDs.
func (r *Repository) ProjectsByIDs(ctx context.Context, projIDs []string) ([]models.Project, error) {
	if len(projIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + projectColumns + ` FROM project WHERE proj_id = ANY($1) ORDER BY proj_id`
	rows, err := r.pool.Query(ctx, q, projIDs)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

// ProjectsByOrgIDs returns every project of the given organizations.
func (r *Repository) ProjectsByOrgIDs(ctx context.Context, orgIDs []string) ([]models.Project, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + projectColumns + ` FROM project WHERE org_id = ANY($1) ORDER BY proj_id`
	rows, err := r.pool.Query(ctx, q, orgIDs)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

// GetProjectByAddress returns the project at an address.
func (r *Repository) GetProjectByAddress(ctx context.Context, address string) (*models.Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM project WHERE address = $1 ORDER BY proj_id LIMIT 1`
	rows, err := r.pool.Query(ctx, q, address)
	if err != nil {
		return nil, err
	}
	list, err := scanProjects(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &list[0], nil
}
