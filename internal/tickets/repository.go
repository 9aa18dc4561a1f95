package tickets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/database"
)

// Lookup misses.
var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// Tx is the set of writes a ticket mutation performs atomically.
type Tx interface {
	LockTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	CountAssignments(ctx context.Context, ticketID string) (int, error)
	InsertAssignments(ctx context.Context, rows []models.TicketAssignment) error
	DeleteAssignments(ctx context.Context, ticketID, userID string) (int64, error)
	LockAssignment(ctx context.Context, ticketID, userID string) (*models.TicketAssignment, error)
	SetResolution(ctx context.Context, ticketID, userID string, status models.ResolvedStatus) error
	InsertNotifications(ctx context.Context, rows []models.TicketNotification) ([]models.TicketNotification, error)
	SetStatus(ctx context.Context, ticketID string, status models.TicketStatus) error
}

// Store is the ticket persistence used by Service.
type Store interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListTicketsByProjects(ctx context.Context, projIDs []string) ([]models.Ticket, error)
	ListTicketsByIDs(ctx context.Context, ticketIDs []string) ([]models.Ticket, error)
	HubUnits(ctx context.Context, hubIDs []string) (map[string]string, error)
	ProjectAddress(ctx context.Context, projID string) (string, error)
	ListAssignments(ctx context.Context, ticketID string) ([]models.TicketAssignment, error)
	ListAssignmentsForUser(ctx context.Context, userID string) ([]models.TicketAssignment, error)
	ListNotifications(ctx context.Context, userID string) ([]models.TicketNotification, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Repository is the pgx-backed Store.
type Repository struct {
	queries
	pool *pgxpool.Pool
}

// NewRepository creates a tickets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{queries: queries{db: pool}, pool: pool}
}

// WithTx runs fn against a transaction-bound Tx.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
}

// queries holds SQL shared by the pool and transaction paths.
type queries struct {
	db database.Querier
}

const ticketColumns = `ticket_id, proj_id, hub_id, description, description_detailed, type, status, submitted_by_user_id, created_at`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	var status string
	if err := row.Scan(&t.TicketID, &t.ProjID, &t.HubID, &t.Description, &t.DescriptionDetailed,
		&t.Type, &status, &t.SubmittedByUserID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TicketStatus(status)
	return &t, nil
}

func collectTickets(rows pgx.Rows, err error) ([]models.Ticket, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func (q *queries) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	const sql = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1`
	t, err := scanTicket(q.db.QueryRow(ctx, sql, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// LockTicket reads the ticket row FOR UPDATE; concurrent mutations of one ticket serialize here.
func (q *queries) LockTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	const sql = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1 FOR UPDATE`
	t, err := scanTicket(q.db.QueryRow(ctx, sql, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

func (q *queries) ListTicketsByProjects(ctx context.Context, projIDs []string) ([]models.Ticket, error) {
	if len(projIDs) == 0 {
		return nil, nil
	}
	const sql = `SELECT ` + ticketColumns + ` FROM tickets WHERE proj_id = ANY($1) ORDER BY created_at DESC, ticket_id`
	return collectTickets(q.db.Query(ctx, sql, projIDs))
}

func (q *queries) ListTicketsByIDs(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	const sql = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = ANY($1) ORDER BY created_at DESC, ticket_id`
	return collectTickets(q.db.Query(ctx, sql, ticketIDs))
}

func (q *queries) HubUnits(ctx context.Context, hubIDs []string) (map[string]string, error) {
	units := make(map[string]string, len(hubIDs))
	if len(hubIDs) == 0 {
		return units, nil
	}
	rows, err := q.db.Query(ctx, `SELECT hub_id, unit_number FROM hub WHERE hub_id = ANY($1)`, hubIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, unit string
		if err := rows.Scan(&id, &unit); err != nil {
			return nil, err
		}
		units[id] = unit
	}
	return units, rows.Err()
}

func (q *queries) ProjectAddress(ctx context.Context, projID string) (string, error) {
	var addr string
	err := q.db.QueryRow(ctx, `SELECT address FROM project WHERE proj_id = $1`, projID).Scan(&addr)
	return addr, err
}

func collectAssignments(rows pgx.Rows, err error) ([]models.TicketAssignment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TicketAssignment
	for rows.Next() {
		var a models.TicketAssignment
		var status string
		if err := rows.Scan(&a.TicketID, &a.AssignedToUserID, &a.AssignedByUserID, &status); err != nil {
			return nil, err
		}
		a.ResolvedStatus = models.ResolvedStatus(status)
		list = append(list, a)
	}
	return list, rows.Err()
}

const assignmentColumns = `ticket_id, assigned_to_user_id, assigned_by_user_id, resolved_status`

func (q *queries) ListAssignments(ctx context.Context, ticketID string) ([]models.TicketAssignment, error) {
	const sql = `SELECT ` + assignmentColumns + ` FROM tickets_assignments WHERE ticket_id = $1 ORDER BY assignment_id`
	return collectAssignments(q.db.Query(ctx, sql, ticketID))
}

func (q *queries) ListAssignmentsForUser(ctx context.Context, userID string) ([]models.TicketAssignment, error) {
	const sql = `SELECT ` + assignmentColumns + ` FROM tickets_assignments WHERE assigned_to_user_id = $1 ORDER BY assignment_id`
	return collectAssignments(q.db.Query(ctx, sql, userID))
}

func (q *queries) CountAssignments(ctx context.Context, ticketID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets_assignments WHERE ticket_id = $1`, ticketID).Scan(&n)
	return n, err
}

func (q *queries) InsertAssignments(ctx context.Context, rows []models.TicketAssignment) error {
	const sql = `INSERT INTO tickets_assignments (ticket_id, assigned_to_user_id, assigned_by_user_id, resolved_status)
		VALUES ($1, $2, $3, $4)`
	b := &pgx.Batch{}
	for _, a := range rows {
		b.Queue(sql, a.TicketID, a.AssignedToUserID, a.AssignedByUserID, string(a.ResolvedStatus))
	}
	return q.db.SendBatch(ctx, b).Close()
}

func (q *queries) DeleteAssignments(ctx context.Context, ticketID, userID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM tickets_assignments WHERE ticket_id = $1 AND assigned_to_user_id = $2`, ticketID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *queries) LockAssignment(ctx context.Context, ticketID, userID string) (*models.TicketAssignment, error) {
	const sql = `SELECT ` + assignmentColumns + ` FROM tickets_assignments
		WHERE ticket_id = $1 AND assigned_to_user_id = $2 ORDER BY assignment_id LIMIT 1 FOR UPDATE`
	list, err := collectAssignments(q.db.Query(ctx, sql, ticketID, userID))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrAssignmentNotFound
	}
	return &list[0], nil
}

func (q *queries) SetResolution(ctx context.Context, ticketID, userID string, status models.ResolvedStatus) error {
	_, err := q.db.Exec(ctx, `UPDATE tickets_assignments SET resolved_status = $3
		WHERE ticket_id = $1 AND assigned_to_user_id = $2`, ticketID, userID, string(status))
	return err
}

func (q *queries) InsertNotifications(ctx context.Context, rows []models.TicketNotification) ([]models.TicketNotification, error) {
	const sql = `INSERT INTO tickets_notifications
		(notification_to_user_id, notification_type, ticket_id, ticket_description, assigned_to_user_id, assigned_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING notification_id, created_at`
	b := &pgx.Batch{}
	for _, n := range rows {
		b.Queue(sql, n.NotificationToUserID, string(n.NotificationType), n.TicketID, n.TicketDescription,
			n.AssignedToUserID, n.AssignedByUserID)
	}
	br := q.db.SendBatch(ctx, b)
	defer br.Close()
	out := make([]models.TicketNotification, len(rows))
	copy(out, rows)
	for i := range out {
		if err := br.QueryRow().Scan(&out[i].NotificationID, &out[i].CreatedAt); err != nil {
			return nil, err
		}
	}
	return out, br.Close()
}

func (q *queries) SetStatus(ctx context.Context, ticketID string, status models.TicketStatus) error {
	_, err := q.db.Exec(ctx, `UPDATE tickets SET status = $2 WHERE ticket_id = $1`, ticketID, string(status))
	return err
}

func (q *queries) ListNotifications(ctx context.Context, userID string) ([]models.TicketNotification, error) {
	const sql = `SELECT notification_id, notification_to_user_id, notification_type, ticket_id, ticket_description,
		assigned_to_user_id, assigned_by_user_id, created_at
		FROM tickets_notifications WHERE notification_to_user_id = $1 ORDER BY created_at DESC, notification_id DESC`
	rows, err := q.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.TicketNotification, 0)
	for rows.Next() {
		var n models.TicketNotification
		var typ string
		if err := rows.Scan(&n.NotificationID, &n.NotificationToUserID, &typ, &n.TicketID, &n.TicketDescription,
			&n.AssignedToUserID, &n.AssignedByUserID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.NotificationType = models.NotificationType(typ)
		list = append(list, n)
	}
	return list, rows.Err()
}

func (q *queries) DeleteTicket(ctx context.Context, ticketID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, ticketID)
	return err
}
