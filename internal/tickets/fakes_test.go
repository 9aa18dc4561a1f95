package tickets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/organizations"
	"github.com/smartess/backend/internal/realtime"
)

// memStore is an in-memory Store. WithTx snapshots state and restores it when fn fails.
type memStore struct {
	mu            sync.Mutex
	tickets       map[string]*models.Ticket
	hubs          map[string]string
	projects      map[string]string
	assignments   []models.TicketAssignment
	notifications []models.TicketNotification
	nextID        int64
	fail          map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  make(map[string]*models.Ticket),
		hubs:     make(map[string]string),
		projects: make(map[string]string),
		fail:     make(map[string]error),
	}
}

func (s *memStore) addTicket(id, projID, hubID string, status models.TicketStatus) {
	s.tickets[id] = &models.Ticket{
		TicketID:    id,
		ProjID:      projID,
		HubID:       hubID,
		Description: "Leaky faucet",
		Type:        "repair",
		Status:      status,
		CreatedAt:   time.Date(2024, 11, 3, 22, 15, 0, 0, time.UTC),
	}
}

func (s *memStore) assign(ticketID, userID, by string) {
	s.assignments = append(s.assignments, models.TicketAssignment{
		TicketID: ticketID, AssignedToUserID: userID, AssignedByUserID: by, ResolvedStatus: models.Unresolved,
	})
}

func (s *memStore) status(id string) models.TicketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id].Status
}

func (s *memStore) assignees(ticketID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, a := range s.assignments {
		if a.TicketID == ticketID {
			ids = append(ids, a.AssignedToUserID)
		}
	}
	return ids
}

func (s *memStore) check(op string) error { return s.fail[op] }

func (s *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("Begin"); err != nil {
		return err
	}

	tickets := make(map[string]*models.Ticket, len(s.tickets))
	for k, v := range s.tickets {
		cp := *v
		tickets[k] = &cp
	}
	assignments := append([]models.TicketAssignment(nil), s.assignments...)
	notifications := append([]models.TicketNotification(nil), s.notifications...)
	nextID := s.nextID

	if err := fn(memTx{s}); err != nil {
		s.tickets, s.assignments, s.notifications, s.nextID = tickets, assignments, notifications, nextID
		return err
	}
	return s.check("Commit")
}

func (s *memStore) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.LockTicket(context.Background(), id)
}

func (s *memStore) ListTicketsByProjects(_ context.Context, projIDs []string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListTicketsByProjects"); err != nil {
		return nil, err
	}
	want := toSet(projIDs)
	var out []models.Ticket
	for _, t := range s.tickets {
		if want[t.ProjID] {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) ListTicketsByIDs(_ context.Context, ids []string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) HubUnits(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("HubUnits"); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if u, ok := s.hubs[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *memStore) ProjectAddress(_ context.Context, projID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.projects[projID]
	if !ok {
		return "", errors.New("no rows")
	}
	return addr, nil
}

func (s *memStore) ListAssignments(_ context.Context, ticketID string) ([]models.TicketAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TicketAssignment
	for _, a := range s.assignments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListAssignmentsForUser(_ context.Context, userID string) ([]models.TicketAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TicketAssignment
	for _, a := range s.assignments {
		if a.AssignedToUserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListNotifications(_ context.Context, userID string) ([]models.TicketNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TicketNotification
	for _, n := range s.notifications {
		if n.NotificationToUserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("DeleteTicket"); err != nil {
		return err
	}
	delete(s.tickets, id)
	return nil
}

// memTx operates on memStore state; the caller holds the lock.
type memTx struct{ s *memStore }

func (t memTx) LockTicket(_ context.Context, id string) (*models.Ticket, error) {
	if err := t.s.check("LockTicket"); err != nil {
		return nil, err
	}
	tk, ok := t.s.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *tk
	return &cp, nil
}

func (t memTx) CountAssignments(_ context.Context, ticketID string) (int, error) {
	if err := t.s.check("CountAssignments"); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range t.s.assignments {
		if a.TicketID == ticketID {
			n++
		}
	}
	return n, nil
}

func (t memTx) InsertAssignments(_ context.Context, rows []models.TicketAssignment) error {
	if err := t.s.check("InsertAssignments"); err != nil {
		return err
	}
	t.s.assignments = append(t.s.assignments, rows...)
	return nil
}

func (t memTx) DeleteAssignments(_ context.Context, ticketID, userID string) (int64, error) {
	if err := t.s.check("DeleteAssignments"); err != nil {
		return 0, err
	}
	kept := t.s.assignments[:0]
	var n int64
	for _, a := range t.s.assignments {
		if a.TicketID == ticketID && a.AssignedToUserID == userID {
			n++
			continue
		}
		kept = append(kept, a)
	}
	t.s.assignments = kept
	return n, nil
}

func (t memTx) LockAssignment(_ context.Context, ticketID, userID string) (*models.TicketAssignment, error) {
	for _, a := range t.s.assignments {
		if a.TicketID == ticketID && a.AssignedToUserID == userID {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrAssignmentNotFound
}

func (t memTx) SetResolution(_ context.Context, ticketID, userID string, status models.ResolvedStatus) error {
	for i := range t.s.assignments {
		a := &t.s.assignments[i]
		if a.TicketID == ticketID && a.AssignedToUserID == userID {
			a.ResolvedStatus = status
		}
	}
	return nil
}

func (t memTx) InsertNotifications(_ context.Context, rows []models.TicketNotification) ([]models.TicketNotification, error) {
	if err := t.s.check("InsertNotifications"); err != nil {
		return nil, err
	}
	out := make([]models.TicketNotification, len(rows))
	for i, n := range rows {
		t.s.nextID++
		n.NotificationID = t.s.nextID
		n.CreatedAt = time.Now()
		out[i] = n
	}
	t.s.notifications = append(t.s.notifications, out...)
	return out, nil
}

func (t memTx) SetStatus(_ context.Context, ticketID string, status models.TicketStatus) error {
	if err := t.s.check("SetStatus"); err != nil {
		return err
	}
	t.s.tickets[ticketID].Status = status
	return nil
}

// memMembers serves both the access checker and the service's membership listings.
type memMembers struct {
	rows []models.OrgUser
	err  error
}

func (m *memMembers) add(userID, projID string, role models.OrgUserType) {
	p := projID
	m.rows = append(m.rows, models.OrgUser{UserID: userID, OrgID: "org-1", ProjID: &p, OrgUserType: role})
}

func (m *memMembers) GetMembership(_ context.Context, userID, projID string) (*models.OrgUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.rows {
		if r.UserID == userID && r.ProjID != nil && *r.ProjID == projID {
			cp := r
			return &cp, nil
		}
	}
	return nil, organizations.ErrNoMembership
}

func (m *memMembers) ListMemberships(_ context.Context, userID string) ([]models.OrgUser, error) {
	var out []models.OrgUser
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memMembers) ListProjectMembers(_ context.Context, projID string, types []models.OrgUserType) ([]models.OrgUser, error) {
	allowed := make(map[models.OrgUserType]bool)
	for _, t := range types {
		allowed[t] = true
	}
	var out []models.OrgUser
	for _, r := range m.rows {
		if r.ProjID != nil && *r.ProjID == projID && allowed[r.OrgUserType] {
			out = append(out, r)
		}
	}
	return out, nil
}

type memUsers map[string]models.User

func (m memUsers) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range toSetOrdered(ids) {
		if u, ok := m[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type published struct {
	room string
	ev   realtime.Event
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, room string, ev realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, published{room: room, ev: ev})
	return b.err
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func toSetOrdered(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
