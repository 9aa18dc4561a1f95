package units

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/organizations"
)

var errBoom = errors.New("boom")

// memStore is an in-memory Store. failHubUsers makes HubUsersByHubs fail for any hub in the set.
type memStore struct {
	mu           sync.Mutex
	hubs         []models.Hub
	hubUsers     []models.HubUser
	tickets      []models.Ticket
	failHubUsers map[string]bool
	failHubs     bool
	calls        map[string]int
}

func newMemStore() *memStore {
	return &memStore{failHubUsers: map[string]bool{}, calls: map[string]int{}}
}

func (s *memStore) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *memStore) HubsByProjects(_ context.Context, projIDs []string) ([]models.Hub, error) {
	s.count("HubsByProjects")
	if s.failHubs {
		return nil, errBoom
	}
	want := toSet(projIDs)
	var out []models.Hub
	for _, h := range s.hubs {
		if want[h.ProjID] {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitNumber < out[j].UnitNumber })
	return out, nil
}

func (s *memStore) GetHubByUnit(_ context.Context, projID, unit string) (*models.Hub, error) {
	for _, h := range s.hubs {
		if h.ProjID == projID && h.UnitNumber == unit {
			h := h
			return &h, nil
		}
	}
	return nil, ErrHubNotFound
}

func (s *memStore) GetHub(_ context.Context, hubID string) (*models.Hub, error) {
	for _, h := range s.hubs {
		if h.HubID == hubID {
			h := h
			return &h, nil
		}
	}
	return nil, ErrHubNotFound
}

func (s *memStore) HubUsersByHubs(_ context.Context, hubIDs []string) ([]models.HubUser, error) {
	s.count("HubUsersByHubs")
	want := toSet(hubIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HubUser
	for id := range want {
		if s.failHubUsers[id] {
			return nil, errBoom
		}
	}
	for _, hu := range s.hubUsers {
		if want[hu.HubID] {
			out = append(out, hu)
		}
	}
	return out, nil
}

func (s *memStore) TicketsByHubs(_ context.Context, hubIDs []string) ([]models.Ticket, error) {
	s.count("TicketsByHubs")
	want := toSet(hubIDs)
	var out []models.Ticket
	for _, t := range s.tickets {
		if want[t.HubID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) DeleteHubUser(_ context.Context, hubID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.hubUsers[:0]
	for _, hu := range s.hubUsers {
		if hu.HubID == hubID && hu.UserID == userID {
			n++
			continue
		}
		kept = append(kept, hu)
	}
	s.hubUsers = kept
	return n, nil
}

// memProjects implements Projects and organizations.MembershipStore.
type memProjects struct {
	members  []models.OrgUser
	projects []models.Project
	failList bool
}

func (m *memProjects) add(userID, orgID, projID string, role models.OrgUserType) {
	p := projID
	m.members = append(m.members, models.OrgUser{UserID: userID, OrgID: orgID, ProjID: &p, OrgUserType: role})
}

func (m *memProjects) ListMemberships(_ context.Context, userID string) ([]models.OrgUser, error) {
	if m.failList {
		return nil, errBoom
	}
	var out []models.OrgUser
	for _, u := range m.members {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memProjects) GetMembership(_ context.Context, userID, projID string) (*models.OrgUser, error) {
	for _, u := range m.members {
		if u.UserID == userID && u.ProjID != nil && *u.ProjID == projID {
			u := u
			return &u, nil
		}
	}
	return nil, organizations.ErrNoMembership
}

func (m *memProjects) ProjectsByOrgIDs(_ context.Context, orgIDs []string) ([]models.Project, error) {
	want := toSet(orgIDs)
	var out []models.Project
	for _, p := range m.projects {
		if want[p.OrgID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjects) GetProjectByAddress(_ context.Context, address string) (*models.Project, error) {
	for _, p := range m.projects {
		if p.Address == address {
			p := p
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memUsers map[string]models.User

func (m memUsers) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for id := range toSet(ids) {
		if u, ok := m[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type memAlerts []models.Alert

func (m memAlerts) ListByHubs(_ context.Context, hubIDs []string) ([]models.Alert, error) {
	want := toSet(hubIDs)
	var out []models.Alert
	for _, a := range m {
		if want[a.HubID] {
			out = append(out, a)
		}
	}
	return out, nil
}

type memImages struct {
	urls []string
	err  error
}

func (m memImages) ListProjectImages(context.Context) ([]string, error) { return m.urls, m.err }

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
