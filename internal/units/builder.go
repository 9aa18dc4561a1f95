// Package units builds the read-side project and unit views shown on the dashboard.
package units

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/organizations"
	"github.com/smartess/backend/pkg/apperr"
)

// Store is the hub persistence used by the views.
type Store interface {
	HubsByProjects(ctx context.Context, projIDs []string) ([]models.Hub, error)
	GetHubByUnit(ctx context.Context, projID, unitNumber string) (*models.Hub, error)
	GetHub(ctx context.Context, hubID string) (*models.Hub, error)
	HubUsersByHubs(ctx context.Context, hubIDs []string) ([]models.HubUser, error)
	TicketsByHubs(ctx context.Context, hubIDs []string) ([]models.Ticket, error)
	DeleteHubUser(ctx context.Context, hubID, userID string) (int64, error)
}

// Projects resolves memberships to projects.
type Projects interface {
	ListMemberships(ctx context.Context, userID string) ([]models.OrgUser, error)
	ProjectsByOrgIDs(ctx context.Context, orgIDs []string) ([]models.Project, error)
	GetProjectByAddress(ctx context.Context, address string) (*models.Project, error)
}

// Users loads user rows by ID.
type Users interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Alerts loads alerts by hub, newest first.
type Alerts interface {
	ListByHubs(ctx context.Context, hubIDs []string) ([]models.Alert, error)
}

// Options select what a project view carries.
type Options struct {
	TicketStats bool
	Alerts      bool
}

// ViewBuilder assembles project and unit views.
type ViewBuilder struct {
	store    Store
	projects Projects
	users    Users
	alerts   Alerts
	access   *organizations.Checker
	fanout   int
	logger   *zap.Logger
}

// NewViewBuilder creates a view builder. fanout bounds concurrent project branches.
func NewViewBuilder(store Store, projects Projects, users Users, alerts Alerts, access *organizations.Checker, fanout int, logger *zap.Logger) *ViewBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fanout < 1 {
		fanout = 1
	}
	return &ViewBuilder{store: store, projects: projects, users: users, alerts: alerts, access: access, fanout: fanout, logger: logger}
}

// projectsForUser returns every project of every organization the user belongs to.
func (b *ViewBuilder) projectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	memberships, err := b.projects.ListMemberships(ctx, userID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch organization data.", err)
	}
	seen := make(map[string]bool, len(memberships))
	var orgIDs []string
	for _, m := range memberships {
		if !seen[m.OrgID] {
			seen[m.OrgID] = true
			orgIDs = append(orgIDs, m.OrgID)
		}
	}
	if len(orgIDs) == 0 {
		return nil, nil
	}
	projects, err := b.projects.ProjectsByOrgIDs(ctx, orgIDs)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch projects.", err)
	}
	return projects, nil
}

// ProjectsForUser builds the view of every project visible to the user. Each project is built
// on its own branch; a failed branch is left out of Projects and listed in FailedProjects.
func (b *ViewBuilder) ProjectsForUser(ctx context.Context, userID string, opts Options) (*ProjectsResult, error) {
	projects, err := b.projectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*ProjectView, len(projects))
	errs := make([]error, len(projects))
	var g errgroup.Group
	g.SetLimit(b.fanout)
	for i := range projects {
		i := i
		g.Go(func() error {
			views[i], errs[i] = b.buildProject(ctx, &projects[i], opts)
			return nil
		})
	}
	_ = g.Wait()

	res := &ProjectsResult{Projects: make([]ProjectView, 0, len(projects)), FailedProjects: []FailedProject{}}
	for i, p := range projects {
		if errs[i] != nil {
			b.logger.Error("project view branch failed",
				zap.String("user_id", userID), zap.String("proj_id", p.ProjID), zap.Error(errs[i]))
			res.FailedProjects = append(res.FailedProjects, FailedProject{ProjectID: p.ProjID, Error: apperr.As(errs[i]).Message})
			continue
		}
		res.Projects = append(res.Projects, *views[i])
	}
	return res, nil
}

// unitData is everything loaded for a set of hubs.
type unitData struct {
	hubUsers map[string][]models.HubUser
	users    map[string]models.User
	tickets  map[string][]models.Ticket
	alerts   map[string][]models.Alert
}

// loadUnits fetches hub users, then users, tickets and alerts in parallel, one query per level.
func (b *ViewBuilder) loadUnits(ctx context.Context, hubIDs []string, opts Options) (*unitData, error) {
	d := &unitData{
		hubUsers: map[string][]models.HubUser{},
		users:    map[string]models.User{},
		tickets:  map[string][]models.Ticket{},
		alerts:   map[string][]models.Alert{},
	}
	if len(hubIDs) == 0 {
		return d, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := b.store.HubUsersByHubs(gctx, hubIDs)
		if err != nil {
			return apperr.DataAccess("Failed to fetch hub users.", err)
		}
		var userIDs []string
		for _, hu := range rows {
			d.hubUsers[hu.HubID] = append(d.hubUsers[hu.HubID], hu)
			userIDs = append(userIDs, hu.UserID)
		}
		if len(userIDs) == 0 {
			return nil
		}
		users, err := b.users.ListByIDs(gctx, userIDs)
		if err != nil {
			return apperr.DataAccess("Failed to fetch user data.", err)
		}
		for _, u := range users {
			d.users[u.UserID] = u
		}
		return nil
	})
	if opts.TicketStats {
		g.Go(func() error {
			list, err := b.store.TicketsByHubs(gctx, hubIDs)
			if err != nil {
				return apperr.DataAccess("Failed to fetch tickets.", err)
			}
			for _, t := range list {
				d.tickets[t.HubID] = append(d.tickets[t.HubID], t)
			}
			return nil
		})
	}
	if opts.Alerts {
		g.Go(func() error {
			list, err := b.alerts.ListByHubs(gctx, hubIDs)
			if err != nil {
				return apperr.DataAccess("Failed to fetch alerts.", err)
			}
			for _, a := range list {
				d.alerts[a.HubID] = append(d.alerts[a.HubID], a)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (b *ViewBuilder) buildProject(ctx context.Context, p *models.Project, opts Options) (*ProjectView, error) {
	hubs, err := b.store.HubsByProjects(ctx, []string{p.ProjID})
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch hubs.", err)
	}
	data, err := b.loadUnits(ctx, hubIDs(hubs), opts)
	if err != nil {
		return nil, err
	}

	v := &ProjectView{
		ProjectID:           p.ProjID,
		Address:             p.Address,
		AdminUsersCount:     p.AdminUsersCount,
		HubUsersCount:       p.HubUsersCount,
		PendingTicketsCount: p.PendingTicketsCount,
		ProjectUsers:        []models.UserRef{},
		Units:               make([]UnitView, 0, len(hubs)),
	}
	for i := range hubs {
		h := &hubs[i]
		owner, users := members(data.hubUsers[h.HubID], data.users, false)
		unit := UnitView{
			UnitNumber: h.UnitNumber,
			HubUsers:   users,
			Owner:      owner,
			Alerts:     alertViews(data.alerts[h.HubID], h),
		}
		if opts.TicketStats {
			unit.Tickets = countTickets(data.tickets[h.HubID])
		}
		v.Units = append(v.Units, unit)
	}
	return v, nil
}

// HubsForUser returns every hub in every project visible to the user.
func (b *ViewBuilder) HubsForUser(ctx context.Context, userID string) ([]models.Hub, error) {
	projects, err := b.projectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ProjID
	}
	hubs, err := b.store.HubsByProjects(ctx, ids)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch hubs.", err)
	}
	return hubs, nil
}

// IndividualUnit builds the detail view of unit unitNumber in the project at projAddress.
func (b *ViewBuilder) IndividualUnit(ctx context.Context, projAddress, unitNumber string) (*UnitDetail, error) {
	project, err := b.projects.GetProjectByAddress(ctx, projAddress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeNotFound, "Cannot find project")
	}
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch project.", err)
	}
	hub, err := b.store.GetHubByUnit(ctx, project.ProjID, unitNumber)
	if errors.Is(err, ErrHubNotFound) {
		return nil, apperr.NotFound(apperr.CodeNotFound, "Unit not found.")
	}
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch unit.", err)
	}

	data, err := b.loadUnits(ctx, []string{hub.HubID}, Options{TicketStats: true, Alerts: true})
	if err != nil {
		return nil, err
	}
	owner, users := members(data.hubUsers[hub.HubID], data.users, true)
	tickets := make([]UnitTicket, 0, len(data.tickets[hub.HubID]))
	for _, t := range data.tickets[hub.HubID] {
		tickets = append(tickets, UnitTicket{
			TicketID:    t.TicketID,
			UnitID:      t.HubID,
			Type:        t.Type,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt,
			Description: t.Description,
		})
	}
	return &UnitDetail{
		ProjectID:  hub.ProjID,
		UnitID:     hub.HubID,
		UnitNumber: hub.UnitNumber,
		HubUsers:   users,
		Ticket:     tickets,
		Owner:      owner,
		Alerts:     alertViews(data.alerts[hub.HubID], hub),
		Status:     hub.Status,
	}, nil
}

// RemoveUserFromHub deletes userID's membership of hubID. The caller must be an admin or
// master of the hub's project.
func (b *ViewBuilder) RemoveUserFromHub(ctx context.Context, caller *models.User, hubID, userID string) error {
	hub, err := b.store.GetHub(ctx, hubID)
	if errors.Is(err, ErrHubNotFound) {
		return apperr.NotFound(apperr.CodeNotFound, "Hub not found.")
	}
	if err != nil {
		return apperr.DataAccess("Failed to fetch hub.", err)
	}
	if _, err := b.access.Authorize(ctx, caller.UserID, hub.ProjID, organizations.MutatingRoles,
		"Only admins and masters can remove users from a hub"); err != nil {
		return err
	}
	n, err := b.store.DeleteHubUser(ctx, hubID, userID)
	if err != nil {
		return apperr.DataAccess("Failed to remove user from hub.", err)
	}
	if n == 0 {
		return apperr.NotFound(apperr.CodeNotFound, "User is not a member of this hub.")
	}
	b.logger.Info("user removed from hub",
		zap.String("hub_id", hubID), zap.String("user_id", userID), zap.String("by", caller.UserID))
	return nil
}

func hubIDs(hubs []models.Hub) []string {
	ids := make([]string, len(hubs))
	for i, h := range hubs {
		ids[i] = h.HubID
	}
	return ids
}
