package tickets

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/organizations"
	"github.com/smartess/backend/pkg/apperr"
)

// ListTickets returns the tickets of every project the caller is a member of.
func (s *Service) ListTickets(ctx context.Context, caller *models.User) ([]TicketItem, error) {
	members, err := s.members.ListMemberships(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch projects data.", err)
	}
	var projIDs []string
	for _, m := range members {
		if m.ProjID != nil {
			projIDs = append(projIDs, *m.ProjID)
		}
	}

	list, err := s.store.ListTicketsByProjects(ctx, projIDs)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch tickets data.", err)
	}
	units, err := s.store.HubUnits(ctx, hubIDs(list))
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch hub data.", err)
	}

	items := make([]TicketItem, 0, len(list))
	for i := range list {
		items = append(items, newTicketItem(&list[i], units))
	}
	return items, nil
}

// GetTicket returns one ticket to any member of its project.
func (s *Service) GetTicket(ctx context.Context, caller *models.User, ticketID string) (*TicketDetail, error) {
	if ticketID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "Ticket ID is required")
	}
	t, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.CheckProjectAccess(ctx, caller.UserID, t.ProjID); err != nil {
		return nil, err
	}

	units, err := s.store.HubUnits(ctx, []string{t.HubID})
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch unit information", err)
	}
	if _, ok := units[t.HubID]; !ok {
		return nil, apperr.DataAccess("Failed to fetch unit information", errors.New("hub "+t.HubID+" missing"))
	}

	detail := &TicketDetail{TicketItem: newTicketItem(t, units)}
	if t.SubmittedByUserID != nil {
		submitters, err := s.users.ListByIDs(ctx, []string{*t.SubmittedByUserID})
		if err != nil {
			s.logger.Warn("submitter lookup failed", zap.String("ticket_id", ticketID), zap.Error(err))
		} else if len(submitters) > 0 {
			detail.SubmittedByFirstName = submitters[0].FirstName
			detail.SubmittedByLastName = submitters[0].LastName
			detail.SubmittedByEmail = submitters[0].Email
		}
	}
	if addr, err := s.store.ProjectAddress(ctx, t.ProjID); err != nil {
		s.logger.Warn("project address lookup failed", zap.String("proj_id", t.ProjID), zap.Error(err))
	} else {
		detail.ProjectAddress = addr
	}
	return detail, nil
}

// AssignableEmployees lists project members who are not yet assigned to the ticket.
func (s *Service) AssignableEmployees(ctx context.Context, caller *models.User, ticketID string) ([]Employee, error) {
	t, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Authorize(ctx, caller.UserID, t.ProjID, organizations.MutatingRoles,
		"User does not have permission to assign tickets"); err != nil {
		return nil, err
	}

	assignments, err := s.store.ListAssignments(ctx, ticketID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch ticket assignments", err)
	}
	assigned := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.AssignedToUserID] = true
	}

	members, err := s.members.ListProjectMembers(ctx, t.ProjID, assignableRoles)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch employees", err)
	}
	roles := make(map[string]models.OrgUserType)
	var ids []string
	for _, m := range members {
		if assigned[m.UserID] {
			continue
		}
		if _, dup := roles[m.UserID]; !dup {
			ids = append(ids, m.UserID)
			roles[m.UserID] = m.OrgUserType
		}
	}

	employees := make([]Employee, 0, len(ids))
	if len(ids) == 0 {
		return employees, nil
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch employee details", err)
	}
	byID := indexUsers(users)
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		employees = append(employees, Employee{
			EmployeeID: u.UserID,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			Email:      u.Email,
			Role:       roles[id],
		})
	}
	return employees, nil
}

// AssignedUsers lists a ticket's assignees. Only token validity is checked by the caller.
func (s *Service) AssignedUsers(ctx context.Context, ticketID string) ([]AssignedUser, error) {
	assignments, err := s.store.ListAssignments(ctx, ticketID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch assignments", err)
	}
	out := make([]AssignedUser, 0, len(assignments))
	if len(assignments) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.AssignedToUserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch user details", err)
	}
	byID := indexUsers(users)
	for _, a := range assignments {
		u, ok := byID[a.AssignedToUserID]
		if !ok {
			s.logger.Warn("assignee has no user row", zap.String("ticket_id", ticketID), zap.String("user_id", a.AssignedToUserID))
			continue
		}
		out = append(out, AssignedUser{
			UserID:    u.UserID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Resolved:  a.ResolvedStatus == models.Resolved,
		})
	}
	return out, nil
}

// AssignedTicketsForUser lists tickets the caller is assigned to, with their own resolution flag.
func (s *Service) AssignedTicketsForUser(ctx context.Context, caller *models.User) ([]AssignedTicket, error) {
	assignments, err := s.store.ListAssignmentsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch ticket assignments.", err)
	}
	out := make([]AssignedTicket, 0, len(assignments))
	if len(assignments) == 0 {
		return out, nil
	}
	byTicket := make(map[string]models.TicketAssignment, len(assignments))
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if _, dup := byTicket[a.TicketID]; !dup {
			ids = append(ids, a.TicketID)
		}
		byTicket[a.TicketID] = a
	}

	list, err := s.store.ListTicketsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch tickets data.", err)
	}
	units, err := s.store.HubUnits(ctx, hubIDs(list))
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch hub data.", err)
	}
	for i := range list {
		t := &list[i]
		a := byTicket[t.TicketID]
		item := AssignedTicket{
			TicketID:         t.TicketID,
			ProjectID:        t.ProjID,
			UnitID:           t.HubID,
			Name:             t.Description,
			Description:      t.DescriptionDetailed,
			Type:             t.Type,
			Status:           t.Status,
			Date:             formatDate(t.CreatedAt),
			IsResolved:       a.ResolvedStatus == models.Resolved,
			AssignedByUserID: a.AssignedByUserID,
			AssignedToUserID: a.AssignedToUserID,
		}
		if unit, ok := units[t.HubID]; ok {
			item.Unit = &unit
		}
		out = append(out, item)
	}
	return out, nil
}

// Notifications returns the caller's ticket notifications, newest first.
func (s *Service) Notifications(ctx context.Context, caller *models.User) ([]models.TicketNotification, error) {
	list, err := s.store.ListNotifications(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch notifications.", err)
	}
	if list == nil {
		list = []models.TicketNotification{}
	}
	return list, nil
}

func indexUsers(users []models.User) map[string]*models.User {
	m := make(map[string]*models.User, len(users))
	for i := range users {
		m[users[i].UserID] = &users[i]
	}
	return m
}
