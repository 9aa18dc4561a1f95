package tickets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/organizations"
	"github.com/smartess/backend/internal/realtime"
	"github.com/smartess/backend/pkg/apperr"
)

// Members lists memberships for ticket scoping.
type Members interface {
	ListMemberships(ctx context.Context, userID string) ([]models.OrgUser, error)
	ListProjectMembers(ctx context.Context, projID string, types []models.OrgUserType) ([]models.OrgUser, error)
}

// Users loads user identities.
type Users interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Broadcaster delivers realtime events to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, ev realtime.Event) error
}

// assignableRoles are the membership types offered as ticket assignees.
var assignableRoles = []models.OrgUserType{models.OrgUserBasic, models.OrgUserAdmin, models.OrgUserMaster}

// Service implements the ticket workflow. Each mutation runs in one transaction that
// holds the ticket row lock; realtime delivery happens after commit.
type Service struct {
	store   Store
	members Members
	users   Users
	access  *organizations.Checker
	events  Broadcaster
	logger  *zap.Logger
}

// NewService creates a ticket service. events may be nil.
func NewService(store Store, members Members, users Users, access *organizations.Checker, events Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, members: members, users: users, access: access, events: events, logger: logger}
}

func ticketNotFound() error {
	return apperr.NotFound(apperr.CodeNotFound, "Ticket not found")
}

// inTx runs fn in a transaction. Errors that are not already application errors
// (begin or commit failures) become a data-access error with msg.
func (s *Service) inTx(ctx context.Context, msg string, fn func(tx Tx) error) error {
	err := s.store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.DataAccess(msg, err)
}

func lockOpenTicket(ctx context.Context, tx Tx, ticketID, closedMsg string) (*models.Ticket, error) {
	t, err := tx.LockTicket(ctx, ticketID)
	if errors.Is(err, ErrTicketNotFound) {
		return nil, ticketNotFound()
	}
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch ticket data", err)
	}
	if closedMsg != "" && t.Status == models.TicketClosed {
		return nil, apperr.Validation(apperr.CodeTicketClosed, closedMsg)
	}
	return t, nil
}

func (s *Service) getTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if errors.Is(err, ErrTicketNotFound) {
		return nil, ticketNotFound()
	}
	if err != nil {
		return nil, apperr.DataAccess("Failed to fetch ticket data", err)
	}
	return t, nil
}

// AssignUsers adds userIDs as assignees of a ticket and moves it to pending.
// user_ids are counted as given: an already-assigned user takes another slot.
func (s *Service) AssignUsers(ctx context.Context, caller *models.User, ticketID string, userIDs []string) error {
	if ticketID == "" || len(userIDs) == 0 {
		return apperr.Validation(apperr.CodeInvalidRequest, "Invalid request data")
	}
	for _, id := range userIDs {
		if id == "" {
			return apperr.Validation(apperr.CodeInvalidRequest, "Invalid request data")
		}
	}

	var created []models.TicketNotification
	err := s.inTx(ctx, "Failed to assign users", func(tx Tx) error {
		t, err := lockOpenTicket(ctx, tx, ticketID, "Cannot assign users to a closed ticket")
		if err != nil {
			return err
		}
		if _, err := s.access.Authorize(ctx, caller.UserID, t.ProjID, organizations.MutatingRoles,
			"User does not have permission to assign tickets"); err != nil {
			return err
		}

		current, err := tx.CountAssignments(ctx, ticketID)
		if err != nil {
			return apperr.DataAccess("Failed to check current assignments", err)
		}
		if current+len(userIDs) > models.MaxAssignees {
			return apperr.Validation(apperr.CodeCapacityExceeded,
				fmt.Sprintf("Maximum %d users can be assigned to a ticket", models.MaxAssignees))
		}

		rows := make([]models.TicketAssignment, len(userIDs))
		notes := make([]models.TicketNotification, len(userIDs))
		for i, uid := range userIDs {
			rows[i] = models.TicketAssignment{
				TicketID:         ticketID,
				AssignedToUserID: uid,
				AssignedByUserID: caller.UserID,
				ResolvedStatus:   models.Unresolved,
			}
			notes[i] = models.TicketNotification{
				NotificationToUserID: uid,
				NotificationType:     models.NotifyAssignment,
				TicketID:             ticketID,
				TicketDescription:    t.Description,
				AssignedToUserID:     uid,
				AssignedByUserID:     caller.UserID,
			}
		}
		if err := tx.InsertAssignments(ctx, rows); err != nil {
			return apperr.DataAccess("Failed to assign users", err)
		}
		if created, err = tx.InsertNotifications(ctx, notes); err != nil {
			return apperr.DataAccess("Failed to create notifications", err)
		}
		if err := tx.SetStatus(ctx, ticketID, models.TicketPending); err != nil {
			return apperr.DataAccess("Failed to update ticket status", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("users assigned to ticket",
		zap.String("ticket_id", ticketID), zap.Strings("user_ids", userIDs), zap.String("by", caller.UserID))
	s.publish(ctx, created)
	return nil
}

// UnassignUser removes every assignment of userID on the ticket and reopens it when none remain.
func (s *Service) UnassignUser(ctx context.Context, caller *models.User, ticketID, userID string) error {
	if ticketID == "" || userID == "" {
		return apperr.Validation(apperr.CodeInvalidRequest, "Invalid request data")
	}

	var created []models.TicketNotification
	err := s.inTx(ctx, "Failed to unassign user", func(tx Tx) error {
		t, err := lockOpenTicket(ctx, tx, ticketID, "Cannot unassign users from a closed ticket")
		if err != nil {
			return err
		}
		if _, err := s.access.Authorize(ctx, caller.UserID, t.ProjID, organizations.MutatingRoles,
			"User does not have permission to unassign users"); err != nil {
			return err
		}

		removed, err := tx.DeleteAssignments(ctx, ticketID, userID)
		if err != nil {
			return apperr.DataAccess("Failed to unassign user", err)
		}
		if removed == 0 {
			s.logger.Info("unassign matched no assignment", zap.String("ticket_id", ticketID), zap.String("user_id", userID))
		}
		created, err = tx.InsertNotifications(ctx, []models.TicketNotification{{
			NotificationToUserID: userID,
			NotificationType:     models.NotifyUnassignment,
			TicketID:             ticketID,
			TicketDescription:    t.Description,
			AssignedToUserID:     userID,
			AssignedByUserID:     caller.UserID,
		}})
		if err != nil {
			return apperr.DataAccess("Failed to create unassignment notification", err)
		}

		remaining, err := tx.CountAssignments(ctx, ticketID)
		if err != nil {
			return apperr.DataAccess("Failed to check current assignments", err)
		}
		if remaining == 0 {
			if err := tx.SetStatus(ctx, ticketID, models.TicketOpen); err != nil {
				return apperr.DataAccess("Failed to update ticket status", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("user unassigned from ticket",
		zap.String("ticket_id", ticketID), zap.String("user_id", userID), zap.String("by", caller.UserID))
	s.publish(ctx, created)
	return nil
}

// CloseTicket marks a ticket closed. Closing an already closed ticket succeeds.
func (s *Service) CloseTicket(ctx context.Context, caller *models.User, ticketID string) error {
	if ticketID == "" {
		return apperr.Validation(apperr.CodeInvalidRequest, "Ticket ID is required")
	}
	return s.inTx(ctx, "Failed to close ticket", func(tx Tx) error {
		t, err := lockOpenTicket(ctx, tx, ticketID, "")
		if err != nil {
			return err
		}
		if _, err := s.access.Authorize(ctx, caller.UserID, t.ProjID, organizations.MutatingRoles,
			"User does not have permission to close tickets"); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, ticketID, models.TicketClosed); err != nil {
			return apperr.DataAccess("Failed to close ticket", err)
		}
		return nil
	})
}

// DeleteTicket removes a ticket; assignments and notifications go with it.
func (s *Service) DeleteTicket(ctx context.Context, caller *models.User, ticketID string) error {
	if ticketID == "" {
		return apperr.Validation(apperr.CodeInvalidRequest, "Ticket ID is required")
	}
	t, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if _, err := s.access.Authorize(ctx, caller.UserID, t.ProjID, organizations.MutatingRoles,
		"User does not have permission to delete tickets"); err != nil {
		return err
	}
	if err := s.store.DeleteTicket(ctx, ticketID); err != nil {
		return apperr.DataAccess("Failed to delete ticket", err)
	}
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("by", caller.UserID))
	return nil
}

// UpdateResolution sets the caller's own resolution flag on a ticket and notifies whoever assigned them.
func (s *Service) UpdateResolution(ctx context.Context, caller *models.User, ticketID string, status models.ResolvedStatus) error {
	if ticketID == "" || (status != models.Resolved && status != models.Unresolved) {
		return apperr.Validation(apperr.CodeInvalidRequest, "Invalid request data")
	}

	var created []models.TicketNotification
	err := s.inTx(ctx, fmt.Sprintf("Failed to mark ticket as %s.", status), func(tx Tx) error {
		t, err := lockOpenTicket(ctx, tx, ticketID, "")
		if err != nil {
			return err
		}
		a, err := tx.LockAssignment(ctx, ticketID, caller.UserID)
		if errors.Is(err, ErrAssignmentNotFound) {
			return apperr.NotFound(apperr.CodeNotFound, "Ticket assignment not found.")
		}
		if err != nil {
			return apperr.DataAccess("Failed to fetch ticket assignment.", err)
		}
		if a.ResolvedStatus == status {
			return apperr.Validation(apperr.CodeAlreadyInStatus, fmt.Sprintf("Ticket is already marked as %s.", status))
		}
		if err := tx.SetResolution(ctx, ticketID, caller.UserID, status); err != nil {
			return apperr.DataAccess(fmt.Sprintf("Failed to mark ticket as %s.", status), err)
		}

		typ := models.NotifyUnresolved
		if status == models.Resolved {
			typ = models.NotifyResolved
		}
		created, err = tx.InsertNotifications(ctx, []models.TicketNotification{{
			NotificationToUserID: a.AssignedByUserID,
			NotificationType:     typ,
			TicketID:             ticketID,
			TicketDescription:    t.Description,
			AssignedToUserID:     caller.UserID,
			AssignedByUserID:     a.AssignedByUserID,
		}})
		if err != nil {
			return apperr.DataAccess("Failed to create notification.", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, created)
	return nil
}

// publish pushes committed notifications to each recipient's room. Failures are logged only.
func (s *Service) publish(ctx context.Context, notes []models.TicketNotification) {
	if s.events == nil {
		return
	}
	for _, n := range notes {
		ev := realtime.Event{Type: realtime.EventTicketNotification, Payload: n}
		if err := s.events.Broadcast(ctx, realtime.UserRoom(n.NotificationToUserID), ev); err != nil {
			s.logger.Warn("ticket notification publish failed",
				zap.String("ticket_id", n.TicketID), zap.String("to", n.NotificationToUserID), zap.Error(err))
		}
	}
}
