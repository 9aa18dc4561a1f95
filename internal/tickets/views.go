package tickets

import (
	"time"

	"github.com/smartess/backend/internal/models"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// TicketItem is one row of the dashboard ticket list.
type TicketItem struct {
	TicketID    string              `json:"ticket_id"`
	ProjID      string              `json:"proj_id"`
	UnitID      string              `json:"unit_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Type        string              `json:"type"`
	Unit        *string             `json:"unit"`
	Status      models.TicketStatus `json:"status"`
	CreatedAt   string              `json:"created_at"`
}

// TicketDetail is a single ticket with submitter and project context.
type TicketDetail struct {
	TicketItem
	SubmittedByFirstName string `json:"submitted_by_firstName"`
	SubmittedByLastName  string `json:"submitted_by_lastName"`
	SubmittedByEmail     string `json:"submitted_by_email"`
	ProjectAddress       string `json:"project_address"`
}

// Employee is a project member who can take a ticket.
type Employee struct {
	EmployeeID string             `json:"employeeId"`
	FirstName  string             `json:"firstName"`
	LastName   string             `json:"lastName"`
	Email      string             `json:"email"`
	Role       models.OrgUserType `json:"role"`
}

// AssignedUser is an assignee with their own resolution flag.
type AssignedUser struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Resolved  bool   `json:"resolved"`
}

// AssignedTicket is a ticket seen from one assignee.
type AssignedTicket struct {
	TicketID         string              `json:"ticketId"`
	ProjectID        string              `json:"projectId"`
	UnitID           string              `json:"unitId"`
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	Type             string              `json:"type"`
	Unit             *string             `json:"unit"`
	Status           models.TicketStatus `json:"status"`
	Date             string              `json:"date"`
	IsResolved       bool                `json:"isResolved"`
	AssignedByUserID string              `json:"assignedByUserId"`
	AssignedToUserID string              `json:"assignedToUserId"`
}

func newTicketItem(t *models.Ticket, units map[string]string) TicketItem {
	item := TicketItem{
		TicketID:    t.TicketID,
		ProjID:      t.ProjID,
		UnitID:      t.HubID,
		Name:        t.Description,
		Description: t.DescriptionDetailed,
		Type:        t.Type,
		Status:      t.Status,
		CreatedAt:   formatDate(t.CreatedAt),
	}
	if unit, ok := units[t.HubID]; ok {
		item.Unit = &unit
	}
	return item
}

func hubIDs(list []models.Ticket) []string {
	seen := make(map[string]bool, len(list))
	ids := make([]string, 0, len(list))
	for _, t := range list {
		if !seen[t.HubID] {
			seen[t.HubID] = true
			ids = append(ids, t.HubID)
		}
	}
	return ids
}
