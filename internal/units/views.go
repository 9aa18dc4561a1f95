package units

import (
	"time"

	"github.com/smartess/backend/internal/models"
)

// TicketStats counts a unit's tickets by status.
type TicketStats struct {
	Total   int `json:"total"`
	Open    int `json:"open"`
	Pending int `json:"pending"`
	Closed  int `json:"closed"`
}

func countTickets(list []models.Ticket) TicketStats {
	s := TicketStats{Total: len(list)}
	for _, t := range list {
		switch t.Status {
		case models.TicketOpen:
			s.Open++
		case models.TicketPending:
			s.Pending++
		case models.TicketClosed:
			s.Closed++
		}
	}
	return s
}

// UnitView is one hub inside a project view.
type UnitView struct {
	UnitNumber string             `json:"unitNumber"`
	HubUsers   []models.UserRef   `json:"hubUsers"`
	Tickets    TicketStats        `json:"tickets"`
	Owner      models.UserRef     `json:"owner"`
	Alerts     []models.AlertView `json:"alerts"`
}

// ProjectView is a project with its units.
type ProjectView struct {
	ProjectID           string           `json:"projectId"`
	Address             string           `json:"address"`
	AdminUsersCount     int              `json:"adminUsersCount"`
	HubUsersCount       int              `json:"hubUsersCount"`
	PendingTicketsCount int              `json:"pendingTicketsCount"`
	ProjectUsers        []models.UserRef `json:"projectUsers"`
	Units               []UnitView       `json:"units"`
}

// FailedProject names a project whose branch could not be built.
type FailedProject struct {
	ProjectID string `json:"projectId"`
	Error     string `json:"error"`
}

// ProjectsResult is the output of ProjectsForUser.
type ProjectsResult struct {
	Projects       []ProjectView   `json:"projects"`
	FailedProjects []FailedProject `json:"failedProjects"`
}

// UnitTicket is a ticket row in the individual unit view.
type UnitTicket struct {
	TicketID    string              `json:"ticket_id"`
	UnitID      string              `json:"unit_id"`
	Type        string              `json:"type"`
	Status      models.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Description string              `json:"description"`
}

// UnitDetail is the individual unit view.
type UnitDetail struct {
	ProjectID  string             `json:"projectId"`
	UnitID     string             `json:"unit_id"`
	UnitNumber string             `json:"unitNumber"`
	HubUsers   []models.UserRef   `json:"hubUsers"`
	Ticket     []UnitTicket       `json:"ticket"`
	Owner      models.UserRef     `json:"owner"`
	Alerts     []models.AlertView `json:"alerts"`
	Status     string             `json:"status"`
}

// pickOwner returns the owner row with the lowest user_id, if any.
func pickOwner(rows []models.HubUser) (string, bool) {
	owner, found := "", false
	for _, hu := range rows {
		if hu.HubUserType != models.HubUserOwner {
			continue
		}
		if !found || hu.UserID < owner {
			owner, found = hu.UserID, true
		}
	}
	return owner, found
}

// members splits a hub's rows into its owner's ref and the other users' refs. Users without
// a row in byID are skipped.
func members(rows []models.HubUser, byID map[string]models.User, withPhone bool) (models.UserRef, []models.UserRef) {
	ref := func(u models.User) models.UserRef {
		r := u.Ref()
		if !withPhone {
			r.Telephone = ""
		}
		return r
	}
	var owner models.UserRef
	ownerID, hasOwner := pickOwner(rows)
	if hasOwner {
		if u, ok := byID[ownerID]; ok {
			owner = ref(u)
		}
	}
	users := make([]models.UserRef, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, hu := range rows {
		if (hasOwner && hu.UserID == ownerID) || seen[hu.UserID] {
			continue
		}
		seen[hu.UserID] = true
		if u, ok := byID[hu.UserID]; ok {
			users = append(users, ref(u))
		}
	}
	return owner, users
}

func alertViews(list []models.Alert, hub *models.Hub) []models.AlertView {
	out := make([]models.AlertView, 0, len(list))
	for i := range list {
		out = append(out, list[i].View(hub))
	}
	return out
}
