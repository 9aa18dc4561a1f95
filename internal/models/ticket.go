package models

import "time"

// TicketStatus is the ticket-level state.
type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketPending TicketStatus = "pending"
	TicketClosed  TicketStatus = "closed"
)

// ResolvedStatus is an assignee's own view of the ticket.
type ResolvedStatus string

const (
	Unresolved ResolvedStatus = "unresolved"
	Resolved   ResolvedStatus = "resolved"
)

// MaxAssignees bounds the assignment set of a ticket.
const MaxAssignees = 3

// Ticket is a maintenance or support ticket raised against a hub.
type Ticket struct {
	TicketID            string       `json:"ticket_id"`
	ProjID              string       `json:"proj_id"`
	HubID               string       `json:"hub_id"`
	Description         string       `json:"description"`
	DescriptionDetailed string       `json:"description_detailed"`
	Type                string       `json:"type"`
	Status              TicketStatus `json:"status"`
	SubmittedByUserID   *string      `json:"submitted_by_user_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// TicketAssignment links a ticket to an assignee.
type TicketAssignment struct {
	TicketID         string         `json:"ticket_id"`
	AssignedToUserID string         `json:"assigned_to_user_id"`
	AssignedByUserID string         `json:"assigned_by_user_id"`
	ResolvedStatus   ResolvedStatus `json:"resolved_status"`
}

// NotificationType names the event a ticket notification reports.
type NotificationType string

const (
	NotifyAssignment   NotificationType = "assignment"
	NotifyUnassignment NotificationType = "unassignment"
	NotifyResolved     NotificationType = "resolved"
	NotifyUnresolved   NotificationType = "unresolved"
)

// TicketNotification is delivered to one user about one ticket event.
type TicketNotification struct {
	NotificationID       int64            `json:"notification_id"`
	NotificationToUserID string           `json:"notification_to_user_id"`
	NotificationType     NotificationType `json:"notification_type"`
	TicketID             string           `json:"ticket_id"`
	TicketDescription    string           `json:"ticket_description"`
	AssignedToUserID     string           `json:"assigned_to_user_id"`
	AssignedByUserID     string           `json:"assigned_by_user_id"`
	CreatedAt            time.Time        `json:"created_at"`
}
