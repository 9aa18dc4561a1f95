package tickets

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/smartess/backend/internal/auth"
	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/response"
)

// Handler serves /api/tickets.
type Handler struct {
	svc      *Service
	resolver *auth.Resolver
}

// NewHandler creates a tickets handler.
func NewHandler(svc *Service, resolver *auth.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

// Register mounts the ticket routes on g. g must already carry the token middleware.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/get-tickets", h.GetTickets)
	g.DELETE("/delete-ticket/:ticket_id", h.DeleteTicket)
	g.GET("/ticket/:ticket_id", h.GetTicket)
	g.GET("/assignable-employees/:ticket_id", h.AssignableEmployees)
	g.GET("/assigned-users/:ticket_id", h.AssignedUsers)
	g.POST("/assign-users", h.AssignUsers)
	g.POST("/unassign-user", h.UnassignUser)
	g.POST("/close-ticket/:ticket_id", h.CloseTicket)
	g.GET("/get-assigned-tickets-for-user", h.AssignedTicketsForUser)
	g.POST("/update-ticket-resolution", h.UpdateResolution)
	g.GET("/get-notifications", h.Notifications)
}

// AssignRequest is the body for POST /assign-users. assigned_by_user_id is accepted for
// older clients; the assigner is always the caller.
type AssignRequest struct {
	TicketID         string   `json:"ticket_id"`
	UserIDs          []string `json:"user_ids"`
	AssignedByUserID string   `json:"assigned_by_user_id"`
}

// UnassignRequest is the body for POST /unassign-user.
type UnassignRequest struct {
	TicketID         string `json:"ticket_id"`
	UserID           string `json:"user_id"`
	AssignedByUserID string `json:"assigned_by_user_id"`
}

// ResolutionRequest is the body for POST /update-ticket-resolution.
type ResolutionRequest struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// GetTickets handles GET /get-tickets.
func (h *Handler) GetTickets(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	items, err := h.svc.ListTickets(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tickets": items})
}

// GetTicket handles GET /ticket/:ticket_id.
func (h *Handler) GetTicket(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTicket(c.Request.Context(), user, c.Param("ticket_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"ticket": t})
}

// DeleteTicket handles DELETE /delete-ticket/:ticket_id.
func (h *Handler) DeleteTicket(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTicket(c.Request.Context(), user, c.Param("ticket_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Ticket successfully deleted")
}

// CloseTicket handles POST /close-ticket/:ticket_id.
func (h *Handler) CloseTicket(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.svc.CloseTicket(c.Request.Context(), user, c.Param("ticket_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Ticket successfully closed")
}

// AssignableEmployees handles GET /assignable-employees/:ticket_id.
func (h *Handler) AssignableEmployees(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	employees, err := h.svc.AssignableEmployees(c.Request.Context(), user, c.Param("ticket_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"employees": employees})
}

// AssignedUsers handles GET /assigned-users/:ticket_id. Only the token is verified.
func (h *Handler) AssignedUsers(c *gin.Context) {
	if !h.resolver.VerifyRequest(c) {
		return
	}
	users, err := h.svc.AssignedUsers(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"assignedUsers": users})
}

// AssignUsers handles POST /assign-users.
func (h *Handler) AssignUsers(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TicketID == "" || len(req.UserIDs) == 0 {
		response.BadRequest(c, "Invalid request data")
		return
	}
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.svc.AssignUsers(c.Request.Context(), user, req.TicketID, req.UserIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Users successfully assigned to ticket")
}

// UnassignUser handles POST /unassign-user.
func (h *Handler) UnassignUser(c *gin.Context) {
	var req UnassignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TicketID == "" || req.UserID == "" {
		response.BadRequest(c, "Invalid request data")
		return
	}
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.svc.UnassignUser(c.Request.Context(), user, req.TicketID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "User successfully unassigned from ticket")
}

// AssignedTicketsForUser handles GET /get-assigned-tickets-for-user.
func (h *Handler) AssignedTicketsForUser(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	list, err := h.svc.AssignedTicketsForUser(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tickets": list})
}

// UpdateResolution handles POST /update-ticket-resolution.
func (h *Handler) UpdateResolution(c *gin.Context) {
	var req ResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request data")
		return
	}
	status := models.ResolvedStatus(req.Status)
	if req.TicketID == "" || (status != models.Resolved && status != models.Unresolved) {
		response.BadRequest(c, "Invalid request data")
		return
	}
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.svc.UpdateResolution(c.Request.Context(), user, req.TicketID, status); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, fmt.Sprintf("Ticket marked as %s.", status))
}

// Notifications handles GET /get-notifications.
func (h *Handler) Notifications(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	list, err := h.svc.Notifications(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
