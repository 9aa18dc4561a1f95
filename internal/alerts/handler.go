// Package alerts stores device alerts reported by hubs and lists them per organization.
package alerts

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/smartess/backend/internal/auth"
	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// HubLister returns the hubs visible to a user.
type HubLister interface {
	HubsForUser(ctx context.Context, userID string) ([]models.Hub, error)
}

// Lister loads alerts by hub, newest first.
type Lister interface {
	ListByHubs(ctx context.Context, hubIDs []string) ([]models.Alert, error)
}

// Handler serves /api/alerts/get_organization_alerts.
type Handler struct {
	hubs     HubLister
	alerts   Lister
	resolver *auth.Resolver
}

// NewHandler creates an alerts handler.
func NewHandler(hubs HubLister, alerts Lister, resolver *auth.Resolver) *Handler {
	return &Handler{hubs: hubs, alerts: alerts, resolver: resolver}
}

// Register mounts the alert routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/get_organization_alerts", h.OrganizationAlerts)
}

// OrganizationAlerts returns every alert of every hub in the caller's organizations.
func (h *Handler) OrganizationAlerts(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	hubs, err := h.hubs.HubsForUser(ctx, user.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	byID := make(map[string]*models.Hub, len(hubs))
	ids := make([]string, len(hubs))
	for i := range hubs {
		byID[hubs[i].HubID] = &hubs[i]
		ids[i] = hubs[i].HubID
	}

	list, err := h.alerts.ListByHubs(ctx, ids)
	if err != nil {
		response.Error(c, apperr.DataAccess("Failed to fetch alerts.", err))
		return
	}
	views := make([]models.AlertView, 0, len(list))
	for i := range list {
		views = append(views, list[i].View(byID[list[i].HubID]))
	}
	response.OK(c, gin.H{"alerts": views})
}
