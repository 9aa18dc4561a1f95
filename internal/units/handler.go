package units

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smartess/backend/internal/auth"
	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// ImageLister lists public URLs of project images.
type ImageLister interface {
	ListProjectImages(ctx context.Context) ([]string, error)
}

// Handler serves the project, unit and surveillance views.
type Handler struct {
	views    *ViewBuilder
	resolver *auth.Resolver
	images   ImageLister
	logger   *zap.Logger
}

// NewHandler creates a units handler. images may be nil when no bucket is configured.
func NewHandler(views *ViewBuilder, resolver *auth.Resolver, images ImageLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{views: views, resolver: resolver, images: images, logger: logger}
}

// IndividualUnitRequest is the body for POST /get-individual-unit.
type IndividualUnitRequest struct {
	ProjAddress string `json:"projAddress"`
	UnitID      string `json:"unit_id"`
}

// RemoveUserRequest is the body for POST /remove-user-from-hub.
type RemoveUserRequest struct {
	HubID  string `json:"hub_id"`
	UserID string `json:"user_id"`
}

// RegisterProjects mounts GET /get_user_projects.
func (h *Handler) RegisterProjects(g *gin.RouterGroup) {
	g.GET("/get_user_projects", h.projects(Options{}))
}

// RegisterUnits mounts GET /get-user-projects with ticket stats.
func (h *Handler) RegisterUnits(g *gin.RouterGroup) {
	g.GET("/get-user-projects", h.projects(Options{TicketStats: true}))
}

// RegisterSurveillance mounts the surveillance routes.
func (h *Handler) RegisterSurveillance(g *gin.RouterGroup) {
	g.GET("/get-user-projects", h.projects(Options{TicketStats: true}))
	g.GET("/get-project-images", h.ProjectImages)
}

// RegisterAlerts mounts GET /get_projects_for_alerts.
func (h *Handler) RegisterAlerts(g *gin.RouterGroup) {
	g.GET("/get_projects_for_alerts", h.projects(Options{Alerts: true}))
}

// RegisterIndividualUnit mounts the individual unit routes.
func (h *Handler) RegisterIndividualUnit(g *gin.RouterGroup) {
	g.POST("/get-individual-unit", h.GetIndividualUnit)
	g.POST("/remove-user-from-hub", h.RemoveUserFromHub)
}

func (h *Handler) projects(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := h.resolver.CurrentUser(c)
		if !ok {
			return
		}
		res, err := h.views.ProjectsForUser(c.Request.Context(), user.UserID, opts)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, res)
	}
}

// GetIndividualUnit handles POST /get-individual-unit.
func (h *Handler) GetIndividualUnit(c *gin.Context) {
	var req IndividualUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProjAddress) == "" || strings.TrimSpace(req.UnitID) == "" {
		response.BadRequest(c, "Invalid request data")
		return
	}
	if !h.resolver.VerifyRequest(c) {
		return
	}
	unit, err := h.views.IndividualUnit(c.Request.Context(), req.ProjAddress, req.UnitID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"unit": unit})
}

// RemoveUserFromHub handles POST /remove-user-from-hub.
func (h *Handler) RemoveUserFromHub(c *gin.Context) {
	var req RemoveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.HubID) == "" || strings.TrimSpace(req.UserID) == "" {
		response.BadRequest(c, "Invalid request data")
		return
	}
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	if err := h.views.RemoveUserFromHub(c.Request.Context(), user, req.HubID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "User successfully removed from the hub.")
}

// ProjectImages handles GET /get-project-images.
func (h *Handler) ProjectImages(c *gin.Context) {
	if !h.resolver.VerifyRequest(c) {
		return
	}
	if h.images == nil {
		h.logger.Warn("project images requested but no bucket is configured")
		response.OK(c, gin.H{"images": []string{}})
		return
	}
	urls, err := h.images.ListProjectImages(c.Request.Context())
	if err != nil {
		response.Error(c, apperr.DataAccess("Failed to fetch images.", err))
		return
	}
	response.OK(c, gin.H{"images": urls})
}
