package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// MembershipSource lists a user's memberships and the projects they point at.
type MembershipSource interface {
	ListMemberships(ctx context.Context, userID string) ([]models.OrgUser, error)
	ProjectsByIDs(ctx context.Context, projIDs []string) ([]models.Project, error)
}

// CurrentUser is the dashboard's view of the caller.
type CurrentUser struct {
	UserID  string   `json:"userId"`
	Role    string   `json:"role"`
	Address []string `json:"address"`
}

// Handler serves identity endpoints.
type Handler struct {
	resolver    *Resolver
	memberships MembershipSource
	logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(resolver *Resolver, memberships MembershipSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{resolver: resolver, memberships: memberships, logger: logger}
}

// GetCurrentUser handles GET /api/individual-unit/get-current-user.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	user, ok := h.resolver.CurrentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	members, err := h.memberships.ListMemberships(ctx, user.UserID)
	if err != nil {
		response.Error(c, apperr.DataAccess("Failed to fetch current user data.", err))
		return
	}
	if len(members) == 0 {
		response.Error(c, apperr.NotFound(apperr.CodeNotFound, "Current user not found."))
		return
	}

	var projIDs []string
	for _, m := range members {
		if m.ProjID != nil {
			projIDs = append(projIDs, *m.ProjID)
		}
	}
	addresses := make([]string, 0, len(projIDs))
	if len(projIDs) > 0 {
		projects, err := h.memberships.ProjectsByIDs(ctx, projIDs)
		if err != nil {
			response.Error(c, apperr.DataAccess("Failed to fetch project addresses.", err))
			return
		}
		for _, p := range projects {
			addresses = append(addresses, p.Address)
		}
	}

	response.OK(c, gin.H{"currentUser": CurrentUser{
		UserID:  user.UserID,
		Role:    string(displayRole(members[0].OrgUserType)),
		Address: addresses,
	}})
}

// displayRole coerces unknown membership types to basic.
func displayRole(t models.OrgUserType) models.OrgUserType {
	switch t {
	case models.OrgUserMaster, models.OrgUserAdmin, models.OrgUserBasic:
		return t
	}
	return models.OrgUserBasic
}
