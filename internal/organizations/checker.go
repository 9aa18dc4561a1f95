package organizations

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/apperr"
)

// Logged reasons for the two 403 causes.
const (
	ReasonNoMembership     = "no_membership"
	ReasonInsufficientRole = "insufficient_role"
)

// RoleSet is a set of membership roles allowed for an operation.
type RoleSet map[models.OrgUserType]struct{}

// Roles builds a RoleSet.
func Roles(types ...models.OrgUserType) RoleSet {
	s := make(RoleSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s RoleSet) Has(t models.OrgUserType) bool {
	_, ok := s[t]
	return ok
}

// MutatingRoles may assign, unassign, close and delete tickets.
var MutatingRoles = Roles(models.OrgUserAdmin, models.OrgUserMaster)

// MembershipStore finds a user's membership row for a project.
type MembershipStore interface {
	GetMembership(ctx context.Context, userID, projID string) (*models.OrgUser, error)
}

// Checker answers project access questions.
type Checker struct {
	store  MembershipStore
	logger *zap.Logger
}

// NewChecker creates a checker.
func NewChecker(store MembershipStore, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{store: store, logger: logger}
}

// CheckProjectAccess returns the user's membership for projID. A missing row is a 403;
// a failed lookup is a 500.
func (c *Checker) CheckProjectAccess(ctx context.Context, userID, projID string) (*models.OrgUser, error) {
	m, err := c.store.GetMembership(ctx, userID, projID)
	if errors.Is(err, ErrNoMembership) || (err == nil && m == nil) {
		c.logger.Info("project access denied",
			zap.String("user_id", userID), zap.String("proj_id", projID), zap.String("reason", ReasonNoMembership))
		return nil, apperr.Forbidden(apperr.CodeForbiddenNoAccess, "User does not have access to this ticket", ReasonNoMembership)
	}
	if err != nil {
		return nil, apperr.DataAccess("Failed to verify project access", err)
	}
	return m, nil
}

// RequireRole fails with a 403 carrying message when the membership role is not in allowed.
func RequireRole(m *models.OrgUser, allowed RoleSet, message string) error {
	if m == nil || !allowed.Has(m.OrgUserType) {
		return apperr.Forbidden(apperr.CodeForbiddenRole, message, ReasonInsufficientRole)
	}
	return nil
}

// Authorize combines CheckProjectAccess and RequireRole.
func (c *Checker) Authorize(ctx context.Context, userID, projID string, allowed RoleSet, message string) (*models.OrgUser, error) {
	m, err := c.CheckProjectAccess(ctx, userID, projID)
	if err != nil {
		return nil, err
	}
	if err := RequireRole(m, allowed, message); err != nil {
		c.logger.Info("project access denied",
			zap.String("user_id", userID), zap.String("proj_id", projID),
			zap.String("role", string(m.OrgUserType)), zap.String("reason", ReasonInsufficientRole))
		return nil, err
	}
	return m, nil
}
