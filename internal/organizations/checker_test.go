package organizations

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/apperr"
)

type fakeStore struct {
	rows map[string]*models.OrgUser
	err  error
}

func (f *fakeStore) GetMembership(_ context.Context, userID, projID string) (*models.OrgUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.rows[userID+"/"+projID]
	if !ok {
		return nil, ErrNoMembership
	}
	return m, nil
}

func member(userID, projID string, t models.OrgUserType) *models.OrgUser {
	return &models.OrgUser{UserID: userID, OrgID: "org", ProjID: &projID, OrgUserType: t}
}

func TestCheckProjectAccess(t *testing.T) {
	store := &fakeStore{rows: map[string]*models.OrgUser{"u1/p1": member("u1", "p1", models.OrgUserBasic)}}
	c := NewChecker(store, nil)

	m, err := c.CheckProjectAccess(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.OrgUserBasic, m.OrgUserType)

	_, err = c.CheckProjectAccess(context.Background(), "u2", "p1")
	e := apperr.As(err)
	assert.Equal(t, http.StatusForbidden, e.Status())
	assert.Equal(t, ReasonNoMembership, e.Reason)
	assert.Equal(t, apperr.CodeForbiddenNoAccess, e.Code)
}

func TestCheckProjectAccess_QueryError(t *testing.T) {
	c := NewChecker(&fakeStore{err: errors.New("timeout")}, nil)
	_, err := c.CheckProjectAccess(context.Background(), "u1", "p1")
	e := apperr.As(err)
	assert.Equal(t, http.StatusInternalServerError, e.Status())
	assert.Equal(t, "Failed to verify project access", e.Message)
}

func TestRequireRole(t *testing.T) {
	for _, role := range []models.OrgUserType{models.OrgUserAdmin, models.OrgUserMaster} {
		assert.NoError(t, RequireRole(member("u", "p", role), MutatingRoles, "nope"))
	}
	err := RequireRole(member("u", "p", models.OrgUserBasic), MutatingRoles, "User does not have permission to delete tickets")
	e := apperr.As(err)
	assert.Equal(t, http.StatusForbidden, e.Status())
	assert.Equal(t, ReasonInsufficientRole, e.Reason)
	assert.Equal(t, "User does not have permission to delete tickets", e.Message)
}

func TestAuthorize_ForbiddenCausesShareStatusButNotReason(t *testing.T) {
	store := &fakeStore{rows: map[string]*models.OrgUser{"basic/p1": member("basic", "p1", models.OrgUserBasic)}}
	c := NewChecker(store, nil)

	_, noAccess := c.Authorize(context.Background(), "stranger", "p1", MutatingRoles, "denied")
	_, noRole := c.Authorize(context.Background(), "basic", "p1", MutatingRoles, "denied")

	a, b := apperr.As(noAccess), apperr.As(noRole)
	assert.Equal(t, a.Status(), b.Status())
	assert.NotEqual(t, a.Reason, b.Reason)
}
