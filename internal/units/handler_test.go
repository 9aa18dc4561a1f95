package units

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartess/backend/internal/auth"
	"github.com/smartess/backend/internal/middleware"
	"github.com/smartess/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenProvider treats the token as the caller's email; "bad" is rejected.
type tokenProvider struct{}

func (tokenProvider) GetUser(_ context.Context, token string) (*auth.Identity, error) {
	if token == "bad" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{ID: token, Email: token}, nil
}

type emailUsers map[string]*models.User

func (m emailUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m[email]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func newRouter(f *fixture, images ImageLister) *gin.Engine {
	resolver := auth.NewResolver(tokenProvider{}, emailUsers{admin.Email: admin, basic.Email: basic}, nil)
	h := NewHandler(f.builder, resolver, images, nil)
	r := gin.New()
	api := r.Group("/api", middleware.Token())
	h.RegisterProjects(api.Group("/projects"))
	h.RegisterUnits(api.Group("/units"))
	h.RegisterSurveillance(api.Group("/surveillance"))
	h.RegisterAlerts(api.Group("/alerts"))
	h.RegisterIndividualUnit(api.Group("/individual-unit"))
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ProjectViews(t *testing.T) {
	r := newRouter(newFixture(4), nil)

	tests := []struct {
		path       string
		wantTotal  int
		wantAlerts int
	}{
		{"/api/projects/get_user_projects", 0, 0},
		{"/api/units/get-user-projects", 4, 0},
		{"/api/surveillance/get-user-projects", 4, 0},
		{"/api/alerts/get_projects_for_alerts", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, admin.Email, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var body ProjectsResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Len(t, body.Projects, 2)
			u101 := unitByNumber(t, body.Projects[0], "101")
			assert.Equal(t, tt.wantTotal, u101.Tickets.Total)
			assert.Len(t, u101.Alerts, tt.wantAlerts)
		})
	}
}

func TestHandler_ProjectViewsRequireUser(t *testing.T) {
	r := newRouter(newFixture(4), nil)

	w := do(r, http.MethodGet, "/api/projects/get_user_projects", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/projects/get_user_projects", "bad", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/projects/get_user_projects", "stranger@example.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "User not found.")
}

func TestHandler_IndividualUnit(t *testing.T) {
	r := newRouter(newFixture(4), nil)

	w := do(r, http.MethodPost, "/api/individual-unit/get-individual-unit", "anyone@example.com",
		`{"projAddress":"1 Main St","unit_id":"101"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Unit UnitDetail `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "h1", body.Unit.UnitID)
	assert.Equal(t, "555-0104", body.Unit.Owner.Telephone)

	w = do(r, http.MethodPost, "/api/individual-unit/get-individual-unit", "bad", `{"projAddress":"1 Main St"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request data")

	w = do(r, http.MethodPost, "/api/individual-unit/get-individual-unit", "bad", `{"projAddress":"1 Main St","unit_id":"101"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_RemoveUserFromHub(t *testing.T) {
	f := newFixture(4)
	r := newRouter(f, nil)

	w := do(r, http.MethodPost, "/api/individual-unit/remove-user-from-hub", basic.Email, `{"hub_id":"h1","user_id":"u6"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/individual-unit/remove-user-from-hub", admin.Email, `{"hub_id":"h1","user_id":"u6"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"User successfully removed from the hub."}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/individual-unit/remove-user-from-hub", admin.Email, `{"hub_id":"h1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ProjectImages(t *testing.T) {
	urls := []string{"https://b.s3.r.amazonaws.com/mock-project-images/a.png"}

	r := newRouter(newFixture(4), memImages{urls: urls})
	w := do(r, http.MethodGet, "/api/surveillance/get-project-images", "anyone@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"images":["https://b.s3.r.amazonaws.com/mock-project-images/a.png"]}`, w.Body.String())

	r = newRouter(newFixture(4), memImages{err: errBoom})
	w = do(r, http.MethodGet, "/api/surveillance/get-project-images", "anyone@example.com", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to fetch images.")

	r = newRouter(newFixture(4), nil)
	w = do(r, http.MethodGet, "/api/surveillance/get-project-images", "anyone@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"images":[]}`, w.Body.String())
}
