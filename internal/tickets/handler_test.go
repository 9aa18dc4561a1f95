package tickets

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

func newRouter(f *fixture) *gin.Engine {
	resolver := auth.NewResolver(tokenProvider{}, emailUsers{
		admin.Email: admin,
		basic.Email: basic,
		guest.Email: guest,
	}, nil)
	r := gin.New()
	g := r.Group("/api/tickets", middleware.Token())
	NewHandler(f.svc, resolver).Register(g)
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

func TestHandler_AssignUsers(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	w := do(r, http.MethodPost, "/api/tickets/assign-users", admin.Email, `{"ticket_id":"123","user_ids":["456"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Users successfully assigned to ticket"}`, w.Body.String())
	assert.Equal(t, models.TicketPending, f.store.status("123"))

	w = do(r, http.MethodGet, "/api/tickets/assigned-users/123", basic.Email, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AssignedUsers []AssignedUser `json:"assignedUsers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.AssignedUsers, 1)
	assert.Equal(t, "456", body.AssignedUsers[0].UserID)
	assert.False(t, body.AssignedUsers[0].Resolved)
}

func TestHandler_AssignUsers_Errors(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
		error  string
	}{
		{"no token", "", `{"ticket_id":"123","user_ids":["456"]}`, http.StatusUnauthorized, "No token provided"},
		{"bad token", "bad", `{"ticket_id":"123","user_ids":["456"]}`, http.StatusUnauthorized, "Invalid token"},
		{"unknown user", "nobody@example.com", `{"ticket_id":"123","user_ids":["456"]}`, http.StatusNotFound, "User not found."},
		{"missing ids", admin.Email, `{"ticket_id":"123"}`, http.StatusBadRequest, "Invalid request data"},
		{"malformed", admin.Email, `{"ticket_id":`, http.StatusBadRequest, "Invalid request data"},
		{"basic role", basic.Email, `{"ticket_id":"123","user_ids":["456"]}`, http.StatusForbidden, "User does not have permission to assign tickets"},
		{"non member", guest.Email, `{"ticket_id":"123","user_ids":["456"]}`, http.StatusForbidden, "User does not have access to this ticket"},
		{"over capacity", admin.Email, `{"ticket_id":"123","user_ids":["a","b","c","d"]}`, http.StatusBadRequest, "Maximum 3 users can be assigned to a ticket"},
		{"unknown ticket", admin.Email, `{"ticket_id":"nope","user_ids":["456"]}`, http.StatusNotFound, "Ticket not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := do(newRouter(f), http.MethodPost, "/api/tickets/assign-users", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.error, body["error"])
			assert.NotEmpty(t, body["code"])
			assert.Empty(t, f.store.assignments)
		})
	}
}

func TestHandler_ClosedTicket(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	w := do(r, http.MethodPost, "/api/tickets/close-ticket/123", admin.Email, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Ticket successfully closed"}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/tickets/unassign-user", admin.Email, `{"ticket_id":"123","user_id":"456"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot unassign users from a closed ticket")
}

func TestHandler_DeleteTicket(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	w := do(r, http.MethodDelete, "/api/tickets/delete-ticket/123", basic.Email, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden_role")

	w = do(r, http.MethodDelete, "/api/tickets/delete-ticket/123", admin.Email, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Ticket successfully deleted"}`, w.Body.String())
}

func TestHandler_GetTickets(t *testing.T) {
	f := newFixture()
	w := do(newRouter(f), http.MethodGet, "/api/tickets/get-tickets", basic.Email, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tickets":[{
		"ticket_id":"123","proj_id":"456","unit_id":"hub-1","name":"Leaky faucet","description":"",
		"type":"repair","unit":"101","status":"open","created_at":"2024-11-03"}]}`, w.Body.String())
}

func TestHandler_UpdateResolution(t *testing.T) {
	f := newFixture()
	f.store.assign("123", basic.UserID, admin.UserID)
	r := newRouter(f)

	w := do(r, http.MethodPost, "/api/tickets/update-ticket-resolution", basic.Email, `{"ticket_id":"123","status":"resolved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Ticket marked as resolved."}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/tickets/update-ticket-resolution", basic.Email, `{"ticket_id":"123","status":"resolved"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Ticket is already marked as resolved.")

	w = do(r, http.MethodPost, "/api/tickets/update-ticket-resolution", basic.Email, `{"ticket_id":"123","status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/tickets/get-notifications", admin.Email, "")
	require.Equal(t, http.StatusOK, w.Code)
	var notes []models.TicketNotification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyResolved, notes[0].NotificationType)
}

func TestHandler_AssignedUsersChecksTokenOnly(t *testing.T) {
	f := newFixture()
	r := newRouter(f)

	w := do(r, http.MethodGet, "/api/tickets/assigned-users/123", "nobody@example.com", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"assignedUsers":[]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/tickets/assigned-users/123", "bad", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
