package models

// OrgUserType is a user's role in an organization or project.
type OrgUserType string

const (
	OrgUserAdmin  OrgUserType = "admin"
	OrgUserMaster OrgUserType = "master"
	OrgUserBasic  OrgUserType = "basic"
)

// OrgUser is a membership row. ProjID is nil for org-wide memberships.
type OrgUser struct {
	UserID      string      `json:"user_id"`
	OrgID       string      `json:"org_id"`
	ProjID      *string     `json:"proj_id,omitempty"`
	OrgUserType OrgUserType `json:"org_user_type"`
}

// Project is a building under an organization. Counts are maintained externally.
type Project struct {
	ProjID              string `json:"proj_id"`
	OrgID               string `json:"org_id"`
	Address             string `json:"address"`
	AdminUsersCount     int    `json:"admin_users_count"`
	HubUsersCount       int    `json:"hub_users_count"`
	PendingTicketsCount int    `json:"pending_tickets_count"`
}
