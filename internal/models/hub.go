package models

// HubUserType is a user's role on a hub.
type HubUserType string

const (
	HubUserOwner HubUserType = "owner"
	HubUserAdmin HubUserType = "admin"
	HubUserBasic HubUserType = "basic"
)

// Hub is one physical unit within a project.
type Hub struct {
	HubID      string `json:"hub_id"`
	ProjID     string `json:"proj_id"`
	UnitNumber string `json:"unit_number"`
	Status     string `json:"status,omitempty"`
}

// HubUser links a user to a hub.
type HubUser struct {
	HubID       string      `json:"hub_id"`
	UserID      string      `json:"user_id"`
	HubUserType HubUserType `json:"hub_user_type"`
}
