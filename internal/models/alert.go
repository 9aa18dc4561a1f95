package models

import "time"

// Alert is a device event reported by a hub.
type Alert struct {
	AlertID     int64     `json:"alert_id"`
	HubID       string    `json:"hub_id"`
	Description string    `json:"description"`
	Message     string    `json:"message"`
	Active      bool      `json:"active"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	DeviceID    string    `json:"device_id"`
	HubIP       string    `json:"hub_ip"`
}

// AlertView is the dashboard representation of an alert.
type AlertView struct {
	ID          int64     `json:"id"`
	HubID       string    `json:"hubId"`
	UnitNumber  *string   `json:"unitNumber"`
	ProjectID   *string   `json:"projectId,omitempty"`
	Description string    `json:"description"`
	Message     string    `json:"message"`
	Active      bool      `json:"active"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"deviceId"`
	HubIP       string    `json:"hubIp"`
}

// View converts an alert, attaching the hub's unit number and project when known.
func (a *Alert) View(hub *Hub) AlertView {
	v := AlertView{
		ID:          a.AlertID,
		HubID:       a.HubID,
		Description: a.Description,
		Message:     a.Message,
		Active:      a.Active,
		Type:        a.Type,
		Timestamp:   a.CreatedAt,
		DeviceID:    a.DeviceID,
		HubIP:       a.HubIP,
	}
	if hub != nil {
		unit, proj := hub.UnitNumber, hub.ProjID
		v.UnitNumber = &unit
		v.ProjectID = &proj
	}
	return v
}
