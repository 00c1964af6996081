package models

import "time"

const (
	HubspotStatusConnected    = "connected"
	HubspotStatusDisconnected = "disconnected"
	HubspotStatusError        = "error"
)

// HubspotConnection stores the per-user binding to a HubSpot portal.
// AuthSecretRef holds the private-app access token used by the sync client.
type HubspotConnection struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	UserId        string     `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	PortalId      string     `gorm:"size:50" json:"portal_id"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	AuthType      string     `gorm:"size:20" json:"auth_type"`
	AuthSecretRef string     `gorm:"type:text" json:"auth_secret_ref"`
	SettingsJSON  []byte     `gorm:"type:json" json:"settings"`
	LastExportAt  *time.Time `json:"last_export_at"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
