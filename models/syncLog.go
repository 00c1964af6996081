package models

import "time"

const (
	ActionTypeHubspotSync = "hubspot_sync"
)

// SyncLog is the immutable audit record of one logical sync operation.
// Never updated after creation; corrections are new entries. Fingerprint is
// the dedup key that suppresses a second entry for the same logical
// operation arriving within the audit logger's window.
type SyncLog struct {
	ID              uint      `gorm:"primary_key" json:"id"`
	UserId          string    `gorm:"index;size:36;not null" json:"user_id"`
	ActionType      string    `gorm:"size:50;not null" json:"action_type"`
	ContentType     string    `gorm:"size:50" json:"content_type"`
	ChangeCount     int       `json:"change_count"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	WasSuccessful   bool      `json:"was_successful"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message"`
	PageChangesJSON []byte    `gorm:"type:json" json:"page_changes"`
	Fingerprint     string    `gorm:"index;size:64" json:"fingerprint"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
