package models

import "time"

const (
	IdempotencyStatusStarted   = "STARTED"
	IdempotencyStatusSucceeded = "SUCCEEDED"
	IdempotencyStatusFailed    = "FAILED"
)

// IdempotencyKey makes at-least-once delivery of sync-run messages safe:
// a run that already SUCCEEDED is skipped, a STARTED one younger than the
// staleness window asks the transport to retry later.
type IdempotencyKey struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	UserId      string    `gorm:"uniqueIndex:idx_idem_key,priority:1;size:36;not null" json:"user_id"`
	HandlerName string    `gorm:"uniqueIndex:idx_idem_key,priority:2;size:64;not null" json:"handler_name"`
	MessageId   string    `gorm:"uniqueIndex:idx_idem_key,priority:3;size:128;not null" json:"message_id"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	LastError   *string   `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
