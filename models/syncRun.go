package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
)

// SyncRun is one operator-confirmed push of a change set to HubSpot.
// The confirmed change set is frozen into ChangeSetJSON at trigger time so
// the worker dispatches exactly what the operator approved.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	UserId        string     `gorm:"index;size:36;not null" json:"user_id"`
	ContentType   string     `gorm:"size:50;not null" json:"content_type"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	ChangeSetJSON []byte     `gorm:"type:json" json:"change_set"`
	RowsJSON      []byte     `gorm:"type:json" json:"rows"`
	ChangeCount   int        `json:"change_count"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	ParentRunId   *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncRecordError is a per-record failure inside a run. The run keeps going
// when one of these is written; the operator retries just the failures.
type SyncRecordError struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	SyncRunId uint      `gorm:"index;not null" json:"sync_run_id"`
	UserId    string    `gorm:"index;size:36;not null" json:"user_id"`
	RecordId  string    `gorm:"size:128" json:"record_id"`
	Message   string    `gorm:"type:text" json:"message"`
	Retryable bool      `gorm:"default:true" json:"retryable"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
