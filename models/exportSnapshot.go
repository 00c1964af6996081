package models

import "time"

const (
	SourceTypeFile  = "file"
	SourceTypeSheet = "sheet"
)

// ExportSnapshot is the baseline row-set captured at export time for a
// (user, content type, source) triple. Written only by the export path;
// the reconciliation engine reads it and never mutates it. A newer export
// for the same key supersedes the older row (latest by id wins).
type ExportSnapshot struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	UserId      string    `gorm:"index:idx_snapshot_owner,priority:1;size:36;not null" json:"user_id"`
	ContentType string    `gorm:"index:idx_snapshot_owner,priority:2;size:50;not null" json:"content_type"`
	SourceType  string    `gorm:"size:10;not null" json:"source_type"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	SheetId     string    `gorm:"size:128" json:"sheet_id"`
	TabName     string    `gorm:"size:128" json:"tab_name"`
	RowsJSON    []byte    `gorm:"type:json" json:"rows"`
	RowCount    int       `json:"row_count"`
	CapturedAt  time.Time `gorm:"not null" json:"captured_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
