package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
)

// GormSnapshotStore persists export baselines in MySQL. The latest snapshot
// per (user, content type) wins; older rows are kept for inspection.
type GormSnapshotStore struct{}

func (GormSnapshotStore) LatestSnapshot(ctx context.Context, userId string, contentType string) (*Snapshot, error) {
	db := config.GetDB().WithContext(ctx)

	var record models.ExportSnapshot
	err := db.Where("user_id = ? AND content_type = ?", userId, contentType).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshotFromRecord(&record)
}

func (GormSnapshotStore) PutSnapshot(ctx context.Context, snap *Snapshot) (uint, error) {
	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot rows: %w", err)
	}
	record := models.ExportSnapshot{
		UserId:      snap.UserId,
		ContentType: snap.ContentType,
		SourceType:  snap.SourceKey.Type,
		FileName:    snap.SourceKey.FileName,
		SheetId:     snap.SourceKey.SheetId,
		TabName:     snap.SourceKey.TabName,
		RowsJSON:    rowsJSON,
		RowCount:    len(snap.Rows),
		CapturedAt:  snap.CapturedAt,
	}
	if err := config.GetDB().WithContext(ctx).Create(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func snapshotFromRecord(record *models.ExportSnapshot) (*Snapshot, error) {
	var rows map[string]Row
	if err := json.Unmarshal(record.RowsJSON, &rows); err != nil {
		return nil, fmt.Errorf("decode snapshot %d rows: %w", record.ID, err)
	}
	return &Snapshot{
		ID:          record.ID,
		UserId:      record.UserId,
		ContentType: record.ContentType,
		SourceKey: SourceKey{
			Type:     record.SourceType,
			FileName: record.FileName,
			SheetId:  record.SheetId,
			TabName:  record.TabName,
		},
		Rows:       rows,
		CapturedAt: record.CapturedAt,
	}, nil
}

// GormAuditStore appends audit entries. No update or delete path exists.
type GormAuditStore struct{}

func (GormAuditStore) InsertSyncLog(ctx context.Context, entry *models.SyncLog) error {
	return config.GetDB().WithContext(ctx).Create(entry).Error
}
