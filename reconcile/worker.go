package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

const syncRunHandlerName = "HUBSPOT_SYNC_RUN"

var (
	syncAuditOnce sync.Once
	syncAudit     *AuditLogger
)

// auditLogger is shared per process so redelivered completions within the
// dedup window hit the same cache.
func auditLogger() *AuditLogger {
	syncAuditOnce.Do(func() {
		syncAudit = NewAuditLogger(GormAuditStore{})
	})
	return syncAudit
}

// ProcessSyncRun executes one queued sync run: decode the frozen change
// set, dispatch it record by record, persist per-record failures, settle
// the run status and write the audit entry. Safe under at-least-once
// delivery.
func ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.UserId == "" {
		return errors.New("invalid payload")
	}

	logger := config.GetLogger()
	ctx = utils.SetUserIdInContext(ctx, payload.UserId)
	db := config.GetDB().WithContext(ctx)

	var run models.SyncRun
	if err := db.Where("id = ? AND user_id = ?", payload.RunId, payload.UserId).Take(&run).Error; err != nil {
		return err
	}

	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	messageId := fmt.Sprintf("run-%d", run.ID)
	skip, err := BeginIdempotency(db, payload.UserId, syncRunHandlerName, messageId)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	var conn models.HubspotConnection
	if err := db.Where("user_id = ?", payload.UserId).Take(&conn).Error; err != nil {
		return failRun(ctx, db, &run, payload, messageId, fmt.Errorf("load hubspot connection: %w", err))
	}
	if conn.Status != models.HubspotStatusConnected {
		return failRun(ctx, db, &run, payload, messageId, errors.New("hubspot not connected"))
	}

	client, err := NewHubspotClient(conn.AuthSecretRef)
	if err != nil {
		return failRun(ctx, db, &run, payload, messageId, err)
	}

	cs, err := DecodeChangeSet(run.ChangeSetJSON)
	if err != nil {
		return failRun(ctx, db, &run, payload, messageId, fmt.Errorf("decode change set: %w", err))
	}
	rows := DecodeRows(run.RowsJSON)

	if err := utils.UserLock(ctx, payload.UserId, "hubspot-sync", "worker.go", "ProcessSyncRun"); err != nil {
		if markErr := MarkIdempotencyFailed(db, payload.UserId, syncRunHandlerName, messageId, err); markErr != nil {
			config.LogError(logger, "worker.go", "ProcessSyncRun", "Mark idempotency failed", payload, markErr)
		}
		return err
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	result := Dispatch(ctx, client, cs, DispatchOptions{})

	for recordId, message := range result.PerRecordErrors {
		recordErr := models.SyncRecordError{
			SyncRunId: run.ID,
			UserId:    payload.UserId,
			RecordId:  recordId,
			Message:   message,
			Retryable: !strings.Contains(message, ErrRecordGone.Error()),
		}
		if err := db.Create(&recordErr).Error; err != nil {
			config.LogError(logger, "worker.go", "ProcessSyncRun", "Persist record error", recordId, err)
		}
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.SyncRunStatusSuccess
	if result.FailureCount > 0 && result.SuccessCount == 0 {
		status = models.SyncRunStatusFailed
	} else if result.FailureCount > 0 {
		status = models.SyncRunStatusPartial
	}

	errorMessage := ""
	if result.FailureCount > 0 {
		errorMessage = fmt.Sprintf("%d of %d records failed", result.FailureCount, result.SuccessCount+result.FailureCount)
	}

	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":        status,
		"finished_at":   finishedAt,
		"duration_ms":   durationMs,
		"success_count": result.SuccessCount,
		"failure_count": result.FailureCount,
		"error_message": errorMessage,
	}).Error; err != nil {
		return err
	}

	if err := db.Model(&models.HubspotConnection{}).
		Where("user_id = ?", payload.UserId).
		Update("last_sync_at", finishedAt).Error; err != nil {
		config.LogError(logger, "worker.go", "ProcessSyncRun", "Update connection last sync", payload, err)
	}

	wasSuccessful := result.FailureCount == 0
	if _, skipped, err := auditLogger().Log(ctx, payload.UserId, cs, rows, result, wasSuccessful, errorMessage); err != nil {
		config.LogError(logger, "worker.go", "ProcessSyncRun", "Write audit entry", payload, err)
	} else if skipped {
		logger.WithField("runId", run.ID).Info("duplicate audit entry suppressed")
	}

	return MarkIdempotencySucceeded(db, payload.UserId, syncRunHandlerName, messageId)
}

// failRun settles a run that could not dispatch at all. The attempt still
// gets an audit entry so the operator sees the failure in history.
func failRun(ctx context.Context, db *gorm.DB, run *models.SyncRun, payload SyncPubSubPayload, messageId string, cause error) error {
	logger := config.GetLogger()
	finishedAt := time.Now()
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":        models.SyncRunStatusFailed,
		"finished_at":   finishedAt,
		"error_message": cause.Error(),
	}).Error; err != nil {
		config.LogError(logger, "worker.go", "failRun", "Settle failed run", payload, err)
	}

	if cs, err := DecodeChangeSet(run.ChangeSetJSON); err == nil {
		res := &SyncResult{FailureCount: len(GroupChangesByRecord(cs)), PerRecordErrors: map[string]string{}}
		if _, _, logErr := auditLogger().Log(ctx, payload.UserId, cs, DecodeRows(run.RowsJSON), res, false, cause.Error()); logErr != nil {
			config.LogError(logger, "worker.go", "failRun", "Write audit entry", payload, logErr)
		}
	}

	if err := MarkIdempotencyFailed(db, payload.UserId, syncRunHandlerName, messageId, cause); err != nil {
		config.LogError(logger, "worker.go", "failRun", "Mark idempotency failed", payload, err)
	}
	return cause
}
