package reconcile

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

type ConnectRequest struct {
	PortalId    string `json:"portalId"`
	AccessToken string `json:"accessToken"`
}

type ValidateImportRequest struct {
	ContentType string    `json:"contentType" binding:"required"`
	Source      SourceKey `json:"source" binding:"required"`
}

type PreviewRequest struct {
	ContentType string    `json:"contentType" binding:"required"`
	Source      SourceKey `json:"source" binding:"required"`
	Rows        []Row     `json:"rows" binding:"required"`
}

type PreviewResponse struct {
	Export    *ExportDetails           `json:"export"`
	ChangeSet *ChangeSet               `json:"changeSet"`
	Grouped   map[string][]FieldChange `json:"grouped"`
}

type TriggerSyncRequest struct {
	ContentType string         `json:"contentType" binding:"required"`
	Source      SourceKey      `json:"source" binding:"required"`
	Changes     []FieldChange  `json:"changes" binding:"required"`
	Rows        map[string]Row `json:"rows"`
}

type SyncRunResponse struct {
	ID           uint    `json:"id"`
	ContentType  string  `json:"contentType"`
	Status       string  `json:"status"`
	TriggeredBy  string  `json:"triggeredBy"`
	ChangeCount  int     `json:"changeCount"`
	SuccessCount int     `json:"successCount"`
	FailureCount int     `json:"failureCount"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	StartedAt    *string `json:"startedAt"`
	FinishedAt   *string `json:"finishedAt"`
	DurationMs   int64   `json:"durationMs"`
}

type SyncErrorResponse struct {
	ID        uint   `json:"id"`
	RecordId  string `json:"recordId"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{
				"status":       models.HubspotStatusDisconnected,
				"contentTypes": SupportedContentTypes(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       conn.Status,
			"portalId":     conn.PortalId,
			"lastExportAt": formatTime(conn.LastExportAt),
			"lastSyncAt":   formatTime(conn.LastSyncAt),
			"contentTypes": SupportedContentTypes(),
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.PortalId) == "" || strings.TrimSpace(req.AccessToken) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "portalId and accessToken are required"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		if conn == nil {
			conn = &models.HubspotConnection{
				UserId:        userId,
				PortalId:      req.PortalId,
				Status:        models.HubspotStatusConnected,
				AuthType:      "private_app_token",
				AuthSecretRef: req.AccessToken,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"status":          models.HubspotStatusConnected,
				"auth_type":       "private_app_token",
				"auth_secret_ref": req.AccessToken,
				"portal_id":       req.PortalId,
				"updated_at":      now,
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":          models.HubspotStatusDisconnected,
			"auth_secret_ref": "",
			"updated_at":      time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Cached schema comparisons were built against this portal's token.
		keys := make([]string, 0, len(contentTypeEndpoints))
		for ct := range contentTypeEndpoints {
			keys = append(keys, schemaCacheKeyPrefix+ct)
		}
		if err := config.RemoveRedisKey(keys...); err != nil {
			config.LogError(config.GetLogger(), "reconcile", "DisconnectHandler", "clearing schema cache", map[string]interface{}{"user_id": userId}, err)
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ValidateImportHandler answers whether a claimed import source matches the
// last export baseline, before any rows are uploaded.
func ValidateImportHandler(store SnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ValidateImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.FormatValidationErrors(err)})
			return
		}
		if !IsSupportedContentType(req.ContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		details, _, err := ValidateImportSource(ctx, store, userId, req.ContentType, req.Source)
		if err != nil {
			writeGateError(c, err)
			return
		}
		c.JSON(http.StatusOK, details)
	}
}

// PreviewHandler validates provenance and returns the detected change set
// without side effects.
func PreviewHandler(store SnapshotStore, provider MetadataProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.FormatValidationErrors(err)})
			return
		}
		if !IsSupportedContentType(req.ContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		details, snap, err := ValidateImportSource(ctx, store, userId, req.ContentType, req.Source)
		if err != nil {
			writeGateError(c, err)
			return
		}

		meta, err := provider.FieldMetadata(ctx, req.ContentType)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		batch := &ImportBatch{ContentType: req.ContentType, SourceKey: req.Source, Rows: req.Rows}
		cs, err := DetectChanges(ctx, batch, snap, meta)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, PreviewResponse{Export: details, ChangeSet: cs, Grouped: GroupChangesByRecord(cs)})
	}
}

// TriggerSyncHandler freezes the operator-confirmed changes into a queued
// run and hands it to the worker.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.FormatValidationErrors(err)})
			return
		}
		if len(req.Changes) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no changes to sync"})
			return
		}
		if !IsSupportedContentType(req.ContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil || conn.Status != models.HubspotStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "hubspot is not connected"})
			return
		}

		cs := &ChangeSet{
			ContentType: req.ContentType,
			SourceKey:   req.Source,
			Changes:     append([]FieldChange(nil), req.Changes...),
		}
		sortChanges(cs.Changes)
		cs.RecordsWithChanges = len(GroupChangesByRecord(cs))

		run := models.SyncRun{
			UserId:        userId,
			ContentType:   req.ContentType,
			Status:        models.SyncRunStatusQueued,
			TriggeredBy:   models.SyncTriggeredManual,
			ChangeSetJSON: EncodeChangeSet(cs),
			RowsJSON:      EncodeRows(req.Rows),
			ChangeCount:   len(cs.Changes),
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if utils.EnvBoolDefault("HUBSPOT_SYNC_INLINE", false) {
			_ = ProcessSyncRun(ctx, SyncPubSubPayload{RunId: run.ID, UserId: userId})
		} else {
			_ = PublishSyncRun(c.Request.Context(), run.ID, userId)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// RetrySyncRunHandler queues a follow-up run carrying only the failed
// records of a finished run.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		var run models.SyncRun
		if err := db.Where("id = ? AND user_id = ?", id, userId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if run.Status != models.SyncRunStatusFailed && run.Status != models.SyncRunStatusPartial {
			c.JSON(http.StatusConflict, gin.H{"error": "run has no failed records to retry"})
			return
		}

		var recordErrors []models.SyncRecordError
		if err := db.Where("sync_run_id = ? AND retryable = ?", run.ID, true).Find(&recordErrors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(recordErrors) == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "run has no retryable records"})
			return
		}

		cs, err := DecodeChangeSet(run.ChangeSetJSON)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		failedIds := make(map[string]bool, len(recordErrors))
		for _, recordErr := range recordErrors {
			failedIds[recordErr.RecordId] = true
		}
		retryCs := &ChangeSet{ContentType: cs.ContentType, SourceKey: cs.SourceKey}
		for _, change := range cs.Changes {
			if failedIds[change.RecordId] {
				retryCs.Changes = append(retryCs.Changes, change)
			}
		}
		retryCs.RecordsWithChanges = len(GroupChangesByRecord(retryCs))

		newRun := models.SyncRun{
			UserId:        userId,
			ContentType:   run.ContentType,
			Status:        models.SyncRunStatusQueued,
			TriggeredBy:   models.SyncTriggeredRetry,
			ChangeSetJSON: EncodeChangeSet(retryCs),
			RowsJSON:      run.RowsJSON,
			ChangeCount:   len(retryCs.Changes),
			ParentRunId:   &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if utils.EnvBoolDefault("HUBSPOT_SYNC_INLINE", false) {
			_ = ProcessSyncRun(ctx, SyncPubSubPayload{RunId: newRun.ID, UserId: userId})
		} else {
			_ = PublishSyncRun(c.Request.Context(), newRun.ID, userId)
		}

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := queryLimit(c, 20)
		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		var runs []models.SyncRun
		if err := db.Where("user_id = ?", userId).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		var run models.SyncRun
		if err := db.Where("id = ? AND user_id = ?", id, userId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var recordErrors []models.SyncRecordError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&recordErrors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapErrors(recordErrors),
		})
	}
}

// SyncLogsHandler reads the audit trail, newest first.
func SyncLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := queryLimit(c, 50)
		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		query := db.Where("user_id = ?", userId)
		if contentType := strings.TrimSpace(c.Query("contentType")); contentType != "" {
			query = query.Where("content_type = ?", contentType)
		}

		var logs []models.SyncLog
		if err := query.Order("id desc").Limit(limit).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": logs})
	}
}

// SchemaCheckHandler compares the local field classification against live
// records. Pass force=true to bypass the cache.
func SchemaCheckHandler(provider MetadataProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := resolveUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		contentType := strings.TrimSpace(c.Query("contentType"))
		if !IsSupportedContentType(contentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}
		force := strings.EqualFold(c.Query("force"), "true")

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil || conn.Status != models.HubspotStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "hubspot is not connected"})
			return
		}

		client, err := NewHubspotClient(conn.AuthSecretRef)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		comparison, err := CompareSchemaDefinitions(ctx, client, provider, contentType, force)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, comparison)
	}
}

func writeGateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoMatchingExport):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSourceMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func resolveUserID(c *gin.Context) (string, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return "", errors.New("unauthorized")
	}
	user, err := models.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		return "", errors.New("unauthorized")
	}
	return user.ID, nil
}

func getConnection(db *gorm.DB, userId string) (*models.HubspotConnection, error) {
	var conn models.HubspotConnection
	err := db.Where("user_id = ?", userId).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func queryLimit(c *gin.Context, def int) int {
	limit := def
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return limit
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:           run.ID,
		ContentType:  run.ContentType,
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		ChangeCount:  run.ChangeCount,
		SuccessCount: run.SuccessCount,
		FailureCount: run.FailureCount,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		DurationMs:   run.DurationMs,
	}
}

func mapErrors(errorsList []models.SyncRecordError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:        errItem.ID,
			RecordId:  errItem.RecordId,
			Message:   errItem.Message,
			Retryable: errItem.Retryable,
		})
	}
	return out
}
