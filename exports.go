package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/reconcile"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/sheets"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

type exportRequest struct {
	ContentType string `json:"contentType" binding:"required"`
	Target      string `json:"target" binding:"required,oneof=file sheet"`
	FileName    string `json:"fileName"`
	SheetId     string `json:"sheetId"`
	TabName     string `json:"tabName"`
}

type exportResponse struct {
	SnapshotId uint                `json:"snapshotId"`
	RowCount   int                 `json:"rowCount"`
	Source     reconcile.SourceKey `json:"source"`
	FileURL    string              `json:"fileUrl,omitempty"`
}

// exportHandler pulls every record of a content type out of HubSpot, writes
// it to the requested destination and captures the snapshot the next import
// will be reconciled against.
func exportHandler(store reconcile.SnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req exportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.FormatValidationErrors(err)})
			return
		}
		if !reconcile.IsSupportedContentType(req.ContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}
		if req.Target == "sheet" && (strings.TrimSpace(req.SheetId) == "" || strings.TrimSpace(req.TabName) == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sheetId and tabName are required for sheet exports"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)
		db := config.GetDB().WithContext(ctx)

		var conn models.HubspotConnection
		if err := db.Where("user_id = ?", user.ID).Take(&conn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusConflict, gin.H{"error": "hubspot is not connected"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn.Status != models.HubspotStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "hubspot is not connected"})
			return
		}

		client, err := reconcile.NewHubspotClient(conn.AuthSecretRef)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		rows, err := client.ListAllRecords(ctx, req.ContentType)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		headers := exportHeaders(rows)

		source := reconcile.SourceKey{Type: req.Target}
		fileURL := ""
		switch req.Target {
		case "file":
			fileName := strings.TrimSpace(req.FileName)
			if fileName == "" {
				fileName = fmt.Sprintf("%s-export-%s.xlsx", req.ContentType, time.Now().UTC().Format("20060102"))
			}
			source.FileName = fileName

			objectName := fmt.Sprintf("exports/%s/%s_%s", user.ID, uuid.NewString(), fileName)
			buf, err := buildXlsx(headers, rows)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := utils.UploadFileToGCS(ctx, objectName, buf); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			fileURL = utils.BuildObjectAccessURL(objectName)
		case "sheet":
			source.SheetId = req.SheetId
			source.TabName = req.TabName

			svc, err := sheets.NewService(ctx)
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			if err := sheets.WriteTab(ctx, svc, req.SheetId, req.TabName, headers, rows); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
		}

		snap := &reconcile.Snapshot{
			UserId:      user.ID,
			ContentType: req.ContentType,
			SourceKey:   source,
			Rows:        reconcile.KeyRowsById(rows),
			CapturedAt:  time.Now().UTC(),
		}
		snapshotId, err := store.PutSnapshot(ctx, snap)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		if err := db.Model(&models.HubspotConnection{}).
			Where("user_id = ?", user.ID).
			Update("last_export_at", now).Error; err != nil {
			config.LogError(config.GetLogger(), "exports.go", "exportHandler", "Update last export", user.ID, err)
		}

		c.JSON(http.StatusOK, exportResponse{
			SnapshotId: snapshotId,
			RowCount:   len(snap.Rows),
			Source:     source,
			FileURL:    fileURL,
		})
	}
}

// exportHeaders unions the field keys of every row, id first, the rest
// alphabetical, so the written tab round-trips through the import readers.
func exportHeaders(rows []reconcile.Row) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for field := range row {
			seen[field] = true
		}
	}
	delete(seen, "id")

	headers := make([]string, 0, len(seen)+1)
	for field := range seen {
		headers = append(headers, field)
	}
	sort.Strings(headers)
	return append([]string{"id"}, headers...)
}

func buildXlsx(headers []string, rows []reconcile.Row) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}
	for rowIdx, row := range rows {
		for colIdx, header := range headers {
			value, ok := row[header]
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, cellValue(value)); err != nil {
				return nil, err
			}
		}
	}
	return f.WriteToBuffer()
}

// cellValue keeps scalars native so the spreadsheet stays typed; JSON
// shapes are flattened to their canonical text.
func cellValue(v any) any {
	switch v.(type) {
	case string, bool, int, int64, float32, float64:
		return v
	default:
		return reconcile.FromAny(v).Canonical()
	}
}
