package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/reconcile"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/sheets"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

const maxImportFileBytes = 20 << 20

type importSheetRequest struct {
	ContentType string `json:"contentType" binding:"required"`
	SheetId     string `json:"sheetId" binding:"required"`
	TabName     string `json:"tabName" binding:"required"`
}

// importFileHandler accepts a re-uploaded export file, parks a copy in GCS,
// parses it and returns the change preview. No sync happens here.
func importFileHandler(store reconcile.SnapshotStore, provider reconcile.MetadataProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		contentType := strings.TrimSpace(c.PostForm("contentType"))
		if !reconcile.IsSupportedContentType(contentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)

		// An objectKey re-runs a previously uploaded copy without a new upload.
		if objectKey := strings.TrimSpace(c.PostForm("objectKey")); objectKey != "" {
			rerunStoredImport(c, ctx, store, provider, user.ID, contentType, objectKey)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files are allowed"})
			return
		}
		if fileHeader.Size > maxImportFileBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
			return
		}

		opened, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer opened.Close()

		content, err := io.ReadAll(opened)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Keep a copy of what the operator actually imported.
		objectName := fmt.Sprintf("imports/%s/%s_%s", user.ID, uuid.NewString(), fileHeader.Filename)
		if err := utils.UploadFileToGCS(ctx, objectName, bytes.NewReader(content)); err != nil {
			config.LogError(config.GetLogger(), "imports.go", "importFileHandler", "Upload import copy", objectName, err)
		}

		rows, err := rowsFromXlsx(bytes.NewReader(content))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		source := reconcile.SourceKey{Type: "file", FileName: fileHeader.Filename}
		writePreview(c, ctx, store, provider, user.ID, contentType, source, rows)
	}
}

// importSheetHandler reads a Google Sheets tab and returns the change
// preview.
func importSheetHandler(store reconcile.SnapshotStore, provider reconcile.MetadataProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req importSheetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.FormatValidationErrors(err)})
			return
		}
		if !reconcile.IsSupportedContentType(req.ContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported content type"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)

		svc, err := sheets.NewService(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		rows, err := sheets.ReadTab(ctx, svc, req.SheetId, req.TabName)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		source := reconcile.SourceKey{Type: "sheet", SheetId: req.SheetId, TabName: req.TabName}
		writePreview(c, ctx, store, provider, user.ID, req.ContentType, source, rows)
	}
}

// rerunStoredImport replays an earlier upload from its GCS copy. Object keys
// are scoped to the caller, so one user cannot replay another user's file.
func rerunStoredImport(c *gin.Context, ctx context.Context, store reconcile.SnapshotStore, provider reconcile.MetadataProvider, userId, contentType, objectKey string) {
	if !strings.HasPrefix(objectKey, "imports/"+userId+"/") {
		c.JSON(http.StatusForbidden, gin.H{"error": "objectKey does not belong to this user"})
		return
	}

	rc, err := utils.ReadFileFromGCS(ctx, objectKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stored import copy not found"})
		return
	}
	defer rc.Close()

	rows, err := rowsFromXlsx(io.LimitReader(rc, maxImportFileBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The stored key is "imports/{userId}/{uuid}_{originalName}"; the source
	// gate matches on the original file name.
	base := filepath.Base(objectKey)
	fileName := base
	if i := strings.Index(base, "_"); i >= 0 && i+1 < len(base) {
		fileName = base[i+1:]
	}

	source := reconcile.SourceKey{Type: "file", FileName: fileName}
	writePreview(c, ctx, store, provider, userId, contentType, source, rows)
}

func writePreview(c *gin.Context, ctx context.Context, store reconcile.SnapshotStore, provider reconcile.MetadataProvider, userId, contentType string, source reconcile.SourceKey, rows []reconcile.Row) {
	details, snap, err := reconcile.ValidateImportSource(ctx, store, userId, contentType, source)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrNoMatchingExport):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, reconcile.ErrSourceMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	meta, err := provider.FieldMetadata(ctx, contentType)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	batch := &reconcile.ImportBatch{ContentType: contentType, SourceKey: source, Rows: rows}
	cs, err := reconcile.DetectChanges(ctx, batch, snap, meta)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, reconcile.PreviewResponse{
		Export:    details,
		ChangeSet: cs,
		Grouped:   reconcile.GroupChangesByRecord(cs),
	})
}

// rowsFromXlsx maps the first sheet to rows: first data row is the header,
// every following row becomes a field map keyed by header.
func rowsFromXlsx(r io.Reader) ([]reconcile.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}
	raw, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("sheet is empty")
	}

	headers := make([]string, 0, len(raw[0]))
	for _, cell := range raw[0] {
		headers = append(headers, strings.TrimSpace(cell))
	}

	rows := make([]reconcile.Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := reconcile.Row{}
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = cell
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func resolveUser(c *gin.Context) (*models.User, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return nil, errors.New("unauthorized")
	}
	return models.GetUserByUsername(c.Request.Context(), username)
}
