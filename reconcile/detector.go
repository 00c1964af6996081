package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMetadataUnavailable aborts detection entirely: without the field
// classification we cannot tell editable fields from read-only ones, and a
// sync built on a guess could clobber system-managed fields.
var ErrMetadataUnavailable = errors.New("field metadata unavailable for content type")

// MetadataProvider supplies the field classification for a content type.
type MetadataProvider interface {
	FieldMetadata(ctx context.Context, contentType string) (map[string]FieldMetadata, error)
}

// recordIdFields are the identity column candidates, tried in order.
var recordIdFields = []string{"id", "hs_id", "recordId", "record_id", "objectId"}

func recordIdOf(row Row) string {
	for _, field := range recordIdFields {
		raw, ok := row[field]
		if !ok || raw == nil {
			continue
		}
		id := strings.TrimSpace(canonicalScalar(raw))
		if id != "" {
			return id
		}
	}
	return ""
}

// canonicalScalar renders an identity cell as a stable string. Spreadsheet
// readers hand numeric ids back as floats, so 189234.0 must match "189234".
func canonicalScalar(raw any) string {
	v := FromAny(raw)
	switch v.kind {
	case kindString, kindNumber:
		return v.Canonical()
	default:
		return fmt.Sprintf("%v", raw)
	}
}

// DetectChanges compares each import row against the snapshot row with the
// same record id and emits field-level differences for editable fields.
// Rows without a usable record id are skipped and counted; records absent
// from the snapshot are reported, never diffed. The returned change set is
// deterministically ordered.
func DetectChanges(ctx context.Context, batch *ImportBatch, snap *Snapshot, meta map[string]FieldMetadata) (*ChangeSet, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMetadataUnavailable, batch.ContentType)
	}

	cs := &ChangeSet{
		ContentType: batch.ContentType,
		SourceKey:   batch.SourceKey,
		Changes:     []FieldChange{},
	}

	seen := map[string]bool{}
	for _, row := range batch.Rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		recordId := recordIdOf(row)
		if recordId == "" {
			cs.MalformedRows++
			continue
		}
		if seen[recordId] {
			// duplicate record id: keep the first row, count the rest
			cs.MalformedRows++
			continue
		}
		seen[recordId] = true
		cs.TotalRecordsScanned++

		snapRow, ok := snap.Rows[recordId]
		if !ok {
			cs.NewRecordIds = append(cs.NewRecordIds, recordId)
			continue
		}

		emitted := 0
		for field, raw := range row {
			if isRecordIdField(field) {
				continue
			}
			if md, ok := meta[field]; ok && md.ReadOnly {
				continue
			}
			newVal := FromAny(raw)
			prevVal := FromAny(snapRow[field])
			if ValuesEqual(prevVal, newVal) {
				continue
			}
			cs.Changes = append(cs.Changes, FieldChange{
				RecordId:      recordId,
				Field:         field,
				PreviousValue: prevVal.Canonical(),
				NewValue:      newVal.Canonical(),
			})
			emitted++
		}
		if emitted > 0 {
			cs.RecordsWithChanges++
		}
	}

	sortChanges(cs.Changes)
	sort.Strings(cs.NewRecordIds)
	return cs, nil
}

// KeyRowsById indexes rows by record id, dropping rows without one. Used
// when capturing a snapshot and when building a label lookup for audit.
func KeyRowsById(rows []Row) map[string]Row {
	keyed := make(map[string]Row, len(rows))
	for _, row := range rows {
		if id := recordIdOf(row); id != "" {
			keyed[id] = row
		}
	}
	return keyed
}

func isRecordIdField(field string) bool {
	for _, f := range recordIdFields {
		if f == field {
			return true
		}
	}
	return false
}
