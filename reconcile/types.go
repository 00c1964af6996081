package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row is one record's fields as produced by an import adapter or stored in a
// snapshot. Values may be scalars, arrays or nested objects (JSON shapes).
type Row map[string]any

// SourceKey identifies where an import (or export) came from: an uploaded
// file, or a Google Sheets tab. It binds an import to the snapshot captured
// from the same place.
type SourceKey struct {
	Type     string `json:"type" binding:"required,oneof=file sheet"`
	FileName string `json:"fileName,omitempty"`
	SheetId  string `json:"sheetId,omitempty"`
	TabName  string `json:"tabName,omitempty"`
}

func (k SourceKey) Matches(o SourceKey) bool {
	if k.Type != o.Type {
		return false
	}
	if k.Type == "file" {
		return strings.EqualFold(strings.TrimSpace(k.FileName), strings.TrimSpace(o.FileName))
	}
	return strings.TrimSpace(k.SheetId) == strings.TrimSpace(o.SheetId) &&
		strings.EqualFold(strings.TrimSpace(k.TabName), strings.TrimSpace(o.TabName))
}

func (k SourceKey) String() string {
	if k.Type == "file" {
		return fmt.Sprintf("file:%s", k.FileName)
	}
	return fmt.Sprintf("sheet:%s/%s", k.SheetId, k.TabName)
}

// ImportBatch is the transient input to validation and change detection.
// Produced by an adapter (XLSX reader, Sheets reader, request body); never
// persisted.
type ImportBatch struct {
	ContentType string    `json:"contentType"`
	SourceKey   SourceKey `json:"sourceKey"`
	Rows        []Row     `json:"rows"`
}

// FieldMetadata classifies one exported field. A field marked ReadOnly is
// never diffed or synced regardless of its presence in either row.
type FieldMetadata struct {
	Key           string `json:"key"`
	DataType      string `json:"dataType"`
	ReadOnly      bool   `json:"readOnly"`
	Editable      bool   `json:"editable"`
	InAppEditable bool   `json:"inAppEditable"`
}

// FieldChange is one detected difference. Previous/new values are stored in
// normalized, primitive-comparable form. Immutable once produced.
type FieldChange struct {
	RecordId      string `json:"recordId"`
	Field         string `json:"field"`
	PreviousValue string `json:"previousValue"`
	NewValue      string `json:"newValue"`
}

// ChangeSet is the output of one reconciliation run. Confirmation selects a
// subset and produces a new ChangeSet; the original is never mutated.
type ChangeSet struct {
	ContentType         string        `json:"contentType"`
	SourceKey           SourceKey     `json:"sourceKey"`
	Changes             []FieldChange `json:"changes"`
	NewRecordIds        []string      `json:"newRecordIds"`
	MalformedRows       int           `json:"malformedRows"`
	TotalRecordsScanned int           `json:"totalRecordsScanned"`
	RecordsWithChanges  int           `json:"recordsWithChanges"`
}

// GroupChangesByRecord organizes a change set for operator review.
func GroupChangesByRecord(cs *ChangeSet) map[string][]FieldChange {
	grouped := make(map[string][]FieldChange)
	for _, change := range cs.Changes {
		grouped[change.RecordId] = append(grouped[change.RecordId], change)
	}
	return grouped
}

// SyncResult is the aggregate of one dispatch. Produced once per dispatch
// invocation after every in-flight call has settled.
type SyncResult struct {
	SuccessCount    int               `json:"successCount"`
	FailureCount    int               `json:"failureCount"`
	PerRecordErrors map[string]string `json:"perRecordErrors"`
}

// PageChange is the human-readable expansion of a FieldChange for audit
// display.
type PageChange struct {
	RecordId      string `json:"recordId"`
	RecordLabel   string `json:"recordLabel"`
	Field         string `json:"field"`
	PreviousValue string `json:"previousValue"`
	NewValue      string `json:"newValue"`
}

// Snapshot is the engine's view of a stored export baseline. Rows are keyed
// by record id. Read-only inside the engine.
type Snapshot struct {
	ID          uint           `json:"id"`
	UserId      string         `json:"userId"`
	ContentType string         `json:"contentType"`
	SourceKey   SourceKey      `json:"sourceKey"`
	Rows        map[string]Row `json:"rows"`
	CapturedAt  time.Time      `json:"capturedAt"`
}

// ExportDetails is what validation hands back to the caller: enough to show
// the operator which export their import was matched against.
type ExportDetails struct {
	SnapshotId  uint      `json:"snapshotId"`
	ContentType string    `json:"contentType"`
	SourceKey   SourceKey `json:"sourceKey"`
	RowCount    int       `json:"rowCount"`
	CapturedAt  time.Time `json:"capturedAt"`
}

func EncodeChangeSet(cs *ChangeSet) []byte {
	b, _ := json.Marshal(cs)
	return b
}

func DecodeChangeSet(raw []byte) (*ChangeSet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty change set payload")
	}
	var cs ChangeSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func EncodeRows(rows map[string]Row) []byte {
	b, _ := json.Marshal(rows)
	return b
}

func DecodeRows(raw []byte) map[string]Row {
	if len(raw) == 0 {
		return nil
	}
	var rows map[string]Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}
	return rows
}

// sortChanges fixes the output order so repeated detections over unchanged
// inputs serialize byte-identically.
func sortChanges(changes []FieldChange) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].RecordId != changes[j].RecordId {
			return changes[i].RecordId < changes[j].RecordId
		}
		return changes[i].Field < changes[j].Field
	})
}
