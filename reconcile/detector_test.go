package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testSnapshot(rows map[string]Row) *Snapshot {
	return &Snapshot{
		ID:          1,
		UserId:      "u-1",
		ContentType: "landing-pages",
		SourceKey:   SourceKey{Type: "sheet", SheetId: "abc1", TabName: "Landing Pages"},
		Rows:        rows,
		CapturedAt:  time.Now(),
	}
}

func testBatch(rows []Row) *ImportBatch {
	return &ImportBatch{
		ContentType: "landing-pages",
		SourceKey:   SourceKey{Type: "sheet", SheetId: "abc1", TabName: "Landing Pages"},
		Rows:        rows,
	}
}

func testMeta() map[string]FieldMetadata {
	meta, err := (StaticMetadataProvider{}).FieldMetadata(context.Background(), "landing-pages")
	if err != nil {
		panic(err)
	}
	return meta
}

func TestDetectChanges_IdenticalRowsProduceNothing(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"189234": {"id": "189234", "name": "Pricing", "htmlTitle": "Pricing | Acme"},
	})
	batch := testBatch([]Row{
		{"id": "189234", "name": "Pricing", "htmlTitle": "Pricing | Acme"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", cs.Changes)
	}
	if cs.TotalRecordsScanned != 1 || cs.RecordsWithChanges != 0 {
		t.Fatalf("unexpected counters: %+v", cs)
	}
}

func TestDetectChanges_SingleFieldEdit(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"189234": {"id": "189234", "name": "Pricing", "htmlTitle": "Pricing | Acme", "updatedAt": "2024-01-15T09:30:00Z"},
	})
	batch := testBatch([]Row{
		{"id": "189234", "name": "Pricing", "htmlTitle": "Pricing Plans | Acme", "updatedAt": "2024-01-15T09:30:00Z"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Changes) != 1 {
		t.Fatalf("expected exactly one change, got %v", cs.Changes)
	}
	change := cs.Changes[0]
	if change.RecordId != "189234" || change.Field != "htmlTitle" {
		t.Fatalf("unexpected change: %+v", change)
	}
	if change.PreviousValue != "Pricing | Acme" || change.NewValue != "Pricing Plans | Acme" {
		t.Fatalf("unexpected values: %+v", change)
	}
	if cs.RecordsWithChanges != 1 {
		t.Fatalf("expected one record with changes, got %d", cs.RecordsWithChanges)
	}
}

func TestDetectChanges_ReadOnlyFieldsExcluded(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"189234": {"id": "189234", "name": "Pricing", "updatedAt": "2024-01-15T09:30:00Z", "url": "https://a.example/pricing"},
	})
	batch := testBatch([]Row{
		{"id": "189234", "name": "Pricing", "updatedAt": "2024-06-01T12:00:00Z", "url": "https://b.example/pricing"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Changes) != 0 {
		t.Fatalf("read-only fields must never be reported, got %v", cs.Changes)
	}
}

func TestDetectChanges_NewRecordReportedNotDiffed(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"1": {"id": "1", "name": "Home"},
	})
	batch := testBatch([]Row{
		{"id": "1", "name": "Home"},
		{"id": "99", "name": "Brand New Page"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Changes) != 0 {
		t.Fatalf("new records must not contribute field changes, got %v", cs.Changes)
	}
	if len(cs.NewRecordIds) != 1 || cs.NewRecordIds[0] != "99" {
		t.Fatalf("expected new record 99, got %v", cs.NewRecordIds)
	}
}

func TestDetectChanges_MalformedRowsSkippedAndCounted(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"1": {"id": "1", "name": "Home"},
	})
	batch := testBatch([]Row{
		{"name": "no id at all"},
		{"id": "", "name": "blank id"},
		{"id": "1", "name": "Homepage"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if cs.MalformedRows != 2 {
		t.Fatalf("expected 2 malformed rows, got %d", cs.MalformedRows)
	}
	if len(cs.Changes) != 1 || cs.Changes[0].NewValue != "Homepage" {
		t.Fatalf("valid row must still be processed, got %v", cs.Changes)
	}
}

func TestDetectChanges_TagArrayOrderIgnored(t *testing.T) {
	meta, err := (StaticMetadataProvider{}).FieldMetadata(context.Background(), "blog-posts")
	if err != nil {
		t.Fatalf("FieldMetadata: %v", err)
	}
	snap := testSnapshot(map[string]Row{
		"7": {"id": "7", "tagIds": []any{"a", "b", "c"}},
	})
	snap.ContentType = "blog-posts"
	batch := testBatch([]Row{
		{"id": "7", "tagIds": []any{"c", "a", "b"}},
	})
	batch.ContentType = "blog-posts"

	cs, err := DetectChanges(context.Background(), batch, snap, meta)
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Changes) != 0 {
		t.Fatalf("reordered tags are not a change, got %v", cs.Changes)
	}
}

func TestDetectChanges_NumericIdFromSpreadsheetMatches(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"189234": {"id": "189234", "name": "Pricing"},
	})
	// Sheets readers hand ids back as floats.
	batch := testBatch([]Row{
		{"id": float64(189234), "name": "Pricing Plans"},
	})

	cs, err := DetectChanges(context.Background(), batch, snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.NewRecordIds) != 0 {
		t.Fatalf("numeric id must match the snapshot row, got new records %v", cs.NewRecordIds)
	}
	if len(cs.Changes) != 1 || cs.Changes[0].Field != "name" {
		t.Fatalf("expected one name change, got %v", cs.Changes)
	}
}

func TestDetectChanges_MissingMetadataAborts(t *testing.T) {
	snap := testSnapshot(map[string]Row{})
	batch := testBatch([]Row{{"id": "1"}})

	_, err := DetectChanges(context.Background(), batch, snap, nil)
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
	}
}

func TestDetectChanges_DeterministicSerialization(t *testing.T) {
	snap := testSnapshot(map[string]Row{
		"2": {"id": "2", "name": "B", "htmlTitle": "B | Acme"},
		"1": {"id": "1", "name": "A", "htmlTitle": "A | Acme"},
	})
	rows := []Row{
		{"id": "2", "name": "B2", "htmlTitle": "B2 | Acme"},
		{"id": "1", "name": "A2", "htmlTitle": "A2 | Acme"},
	}

	first, err := DetectChanges(context.Background(), testBatch(rows), snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	second, err := DetectChanges(context.Background(), testBatch(rows), snap, testMeta())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("repeated detection must serialize identically:\n%s\n%s", a, b)
	}
}
