package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSnapshotStore struct {
	snap *Snapshot
	err  error
}

func (s *fakeSnapshotStore) LatestSnapshot(ctx context.Context, userId, contentType string) (*Snapshot, error) {
	return s.snap, s.err
}

func (s *fakeSnapshotStore) PutSnapshot(ctx context.Context, snap *Snapshot) (uint, error) {
	s.snap = snap
	return 1, nil
}

func TestValidateImportSource_NoExport(t *testing.T) {
	store := &fakeSnapshotStore{}
	_, _, err := ValidateImportSource(context.Background(), store, "u-1", "landing-pages", SourceKey{Type: "file", FileName: "export.xlsx"})
	if !errors.Is(err, ErrNoMatchingExport) {
		t.Fatalf("expected ErrNoMatchingExport, got %v", err)
	}
}

func TestValidateImportSource_SourceMismatch(t *testing.T) {
	store := &fakeSnapshotStore{snap: &Snapshot{
		ID:          3,
		UserId:      "u-1",
		ContentType: "landing-pages",
		SourceKey:   SourceKey{Type: "sheet", SheetId: "abc1", TabName: "Landing Pages"},
		Rows:        map[string]Row{"1": {"id": "1"}},
		CapturedAt:  time.Now(),
	}}

	cases := []SourceKey{
		{Type: "sheet", SheetId: "other-sheet", TabName: "Landing Pages"},
		{Type: "sheet", SheetId: "abc1", TabName: "Blog Posts"},
		{Type: "file", FileName: "export.xlsx"},
	}
	for _, key := range cases {
		_, _, err := ValidateImportSource(context.Background(), store, "u-1", "landing-pages", key)
		if !errors.Is(err, ErrSourceMismatch) {
			t.Fatalf("key %v: expected ErrSourceMismatch, got %v", key, err)
		}
	}
}

func TestValidateImportSource_Match(t *testing.T) {
	captured := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeSnapshotStore{snap: &Snapshot{
		ID:          7,
		UserId:      "u-1",
		ContentType: "landing-pages",
		SourceKey:   SourceKey{Type: "file", FileName: "landing-pages-export.xlsx"},
		Rows:        map[string]Row{"1": {"id": "1"}, "2": {"id": "2"}},
		CapturedAt:  captured,
	}}

	// File name comparison is case-insensitive.
	details, snap, err := ValidateImportSource(context.Background(), store, "u-1", "landing-pages", SourceKey{Type: "file", FileName: "Landing-Pages-Export.XLSX"})
	if err != nil {
		t.Fatalf("ValidateImportSource: %v", err)
	}
	if details.SnapshotId != 7 || details.RowCount != 2 || !details.CapturedAt.Equal(captured) {
		t.Fatalf("unexpected details: %+v", details)
	}
	if snap == nil || len(snap.Rows) != 2 {
		t.Fatalf("expected matched snapshot to be returned")
	}
}
