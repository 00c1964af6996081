package reconcile

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingExport means no snapshot exists for the user and content
	// type. An export must run before an import can be reconciled.
	ErrNoMatchingExport = errors.New("no matching export found, export this content type before importing")

	// ErrSourceMismatch means a snapshot exists but was captured from a
	// different file or sheet tab than the import claims.
	ErrSourceMismatch = errors.New("import source does not match the last export source")
)

// SnapshotStore is the persistence surface the gate and detector need.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, userId string, contentType string) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot) (uint, error)
}

// ValidateImportSource checks that the claimed import source matches the
// most recent export baseline for the content type. Returns the matched
// snapshot alongside its summary so callers do not re-read it for change
// detection.
func ValidateImportSource(ctx context.Context, store SnapshotStore, userId string, contentType string, key SourceKey) (*ExportDetails, *Snapshot, error) {
	snap, err := store.LatestSnapshot(ctx, userId, contentType)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil, ErrNoMatchingExport
	}
	if !snap.SourceKey.Matches(key) {
		return nil, nil, fmt.Errorf("%w: exported from %s, import claims %s", ErrSourceMismatch, snap.SourceKey, key)
	}
	details := &ExportDetails{
		SnapshotId:  snap.ID,
		ContentType: snap.ContentType,
		SourceKey:   snap.SourceKey,
		RowCount:    len(snap.Rows),
		CapturedAt:  snap.CapturedAt,
	}
	return details, snap, nil
}
