package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
)

type fakeAuditStore struct {
	mu       sync.Mutex
	entries  []*models.SyncLog
	failNext int
}

func (s *fakeAuditStore) InsertSyncLog(ctx context.Context, entry *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("insert failed")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func auditFixture() (*ChangeSet, map[string]Row, *SyncResult) {
	cs := &ChangeSet{
		ContentType: "landing-pages",
		Changes: []FieldChange{
			{RecordId: "189234", Field: "htmlTitle", PreviousValue: "Pricing | Acme", NewValue: "Pricing Plans | Acme"},
			{RecordId: "189235", Field: "metaDescription", PreviousValue: "", NewValue: "Fresh description"},
		},
	}
	rows := map[string]Row{
		"189234": {"id": "189234", "name": "Pricing"},
		"189235": {"id": "189235"},
	}
	res := &SyncResult{SuccessCount: 2, PerRecordErrors: map[string]string{}}
	return cs, rows, res
}

func newTestAuditLogger(store AuditStore, clock *time.Time) *AuditLogger {
	logger := NewAuditLogger(store)
	logger.now = func() time.Time { return *clock }
	return logger
}

func TestAuditLogger_WritesEntryWithPageChanges(t *testing.T) {
	store := &fakeAuditStore{}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	logger := newTestAuditLogger(store, &clock)
	cs, rows, res := auditFixture()

	entry, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, "")
	if err != nil || skipped {
		t.Fatalf("Log: err=%v skipped=%v", err, skipped)
	}
	if entry.ChangeCount != 2 || !entry.WasSuccessful {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	var pageChanges []PageChange
	if err := json.Unmarshal(entry.PageChangesJSON, &pageChanges); err != nil {
		t.Fatalf("decode page changes: %v", err)
	}
	if pageChanges[0].RecordLabel != "Pricing" {
		t.Fatalf("label should come from the row name, got %q", pageChanges[0].RecordLabel)
	}
	if pageChanges[0].Field != "Page Title" {
		t.Fatalf("field should be friendly-named, got %q", pageChanges[0].Field)
	}
	if pageChanges[1].RecordLabel != "Record 189235" {
		t.Fatalf("label should fall back to the record id, got %q", pageChanges[1].RecordLabel)
	}
	if pageChanges[1].PreviousValue != FieldNotSet {
		t.Fatalf("empty previous value must display as %q, got %q", FieldNotSet, pageChanges[1].PreviousValue)
	}
}

func TestAuditLogger_DuplicateWithinWindowSuppressed(t *testing.T) {
	store := &fakeAuditStore{}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	logger := newTestAuditLogger(store, &clock)
	cs, rows, res := auditFixture()

	if _, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, ""); err != nil || skipped {
		t.Fatalf("first log: err=%v skipped=%v", err, skipped)
	}

	clock = clock.Add(1500 * time.Millisecond)
	_, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, "")
	if err != nil {
		t.Fatalf("second log: %v", err)
	}
	if !skipped {
		t.Fatal("identical outcome 1.5s later must be suppressed")
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected a single persisted entry, got %d", len(store.entries))
	}
}

func TestAuditLogger_DuplicateAfterWindowLogged(t *testing.T) {
	store := &fakeAuditStore{}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	logger := newTestAuditLogger(store, &clock)
	cs, rows, res := auditFixture()

	if _, _, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, ""); err != nil {
		t.Fatalf("first log: %v", err)
	}

	clock = clock.Add(2 * time.Second)
	_, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, "")
	if err != nil {
		t.Fatalf("second log: %v", err)
	}
	if skipped {
		t.Fatal("an identical outcome at exactly the window boundary is a new operation")
	}
	if len(store.entries) != 2 {
		t.Fatalf("expected two persisted entries, got %d", len(store.entries))
	}
}

func TestAuditLogger_DifferentOutcomeNotSuppressed(t *testing.T) {
	store := &fakeAuditStore{}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	logger := newTestAuditLogger(store, &clock)
	cs, rows, res := auditFixture()

	if _, _, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, ""); err != nil {
		t.Fatalf("first log: %v", err)
	}

	failed := &SyncResult{SuccessCount: 1, FailureCount: 1, PerRecordErrors: map[string]string{"189235": "boom"}}
	_, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, failed, false, "1 of 2 records failed")
	if err != nil {
		t.Fatalf("second log: %v", err)
	}
	if skipped {
		t.Fatal("a different outcome within the window is not a duplicate")
	}
}

func TestAuditLogger_FailedInsertDoesNotSuppressRetry(t *testing.T) {
	store := &fakeAuditStore{failNext: 1}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	logger := newTestAuditLogger(store, &clock)
	cs, rows, res := auditFixture()

	if _, _, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, ""); err == nil {
		t.Fatal("first log should fail")
	}
	if len(store.entries) != 0 {
		t.Fatalf("nothing should be persisted after a failed insert, got %d", len(store.entries))
	}

	clock = clock.Add(500 * time.Millisecond)
	_, skipped, err := logger.Log(context.Background(), "u-1", cs, rows, res, true, "")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if skipped {
		t.Fatal("a retry after a failed insert must not be suppressed")
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected exactly one persisted entry, got %d", len(store.entries))
	}
}

func TestFingerprint_StableAcrossOrdering(t *testing.T) {
	res := &SyncResult{SuccessCount: 2}
	a := &ChangeSet{ContentType: "landing-pages", Changes: []FieldChange{
		{RecordId: "1", Field: "name", NewValue: "X"},
		{RecordId: "2", Field: "name", NewValue: "Y"},
	}}
	b := &ChangeSet{ContentType: "landing-pages", Changes: []FieldChange{
		{RecordId: "2", Field: "name", NewValue: "Y"},
		{RecordId: "1", Field: "name", NewValue: "X"},
	}}
	if Fingerprint("u-1", a, res, true) != Fingerprint("u-1", b, res, true) {
		t.Fatal("fingerprint must not depend on change ordering")
	}
	if Fingerprint("u-1", a, res, true) == Fingerprint("u-2", a, res, true) {
		t.Fatal("fingerprint must differ across users")
	}

	c := &ChangeSet{ContentType: "landing-pages", Changes: []FieldChange{
		{RecordId: "1", Field: "name", PreviousValue: "W", NewValue: "X"},
		{RecordId: "2", Field: "name", NewValue: "Y"},
	}}
	if Fingerprint("u-1", a, res, true) == Fingerprint("u-1", c, res, true) {
		t.Fatal("fingerprint must differ when only the previous value differs")
	}
}
