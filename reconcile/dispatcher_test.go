package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeUpdater struct {
	mu       sync.Mutex
	calls    map[string]map[string]string
	failIds  map[string]error
	inFlight int
	maxSeen  int
}

func newFakeUpdater() *fakeUpdater {
	return &fakeUpdater{calls: map[string]map[string]string{}, failIds: map[string]error{}}
}

func (u *fakeUpdater) UpdateRecord(ctx context.Context, contentType, recordId string, fields map[string]string) error {
	u.mu.Lock()
	u.inFlight++
	if u.inFlight > u.maxSeen {
		u.maxSeen = u.inFlight
	}
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.inFlight--
		u.mu.Unlock()
	}()

	if err, ok := u.failIds[recordId]; ok {
		return err
	}

	u.mu.Lock()
	u.calls[recordId] = fields
	u.mu.Unlock()
	return nil
}

func changeSetForRecords(ids ...string) *ChangeSet {
	cs := &ChangeSet{ContentType: "landing-pages"}
	for _, id := range ids {
		cs.Changes = append(cs.Changes, FieldChange{RecordId: id, Field: "htmlTitle", NewValue: "Title " + id})
	}
	return cs
}

func TestDispatch_AllSucceed(t *testing.T) {
	updater := newFakeUpdater()
	cs := changeSetForRecords("1", "2", "3")

	res := Dispatch(context.Background(), updater, cs, DispatchOptions{Concurrency: 2})
	if res.SuccessCount != 3 || res.FailureCount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(updater.calls) != 3 {
		t.Fatalf("expected 3 update calls, got %d", len(updater.calls))
	}
}

func TestDispatch_OneFailureDoesNotAbortBatch(t *testing.T) {
	updater := newFakeUpdater()
	updater.failIds["2"] = errors.New("boom")
	cs := changeSetForRecords("1", "2", "3")

	res := Dispatch(context.Background(), updater, cs, DispatchOptions{Concurrency: 1})
	if res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Fatalf("expected 2/1, got %+v", res)
	}
	if res.PerRecordErrors["2"] != "boom" {
		t.Fatalf("expected per-record error for 2, got %v", res.PerRecordErrors)
	}
	if _, ok := updater.calls["3"]; !ok {
		t.Fatal("records after the failure must still be dispatched")
	}
}

func TestDispatch_FieldsGroupedPerRecord(t *testing.T) {
	updater := newFakeUpdater()
	cs := &ChangeSet{
		ContentType: "landing-pages",
		Changes: []FieldChange{
			{RecordId: "1", Field: "htmlTitle", NewValue: "New Title"},
			{RecordId: "1", Field: "metaDescription", NewValue: "New Description"},
		},
	}

	res := Dispatch(context.Background(), updater, cs, DispatchOptions{})
	if res.SuccessCount != 1 {
		t.Fatalf("two field changes on one record are one update, got %+v", res)
	}
	fields := updater.calls["1"]
	if fields["htmlTitle"] != "New Title" || fields["metaDescription"] != "New Description" {
		t.Fatalf("unexpected payload: %v", fields)
	}
}

func TestDispatch_ConcurrencyBounded(t *testing.T) {
	updater := newFakeUpdater()
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, string(rune('a'+i)))
	}
	cs := changeSetForRecords(ids...)

	Dispatch(context.Background(), updater, cs, DispatchOptions{Concurrency: 4})
	if updater.maxSeen > 4 {
		t.Fatalf("observed %d concurrent calls, limit is 4", updater.maxSeen)
	}
}

func TestDispatch_CancelledContextFailsRemainder(t *testing.T) {
	updater := newFakeUpdater()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Dispatch(ctx, updater, changeSetForRecords("1", "2"), DispatchOptions{Concurrency: 1})
	if res.FailureCount != 2 {
		t.Fatalf("cancelled dispatch must record the remainder as failed, got %+v", res)
	}
}
