package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

// RecordUpdater pushes one record's confirmed field values to the external
// system.
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, contentType string, recordId string, fields map[string]string) error
}

type DispatchOptions struct {
	Concurrency      int
	PerRecordTimeout time.Duration
}

func (o DispatchOptions) withDefaults() DispatchOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = utils.IntFromEnv("SYNC_DISPATCH_CONCURRENCY", 5)
	}
	if o.PerRecordTimeout <= 0 {
		o.PerRecordTimeout = 30 * time.Second
	}
	return o
}

// Dispatch applies a confirmed change set record by record. One record's
// failure never aborts the batch; the error is recorded and the rest
// proceed. Returns only after every launched call has settled. When ctx is
// cancelled no new records are launched and the remainder are recorded as
// failed.
func Dispatch(ctx context.Context, updater RecordUpdater, cs *ChangeSet, opts DispatchOptions) *SyncResult {
	opts = opts.withDefaults()

	fieldsByRecord := make(map[string]map[string]string)
	for _, change := range cs.Changes {
		if fieldsByRecord[change.RecordId] == nil {
			fieldsByRecord[change.RecordId] = make(map[string]string)
		}
		fieldsByRecord[change.RecordId][change.Field] = change.NewValue
	}
	recordIds := make([]string, 0, len(fieldsByRecord))
	for recordId := range fieldsByRecord {
		recordIds = append(recordIds, recordId)
	}
	sort.Strings(recordIds)

	result := &SyncResult{PerRecordErrors: make(map[string]string)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, opts.Concurrency)
	)

	for _, recordId := range recordIds {
		if ctx.Err() != nil {
			mu.Lock()
			result.FailureCount++
			result.PerRecordErrors[recordId] = "sync canceled before dispatch"
			mu.Unlock()
			continue
		}
		select {
		case <-ctx.Done():
			mu.Lock()
			result.FailureCount++
			result.PerRecordErrors[recordId] = "sync canceled before dispatch"
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(recordId string, fields map[string]string) {
			defer wg.Done()
			defer func() { <-sem }()

			// launched calls run to completion even if ctx is cancelled
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.PerRecordTimeout)
			defer cancel()

			err := updater.UpdateRecord(callCtx, cs.ContentType, recordId, fields)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailureCount++
				result.PerRecordErrors[recordId] = err.Error()
				return
			}
			result.SuccessCount++
		}(recordId, fieldsByRecord[recordId])
	}

	wg.Wait()
	return result
}
