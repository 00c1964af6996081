package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/models"
)

// AuditStore persists finished audit entries. Entries are append-only.
type AuditStore interface {
	InsertSyncLog(ctx context.Context, entry *models.SyncLog) error
}

// AuditLogger writes one audit entry per completed sync. Re-entrant calls
// carrying the same outcome within the dedup window are suppressed so a
// double-fired completion callback cannot produce two entries.
type AuditLogger struct {
	store  AuditStore
	now    func() time.Time
	window time.Duration

	mu     sync.Mutex
	recent map[string]time.Time
}

const dedupWindow = 2 * time.Second

func NewAuditLogger(store AuditStore) *AuditLogger {
	return &AuditLogger{
		store:  store,
		now:    time.Now,
		window: dedupWindow,
		recent: make(map[string]time.Time),
	}
}

// Log records the outcome of one sync. rows supplies the per-record field
// values used to resolve display labels; it may be nil. Returns skipped=true
// when the entry was suppressed as a duplicate.
func (l *AuditLogger) Log(ctx context.Context, userId string, cs *ChangeSet, rows map[string]Row, res *SyncResult, wasSuccessful bool, errorMessage string) (*models.SyncLog, bool, error) {
	fingerprint := Fingerprint(userId, cs, res, wasSuccessful)

	l.mu.Lock()
	now := l.now()
	for fp, at := range l.recent {
		if now.Sub(at) >= l.window {
			delete(l.recent, fp)
		}
	}
	if at, ok := l.recent[fingerprint]; ok && now.Sub(at) < l.window {
		l.mu.Unlock()
		return nil, true, nil
	}
	l.recent[fingerprint] = now
	l.mu.Unlock()

	pageChanges := expandPageChanges(cs, rows)
	pageChangesJSON, err := json.Marshal(pageChanges)
	if err != nil {
		l.forget(fingerprint)
		return nil, false, fmt.Errorf("marshal page changes: %w", err)
	}

	entry := &models.SyncLog{
		UserId:          userId,
		ActionType:      models.ActionTypeHubspotSync,
		ContentType:     cs.ContentType,
		ChangeCount:     len(cs.Changes),
		SuccessCount:    res.SuccessCount,
		FailureCount:    res.FailureCount,
		WasSuccessful:   wasSuccessful,
		ErrorMessage:    errorMessage,
		PageChangesJSON: pageChangesJSON,
		Fingerprint:     fingerprint,
	}
	if err := l.store.InsertSyncLog(ctx, entry); err != nil {
		// Nothing was persisted; the next attempt must not be suppressed.
		l.forget(fingerprint)
		return nil, false, fmt.Errorf("insert sync log: %w", err)
	}
	return entry, false, nil
}

func (l *AuditLogger) forget(fingerprint string) {
	l.mu.Lock()
	delete(l.recent, fingerprint)
	l.mu.Unlock()
}

// expandPageChanges turns field changes into display rows: record label
// resolution and the "Field not set" sentinel for empty previous values.
func expandPageChanges(cs *ChangeSet, rows map[string]Row) []PageChange {
	pageChanges := make([]PageChange, 0, len(cs.Changes))
	for _, change := range cs.Changes {
		previous := change.PreviousValue
		if previous == "" {
			previous = FieldNotSet
		}
		row := rows[change.RecordId]
		pageChanges = append(pageChanges, PageChange{
			RecordId:      change.RecordId,
			RecordLabel:   DisplayLabel(row, change.RecordId),
			Field:         FriendlyFieldName(change.Field),
			PreviousValue: previous,
			NewValue:      change.NewValue,
		})
	}
	return pageChanges
}

// Fingerprint identifies one sync outcome. Two calls describing the same
// changes with the same result hash identically regardless of map order.
func Fingerprint(userId string, cs *ChangeSet, res *SyncResult, wasSuccessful bool) string {
	parts := make([]string, 0, len(cs.Changes)+3)
	for _, change := range cs.Changes {
		parts = append(parts, change.RecordId+"|"+change.Field+"|"+change.PreviousValue+"|"+change.NewValue)
	}
	sort.Strings(parts)
	parts = append(parts,
		userId,
		cs.ContentType,
		fmt.Sprintf("%d/%d/%t", res.SuccessCount, res.FailureCount, wasSuccessful),
	)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1e")))
	return hex.EncodeToString(sum[:])
}
