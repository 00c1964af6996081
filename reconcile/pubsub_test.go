package reconcile

import (
	"errors"
	"fmt"
	"testing"
)

func TestPushStatusForError(t *testing.T) {
	if got := pushStatusForError(nil); got != 204 {
		t.Fatalf("clean run: got %d", got)
	}
	if got := pushStatusForError(errors.New("boom")); got != 204 {
		t.Fatalf("hard failure must not request redelivery, got %d", got)
	}
	if got := pushStatusForError(ErrIdempotencyInProgress); got != 409 {
		t.Fatalf("in-progress run must request redelivery, got %d", got)
	}
	wrapped := fmt.Errorf("begin idempotency: %w", ErrIdempotencyInProgress)
	if got := pushStatusForError(wrapped); got != 409 {
		t.Fatalf("wrapped in-progress error must request redelivery, got %d", got)
	}
}
