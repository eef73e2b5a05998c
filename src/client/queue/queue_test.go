package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"monii/src/models"
)

func testReq(amount string) models.TransactionRequest {
	return models.TransactionRequest{
		AccountID:   1,
		Type:        models.TypeExpense,
		Amount:      decimal.RequireFromString(amount),
		Description: "coffee",
		Date:        time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
}

func openTestQueue(t *testing.T, path string) *Queue {
	t.Helper()
	q, err := Open(path)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	q := openTestQueue(t, path)
	first := NewIntent(KindCreateTransaction, "", testReq("10"))
	second := NewIntent(KindDeleteTransaction, "tx-42", testReq("20"))
	if err := q.Enqueue(first); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(second); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.IncrementRetry(first.ID); err != nil {
		t.Fatalf("increment retry: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestQueue(t, path)
	intents, err := reopened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents after reopen, got %d", len(intents))
	}
	if intents[0].ID != first.ID || intents[1].ID != second.ID {
		t.Errorf("order lost across reopen: got %s, %s", intents[0].ID, intents[1].ID)
	}
	if intents[0].RetryCount != 1 {
		t.Errorf("retry count lost across reopen: got %d, want 1", intents[0].RetryCount)
	}
	if intents[1].TransactionID != "tx-42" {
		t.Errorf("transaction id lost across reopen: got %q", intents[1].TransactionID)
	}
	if !intents[0].Payload.Amount.Equal(decimal.RequireFromString("10")) {
		t.Errorf("payload amount lost across reopen: got %s", intents[0].Payload.Amount)
	}
}

func TestListIsOldestFirstAndCopies(t *testing.T) {
	q := openTestQueue(t, filepath.Join(t.TempDir(), "queue.json"))

	var ids []string
	for i := 0; i < 5; i++ {
		intent := NewIntent(KindCreateTransaction, "", testReq("1"))
		if err := q.Enqueue(intent); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, intent.ID)
	}

	intents, err := q.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, intent := range intents {
		if intent.ID != ids[i] {
			t.Fatalf("position %d: got %s, want %s", i, intent.ID, ids[i])
		}
	}

	// Mutating the returned slice must not touch queue state.
	intents[0].RetryCount = 99
	fresh, _ := q.List()
	if fresh[0].RetryCount != 0 {
		t.Errorf("List leaked internal state: retry count %d", fresh[0].RetryCount)
	}
}

func TestRemove(t *testing.T) {
	q := openTestQueue(t, filepath.Join(t.TempDir(), "queue.json"))

	a := NewIntent(KindCreateTransaction, "", testReq("1"))
	b := NewIntent(KindCreateTransaction, "", testReq("2"))
	for _, intent := range []PendingIntent{a, b} {
		if err := q.Enqueue(intent); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := q.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
	intents, _ := q.List()
	if intents[0].ID != b.ID {
		t.Errorf("wrong intent removed")
	}

	// Removing an already-removed id is a no-op, not an error.
	if err := q.Remove(a.ID); err != nil {
		t.Errorf("second remove returned error: %v", err)
	}
	if err := q.Remove("never-existed"); err != nil {
		t.Errorf("removing unknown id returned error: %v", err)
	}
}

func TestIncrementRetry(t *testing.T) {
	q := openTestQueue(t, filepath.Join(t.TempDir(), "queue.json"))

	intent := NewIntent(KindUpdateTransaction, "tx-1", testReq("5"))
	if err := q.Enqueue(intent); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := q.IncrementRetry(intent.ID)
		if err != nil {
			t.Fatalf("increment retry: %v", err)
		}
		if got != want {
			t.Errorf("retry count = %d, want %d", got, want)
		}
	}

	got, err := q.IncrementRetry("unknown-id")
	if err != nil {
		t.Fatalf("increment retry for unknown id: %v", err)
	}
	if got != 0 {
		t.Errorf("unknown id retry count = %d, want 0", got)
	}
}

func TestIntentAge(t *testing.T) {
	intent := NewIntent(KindCreateTransaction, "", testReq("1"))
	intent.CreatedAt = time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)

	now := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	if got := intent.Age(now); got != 25*time.Hour {
		t.Errorf("age = %s, want 25h", got)
	}
}
