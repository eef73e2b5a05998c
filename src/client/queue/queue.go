// Package queue is the durable local store of pending write-intents
// recorded while offline (or optimistically before server confirmation).
// Intents survive process restart and are replayed in creation order.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"monii/src/models"
)

// ErrStorageUnavailable wraps any failure of the underlying durable store.
// Callers must treat it as recoverable and must not assume the queue is
// empty.
var ErrStorageUnavailable = errors.New("queue storage unavailable")

type Kind string

const (
	KindCreateTransaction Kind = "create_transaction"
	KindUpdateTransaction Kind = "update_transaction"
	KindDeleteTransaction Kind = "delete_transaction"
)

// PendingIntent is one not-yet-confirmed ledger mutation. ID is client
// generated and doubles as the server-side idempotency key. The payload
// carries everything needed to replay the operation without re-reading
// other entities.
type PendingIntent struct {
	ID            string                    `json:"id"`
	Kind          Kind                      `json:"kind"`
	TransactionID string                    `json:"transaction_id,omitempty"` // target of update/delete
	Payload       models.TransactionRequest `json:"payload"`
	CreatedAt     time.Time                 `json:"created_at"`
	RetryCount    int                       `json:"retry_count"`
}

// NewIntent builds an intent with a fresh id and creation timestamp.
func NewIntent(kind Kind, transactionID string, payload models.TransactionRequest) PendingIntent {
	return PendingIntent{
		ID:            uuid.NewString(),
		Kind:          kind,
		TransactionID: transactionID,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

// Age returns how long the intent has been waiting.
func (i PendingIntent) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

type queueFile struct {
	Version int             `json:"version"`
	Intents []PendingIntent `json:"intents"`
}

// Queue is a single-JSON-file durable FIFO. Only the queue mutates its
// intents; consumers get copies.
type Queue struct {
	mu   sync.RWMutex
	file *os.File
	path string
	snap queueFile
}

func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	q := &Queue{file: f, path: path}
	if err := q.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return q, nil
}

func (q *Queue) Close() error { return q.file.Close() }

func (q *Queue) load() error {
	info, err := q.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		q.snap = queueFile{Version: 1}
		return q.flushLocked()
	}
	dec := json.NewDecoder(q.file)
	var snap queueFile
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	q.snap = snap
	return nil
}

func (q *Queue) flushLocked() error {
	if _, err := q.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(q.file)
	if err := enc.Encode(q.snap); err != nil {
		return err
	}
	// truncate in case new content is shorter
	pos, _ := q.file.Seek(0, io.SeekCurrent)
	if err := q.file.Truncate(pos); err != nil {
		return err
	}
	return q.file.Sync()
}

// Enqueue durably appends an intent; it returns only once persisted.
func (q *Queue) Enqueue(intent PendingIntent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.snap.Intents = append(q.snap.Intents, intent)
	if err := q.flushLocked(); err != nil {
		q.snap.Intents = q.snap.Intents[:len(q.snap.Intents)-1]
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// List returns every pending intent, oldest first.
func (q *Queue) List() ([]PendingIntent, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]PendingIntent, len(q.snap.Intents))
	copy(out, q.snap.Intents)
	return out, nil
}

// Len returns the number of queued intents.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.snap.Intents)
}

// Remove deletes one intent by id. Removing an unknown id is not an error.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i := range q.snap.Intents {
		if q.snap.Intents[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	removed := q.snap.Intents[idx]
	q.snap.Intents = append(q.snap.Intents[:idx], q.snap.Intents[idx+1:]...)
	if err := q.flushLocked(); err != nil {
		q.snap.Intents = append(q.snap.Intents[:idx], append([]PendingIntent{removed}, q.snap.Intents[idx:]...)...)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// IncrementRetry bumps the retry counter for one intent and returns the new
// count. Unknown ids return 0 without error; the intent may have been
// removed by a concurrent resolution.
func (q *Queue) IncrementRetry(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.snap.Intents {
		if q.snap.Intents[i].ID == id {
			q.snap.Intents[i].RetryCount++
			if err := q.flushLocked(); err != nil {
				q.snap.Intents[i].RetryCount--
				return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
			return q.snap.Intents[i].RetryCount, nil
		}
	}
	return 0, nil
}
