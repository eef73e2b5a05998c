// Package snapshot is the client's time-bounded read cache of server
// reference data: accounts, categories, and the dashboard summary. It lets
// the UI render while offline and carries a pending-delta overlay for
// optimistic balance previews.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"monii/src/models"
)

// TTL after which a snapshot is treated as absent by readers. Expired
// entries are filtered at read time and lazily evicted.
const TTL = 24 * time.Hour

const (
	DatasetAccounts   = "accounts"
	DatasetCategories = "categories"
	DatasetSummary    = "summary"
)

var ErrStorageUnavailable = errors.New("snapshot storage unavailable")

type Snapshot struct {
	Payload      json.RawMessage `json:"payload"`
	LastSyncedAt time.Time       `json:"last_synced_at"`
}

type cacheFile struct {
	Version   int                 `json:"version"`
	Snapshots map[string]Snapshot `json:"snapshots"`
}

// Cache is a single-JSON-file store of snapshots keyed by dataset name.
// Balance deltas from unconfirmed intents live only in memory: they are an
// overlay over the accounts snapshot, discarded wholesale whenever a fresh
// snapshot arrives.
type Cache struct {
	mu     sync.RWMutex
	file   *os.File
	path   string
	snap   cacheFile
	deltas map[int64]decimal.Decimal
	now    func() time.Time
}

func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	c := &Cache{file: f, path: path, deltas: map[int64]decimal.Decimal{}, now: time.Now}
	if err := c.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return c, nil
}

func (c *Cache) Close() error { return c.file.Close() }

func (c *Cache) load() error {
	info, err := c.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		c.snap = cacheFile{Version: 1, Snapshots: map[string]Snapshot{}}
		return c.flushLocked()
	}
	dec := json.NewDecoder(c.file)
	var snap cacheFile
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	if snap.Snapshots == nil {
		snap.Snapshots = map[string]Snapshot{}
	}
	c.snap = snap
	return nil
}

func (c *Cache) flushLocked() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(c.file)
	if err := enc.Encode(c.snap); err != nil {
		return err
	}
	pos, _ := c.file.Seek(0, io.SeekCurrent)
	if err := c.file.Truncate(pos); err != nil {
		return err
	}
	return c.file.Sync()
}

// Put stores a fresh snapshot of one dataset. A fresh accounts snapshot is
// server truth: the pending-delta overlay is dropped, not merged.
func (c *Cache) Put(dataset string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, hadPrev := c.snap.Snapshots[dataset]
	c.snap.Snapshots[dataset] = Snapshot{Payload: raw, LastSyncedAt: c.now()}
	if err := c.flushLocked(); err != nil {
		if hadPrev {
			c.snap.Snapshots[dataset] = prev
		} else {
			delete(c.snap.Snapshots, dataset)
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if dataset == DatasetAccounts {
		c.deltas = map[int64]decimal.Decimal{}
	}
	return nil
}

// Get unmarshals the snapshot for a dataset into out. It reports false when
// the snapshot is absent or older than the TTL; an expired entry is evicted
// on the way out.
func (c *Cache) Get(dataset string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.snap.Snapshots[dataset]
	if !ok {
		return false, nil
	}
	if c.now().Sub(s.LastSyncedAt) > TTL {
		delete(c.snap.Snapshots, dataset)
		if err := c.flushLocked(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return false, nil
	}
	if err := json.Unmarshal(s.Payload, out); err != nil {
		return false, err
	}
	return true, nil
}

// AddPendingDelta adjusts the optimistic balance preview for an account by
// the signed amount of an unconfirmed intent.
func (c *Cache) AddPendingDelta(accountID int64, delta decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas[accountID] = c.deltas[accountID].Add(delta)
}

// Accounts returns the cached accounts with the pending-delta overlay
// applied to their balances.
func (c *Cache) Accounts() ([]models.Account, bool, error) {
	var accounts []models.Account
	ok, err := c.Get(DatasetAccounts, &accounts)
	if err != nil || !ok {
		return nil, ok, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range accounts {
		if d, found := c.deltas[accounts[i].ID]; found {
			accounts[i].Balance = accounts[i].Balance.Add(d)
		}
	}
	return accounts, true, nil
}
