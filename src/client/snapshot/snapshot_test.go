package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"monii/src/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openTestCache(t *testing.T, path string) *Cache {
	t.Helper()
	c, err := Open(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")

	c := openTestCache(t, path)
	accounts := []models.Account{{ID: 1, Name: "checking", Balance: d("1000")}}
	if err := c.Put(DatasetAccounts, accounts); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestCache(t, path)
	var got []models.Account
	ok, err := reopened.Get(DatasetAccounts, &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("snapshot missing after reopen")
	}
	if len(got) != 1 || got[0].Name != "checking" || !got[0].Balance.Equal(d("1000")) {
		t.Errorf("snapshot corrupted across reopen: %+v", got)
	}
}

func TestGetFiltersExpiredAndEvicts(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "snapshots.json"))

	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	if err := c.Put(DatasetSummary, models.Summary{TotalBalance: d("500")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// 23h59m old: still fresh.
	c.now = func() time.Time { return base.Add(TTL - time.Minute) }
	var s models.Summary
	ok, err := c.Get(DatasetSummary, &s)
	if err != nil || !ok {
		t.Fatalf("fresh snapshot: ok=%v err=%v", ok, err)
	}

	// Past the TTL: treated as absent and evicted from the file.
	c.now = func() time.Time { return base.Add(TTL + time.Minute) }
	ok, err = c.Get(DatasetSummary, &s)
	if err != nil {
		t.Fatalf("expired get: %v", err)
	}
	if ok {
		t.Fatal("expired snapshot returned as fresh")
	}

	// Even at the original clock the entry is gone: eviction, not filtering.
	c.now = func() time.Time { return base }
	ok, _ = c.Get(DatasetSummary, &s)
	if ok {
		t.Error("expired snapshot was filtered but not evicted")
	}
}

func TestAccountsOverlayAppliesDeltas(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "snapshots.json"))

	accounts := []models.Account{
		{ID: 1, Name: "checking", Balance: d("1000")},
		{ID: 2, Name: "savings", Balance: d("5000")},
	}
	if err := c.Put(DatasetAccounts, accounts); err != nil {
		t.Fatalf("put: %v", err)
	}

	c.AddPendingDelta(1, d("-75"))
	c.AddPendingDelta(1, d("-25"))

	got, ok, err := c.Accounts()
	if err != nil || !ok {
		t.Fatalf("accounts: ok=%v err=%v", ok, err)
	}
	if !got[0].Balance.Equal(d("900")) {
		t.Errorf("overlaid balance = %s, want 900", got[0].Balance)
	}
	if !got[1].Balance.Equal(d("5000")) {
		t.Errorf("untouched balance = %s, want 5000", got[1].Balance)
	}
}

func TestFreshAccountsSnapshotDiscardsOverlay(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "snapshots.json"))

	if err := c.Put(DatasetAccounts, []models.Account{{ID: 1, Balance: d("1000")}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	c.AddPendingDelta(1, d("-100"))

	// The fresh snapshot already reflects every confirmed mutation; keeping
	// the overlay would double-count.
	if err := c.Put(DatasetAccounts, []models.Account{{ID: 1, Balance: d("900")}}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, ok, err := c.Accounts()
	if err != nil || !ok {
		t.Fatalf("accounts: ok=%v err=%v", ok, err)
	}
	if !got[0].Balance.Equal(d("900")) {
		t.Errorf("balance = %s, want 900 (overlay must be dropped)", got[0].Balance)
	}
}

func TestPutOtherDatasetKeepsOverlay(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "snapshots.json"))

	if err := c.Put(DatasetAccounts, []models.Account{{ID: 1, Balance: d("1000")}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	c.AddPendingDelta(1, d("-100"))

	if err := c.Put(DatasetCategories, []models.Category{{ID: 7, Name: "groceries"}}); err != nil {
		t.Fatalf("put categories: %v", err)
	}

	got, ok, err := c.Accounts()
	if err != nil || !ok {
		t.Fatalf("accounts: ok=%v err=%v", ok, err)
	}
	if !got[0].Balance.Equal(d("900")) {
		t.Errorf("balance = %s, want 900 (unrelated dataset must not drop overlay)", got[0].Balance)
	}
}

func TestGetMissingDataset(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "snapshots.json"))

	var out []models.Category
	ok, err := c.Get(DatasetCategories, &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("missing dataset reported present")
	}
}
