package db

import (
	"log"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Cache keys are tracked per dataset so that a ledger write can clear every
// cached read it may have invalidated (balances, budgets, summaries) in one
// call.
var (
	Cache           *ristretto.Cache
	BudgetCacheKeys = struct {
		sync.RWMutex
		m map[string]struct{}
	}{m: make(map[string]struct{})}
	AccountCacheKeys = struct {
		sync.RWMutex
		m map[string]struct{}
	}{m: make(map[string]struct{})}
	SummaryCacheKeys = struct {
		sync.RWMutex
		m map[string]struct{}
	}{m: make(map[string]struct{})}
)

func InitCache() {
	var err error
	Cache, err = ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		log.Fatalf("failed to initialize cache: %v", err)
	}
}

// Budget cache functions
func SetBudgetCache(cacheKey string, value interface{}) {
	BudgetCacheKeys.Lock()
	BudgetCacheKeys.m[cacheKey] = struct{}{}
	BudgetCacheKeys.Unlock()
	Cache.Set(cacheKey, value, 1)
}

func ClearAllBudgetCaches() {
	BudgetCacheKeys.Lock()
	for key := range BudgetCacheKeys.m {
		Cache.Del(key)
	}
	BudgetCacheKeys.m = make(map[string]struct{})
	BudgetCacheKeys.Unlock()
}

// Account cache functions
func SetAccountCache(cacheKey string, value interface{}) {
	AccountCacheKeys.Lock()
	AccountCacheKeys.m[cacheKey] = struct{}{}
	AccountCacheKeys.Unlock()
	Cache.Set(cacheKey, value, 1)
}

func ClearAllAccountCaches() {
	AccountCacheKeys.Lock()
	for key := range AccountCacheKeys.m {
		Cache.Del(key)
	}
	AccountCacheKeys.m = make(map[string]struct{})
	AccountCacheKeys.Unlock()
}

// Summary cache functions
func SetSummaryCache(cacheKey string, value interface{}) {
	SummaryCacheKeys.Lock()
	SummaryCacheKeys.m[cacheKey] = struct{}{}
	SummaryCacheKeys.Unlock()
	Cache.Set(cacheKey, value, 1)
}

func ClearAllSummaryCaches() {
	SummaryCacheKeys.Lock()
	for key := range SummaryCacheKeys.m {
		Cache.Del(key)
	}
	SummaryCacheKeys.m = make(map[string]struct{})
	SummaryCacheKeys.Unlock()
}

// ClearLedgerCaches drops every cached read affected by a ledger mutation.
func ClearLedgerCaches() {
	ClearAllBudgetCaches()
	ClearAllAccountCaches()
	ClearAllSummaryCaches()
}
