package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/db"
	sqldb "monii/src/db/sql"
	"monii/src/models"
)

// These endpoints feed the client-side snapshot cache: accounts, categories
// and the dashboard summary are what the UI renders while offline.

func GetAccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		cacheKey := fmt.Sprintf("accounts:%d", userID)

		if cached, found := db.Cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		accounts, err := sqldb.GetAccountsForUser(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get accounts for user %d: %v", userID, err)
			http.Error(w, "failed to get accounts", http.StatusInternalServerError)
			return
		}
		db.SetAccountCache(cacheKey, accounts)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accounts)
	}
}

func GetCategories(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		categories, err := sqldb.GetCategoriesForUser(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get categories for user %d: %v", userID, err)
			http.Error(w, "failed to get categories", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(categories)
	}
}

func GetSummary(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		cacheKey := fmt.Sprintf("summary:%d", userID)

		if cached, found := db.Cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		now := time.Now()
		monthStart := models.PeriodStart(models.PeriodMonthly, now)
		summary, err := sqldb.GetSummary(r.Context(), pool, userID, monthStart)
		if err != nil {
			log.Printf("ERROR: Failed to get summary for user %d: %v", userID, err)
			http.Error(w, "failed to get summary", http.StatusInternalServerError)
			return
		}
		db.SetSummaryCache(cacheKey, summary)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}
