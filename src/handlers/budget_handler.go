package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/db"
	sqldb "monii/src/db/sql"
	"monii/src/ledger"
	"monii/src/models"
)

func CreateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		var req models.BudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create budget request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Period != models.PeriodMonthly && req.Period != models.PeriodYearly {
			http.Error(w, "period must be monthly or yearly", http.StatusBadRequest)
			return
		}
		if !req.LimitAmount.IsPositive() {
			http.Error(w, "limit amount must be positive", http.StatusBadRequest)
			return
		}
		budget := &models.Budget{
			UserID:      userID,
			CategoryID:  req.CategoryID,
			Period:      req.Period,
			LimitAmount: req.LimitAmount,
		}
		created, err := sqldb.CreateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to create budget for user %d: %v", userID, err)
			http.Error(w, "failed to create budget", http.StatusInternalServerError)
			return
		}
		db.ClearAllBudgetCaches()
		log.Printf("INFO: Created budget id %d for user %d, category %d", created.ID, userID, created.CategoryID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

// GetBudgets recalculates spending from the transaction history before
// returning, so drift in the incrementally maintained totals self-heals on
// read.
func GetBudgets(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		cacheKey := fmt.Sprintf("budgets:%d", userID)

		if cached, found := db.Cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		budgets, err := svc.RecalculateSpending(r.Context(), userID)
		if err != nil {
			log.Printf("ERROR: Failed to recalculate budgets for user %d: %v", userID, err)
			http.Error(w, "failed to get budgets", http.StatusInternalServerError)
			return
		}
		db.SetBudgetCache(cacheKey, budgets)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budgets)
	}
}

func UpdateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetIDStr := chi.URLParam(r, "budget_id")
		budgetID, err := strconv.ParseInt(budgetIDStr, 10, 64)
		if err != nil {
			log.Printf("ERROR: Invalid budget id param: %s", budgetIDStr)
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}
		var req models.BudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode update budget request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Period != models.PeriodMonthly && req.Period != models.PeriodYearly {
			http.Error(w, "period must be monthly or yearly", http.StatusBadRequest)
			return
		}
		if !req.LimitAmount.IsPositive() {
			http.Error(w, "limit amount must be positive", http.StatusBadRequest)
			return
		}
		budget := &models.Budget{
			ID:          budgetID,
			UserID:      userID,
			Period:      req.Period,
			LimitAmount: req.LimitAmount,
		}
		updated, err := sqldb.UpdateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to update budget %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "failed to update budget", http.StatusInternalServerError)
			return
		}
		db.ClearAllBudgetCaches()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetIDStr := chi.URLParam(r, "budget_id")
		budgetID, err := strconv.ParseInt(budgetIDStr, 10, 64)
		if err != nil {
			log.Printf("ERROR: Invalid budget id param: %s", budgetIDStr)
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}
		if err := sqldb.DeleteBudget(r.Context(), pool, userID, budgetID); err != nil {
			log.Printf("ERROR: Failed to delete budget %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}
		db.ClearAllBudgetCaches()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ResetMonthlyBudgets zeroes spending on every monthly budget of the user.
// Intended for period rollover.
func ResetMonthlyBudgets(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		if err := svc.ResetMonthlyBudgets(r.Context(), userID); err != nil {
			log.Printf("ERROR: Failed to reset monthly budgets for user %d: %v", userID, err)
			http.Error(w, "failed to reset budgets", http.StatusInternalServerError)
			return
		}
		db.ClearAllBudgetCaches()
		log.Printf("INFO: Reset monthly budgets for user %d", userID)
		w.WriteHeader(http.StatusNoContent)
	}
}
