package handlers

import (
	"encoding/json"
	"errors"
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

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ledger.ErrInvalidArgument):
		http.Error(w, "invalid transaction", http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// CreateTransaction applies a transaction write through the ledger. The
// client intent id (X-Intent-Id header or client_intent_id body field) makes
// replays from the offline queue idempotent.
func CreateTransaction(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req models.TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create transaction request for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if hdr := r.Header.Get("X-Intent-Id"); hdr != "" {
			req.ClientIntentID = hdr
		}

		created, err := svc.ApplyCreate(r.Context(), userID, req)
		if err != nil {
			log.Printf("ERROR: Failed to apply transaction for user %d (intent %s): %v", userID, req.ClientIntentID, err)
			writeLedgerError(w, err)
			return
		}
		db.ClearLedgerCaches()

		log.Printf("INFO: Applied transaction %s for user %d, account %d", created.ID, userID, created.AccountID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func UpdateTransaction(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		transactionID := chi.URLParam(r, "transaction_id")

		var req models.TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode update transaction request for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		updated, err := svc.ApplyUpdate(r.Context(), userID, transactionID, req)
		if err != nil {
			log.Printf("ERROR: Failed to update transaction %s for user %d: %v", transactionID, userID, err)
			writeLedgerError(w, err)
			return
		}
		db.ClearLedgerCaches()

		log.Printf("INFO: Updated transaction %s for user %d", transactionID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteTransaction(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		transactionID := chi.URLParam(r, "transaction_id")

		if err := svc.ApplyDelete(r.Context(), userID, transactionID); err != nil {
			log.Printf("ERROR: Failed to delete transaction %s for user %d: %v", transactionID, userID, err)
			writeLedgerError(w, err)
			return
		}
		db.ClearLedgerCaches()

		log.Printf("INFO: Deleted transaction %s for user %d", transactionID, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetTransactions(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountIDStr := r.URL.Query().Get("account_id")
		accountID, err := strconv.ParseInt(accountIDStr, 10, 64)
		if err != nil {
			log.Printf("ERROR: Invalid account id param: %s", accountIDStr)
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		transactions, err := sqldb.GetTransactionsForAccount(r.Context(), pool, userID, accountID)
		if err != nil {
			log.Printf("ERROR: Failed to get transactions for user %d, account %d: %v", userID, accountID, err)
			http.Error(w, "failed to get transactions", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transactions)
	}
}
