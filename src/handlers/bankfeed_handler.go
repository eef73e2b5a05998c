package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"monii/src/db"
	sqldb "monii/src/db/sql"
	"monii/src/ledger"
	"monii/src/models"
	"monii/src/util"
)

const bankDateLayout = "2006-01-02"

func CreateLinkToken(plaidClient *plaid.APIClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"Monii",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(r.Context()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			log.Printf("ERROR: Failed to create link token for user %d: %v", userID, err)
			http.Error(w, "failed to create link token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"link_token": resp.GetLinkToken()})
	}
}

// ExchangePublicToken links a bank connection and pins it to the local
// account its feed will be applied to.
func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken string `json:"public_token"`
			AccountID   int64  `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode exchange request for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangeReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangeResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(r.Context()).
			ItemPublicTokenExchangeRequest(*exchangeReq).Execute()
		if err != nil {
			log.Printf("ERROR: Failed to exchange public token for user %d: %v", userID, err)
			http.Error(w, "failed to exchange token", http.StatusInternalServerError)
			return
		}

		item := &models.BankItem{
			UserID:      userID,
			AccountID:   req.AccountID,
			AccessToken: exchangeResp.GetAccessToken(),
			ItemID:      exchangeResp.GetItemId(),
		}
		created, err := sqldb.CreateBankItem(r.Context(), pool, item)
		if err != nil {
			log.Printf("ERROR: Failed to store bank item for user %d: %v", userID, err)
			http.Error(w, "failed to store bank item", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Linked bank item %s for user %d, account %d", created.ItemID, userID, created.AccountID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

// SyncBankTransactions pulls the bank feed for one linked item and routes
// every new transaction through the ledger. The provider transaction id is
// used as the idempotency key, so re-syncing the same page never
// double-applies a balance or budget effect.
func SyncBankTransactions(plaidClient *plaid.APIClient, pool *pgxpool.Pool, svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		itemIDStr := chi.URLParam(r, "item_id")
		itemID, err := strconv.ParseInt(itemIDStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		item, err := sqldb.GetBankItem(r.Context(), pool, userID, itemID)
		if err != nil {
			log.Printf("ERROR: Bank item %d not found for user %d: %v", itemID, userID, err)
			http.Error(w, "bank item not found", http.StatusNotFound)
			return
		}

		applied, err := syncBankItem(r.Context(), plaidClient, pool, svc, item)
		if err != nil {
			log.Printf("ERROR: Failed to sync bank item %d for user %d: %v", itemID, userID, err)
			http.Error(w, "failed to sync transactions", http.StatusInternalServerError)
			return
		}
		db.ClearLedgerCaches()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"applied": applied})
	}
}

// feedApplier is the slice of the ledger service the bank feed needs.
type feedApplier interface {
	ApplyCreate(ctx context.Context, userID int64, req models.TransactionRequest) (*models.Transaction, error)
}

func syncBankItem(ctx context.Context, plaidClient *plaid.APIClient, pool *pgxpool.Pool, svc *ledger.Service, item *models.BankItem) (int, error) {
	applied := 0
	cursor := item.SyncCursor

	for {
		request := plaid.NewTransactionsSyncRequest(item.AccessToken)
		if cursor != "" {
			request.SetCursor(cursor)
		}

		resp, _, err := plaidClient.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return applied, err
		}

		n, err := applyFeedPage(ctx, svc, item, resp.GetAdded())
		applied += n
		if err != nil {
			// Abort before the cursor advances so the next sync re-fetches
			// this page instead of silently dropping it.
			return applied, err
		}

		cursor = resp.GetNextCursor()
		if err := sqldb.UpdateSyncCursor(ctx, pool, item.ID, cursor); err != nil {
			return applied, err
		}
		if !resp.GetHasMore() {
			return applied, nil
		}
	}
}

// applyFeedPage routes one page of feed rows through the ledger. Rows the
// ledger rejects outright are skipped and logged; any other apply failure
// stops the page so it can be retried whole.
func applyFeedPage(ctx context.Context, svc feedApplier, item *models.BankItem, txns []plaid.Transaction) (int, error) {
	applied := 0
	for _, txn := range txns {
		req, err := bankTransactionRequest(item.AccountID, txn)
		if err != nil {
			log.Printf("ERROR: Skipping malformed bank transaction %s: %v", txn.GetTransactionId(), err)
			continue
		}
		if _, err := svc.ApplyCreate(ctx, item.UserID, req); err != nil {
			if feedRowRejected(err) {
				// Retrying this row can never succeed; skipping it does not
				// lose the rest of the page.
				log.Printf("ERROR: Skipping rejected bank transaction %s for user %d: %v", txn.GetTransactionId(), item.UserID, err)
				continue
			}
			return applied, fmt.Errorf("apply bank transaction %s: %w", txn.GetTransactionId(), err)
		}
		applied++
	}
	return applied, nil
}

// feedRowRejected reports whether a ledger apply failure is a rejection of
// the row itself rather than a transient storage failure.
func feedRowRejected(err error) bool {
	return errors.Is(err, ledger.ErrInvalidArgument) ||
		errors.Is(err, ledger.ErrNotFound) ||
		errors.Is(err, ledger.ErrForbidden)
}

// bankTransactionRequest maps a provider transaction onto the ledger write
// payload. Provider amounts are positive for money leaving the account.
func bankTransactionRequest(accountID int64, txn plaid.Transaction) (models.TransactionRequest, error) {
	date, err := time.Parse(bankDateLayout, txn.GetDate())
	if err != nil {
		return models.TransactionRequest{}, fmt.Errorf("parse date: %w", err)
	}

	amount := decimal.NewFromFloat(txn.GetAmount())
	txType := models.TypeExpense
	if amount.IsNegative() {
		txType = models.TypeIncome
		amount = amount.Abs()
	}

	return models.TransactionRequest{
		ClientIntentID: "bank:" + txn.GetTransactionId(),
		AccountID:      accountID,
		Type:           txType,
		Amount:         amount,
		Description:    txn.GetName(),
		Date:           date,
	}, nil
}

// BankWebhook handles provider webhooks. A TRANSACTIONS webhook triggers a
// sync of the named item, so the ledger picks up new bank activity without
// the client asking for it.
func BankWebhook(plaidClient *plaid.APIClient, pool *pgxpool.Pool, svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		headers := map[string]string{
			"Plaid-Verification": r.Header.Get("Plaid-Verification"),
		}
		ok, err := util.VerifyWebhook(r.Context(), plaidClient, body, headers)
		if err != nil || !ok {
			log.Printf("ERROR: Webhook verification failed: %v", err)
			http.Error(w, "verification failed", http.StatusUnauthorized)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		item, err := sqldb.GetBankItemByProviderID(r.Context(), pool, payload.ItemID)
		if err != nil {
			log.Printf("ERROR: Webhook for unknown bank item %s: %v", payload.ItemID, err)
			http.Error(w, "unknown item", http.StatusNotFound)
			return
		}

		applied, err := syncBankItem(r.Context(), plaidClient, pool, svc, item)
		if err != nil {
			log.Printf("ERROR: Webhook sync failed for item %s: %v", payload.ItemID, err)
			http.Error(w, "sync failed", http.StatusInternalServerError)
			return
		}
		db.ClearLedgerCaches()

		log.Printf("INFO: Webhook sync applied %d transactions for item %s", applied, payload.ItemID)
		w.WriteHeader(http.StatusOK)
	}
}
