package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"monii/src/ledger"
	"monii/src/models"
)

type fakeFeedApplier struct {
	calls []string
	errs  map[string]error
}

func (f *fakeFeedApplier) ApplyCreate(_ context.Context, _ int64, req models.TransactionRequest) (*models.Transaction, error) {
	f.calls = append(f.calls, req.ClientIntentID)
	if err, ok := f.errs[req.ClientIntentID]; ok {
		return nil, err
	}
	return &models.Transaction{ID: "srv-" + req.ClientIntentID}, nil
}

func feedTxn(id string, amount float64, date string) plaid.Transaction {
	var txn plaid.Transaction
	txn.SetTransactionId(id)
	txn.SetAmount(amount)
	txn.SetDate(date)
	txn.SetName("PROVIDER ROW " + id)
	return txn
}

func testBankItem() *models.BankItem {
	return &models.BankItem{ID: 1, UserID: 1, AccountID: 10}
}

func TestApplyFeedPageSkipsRejectedRows(t *testing.T) {
	applier := &fakeFeedApplier{errs: map[string]error{
		"bank:t2": ledger.ErrInvalidArgument,
	}}
	page := []plaid.Transaction{
		feedTxn("t1", 12.50, "2024-06-10"),
		feedTxn("t2", 3.00, "2024-06-11"),
		feedTxn("t3", 7.25, "2024-06-12"),
	}

	applied, err := applyFeedPage(context.Background(), applier, testBankItem(), page)
	if err != nil {
		t.Fatalf("apply page: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	if len(applier.calls) != 3 {
		t.Errorf("a rejected row stalled the page: %d calls", len(applier.calls))
	}
}

func TestApplyFeedPageStopsOnTransientFailure(t *testing.T) {
	applier := &fakeFeedApplier{errs: map[string]error{
		"bank:t2": errors.New("connection reset"),
	}}
	page := []plaid.Transaction{
		feedTxn("t1", 12.50, "2024-06-10"),
		feedTxn("t2", 3.00, "2024-06-11"),
		feedTxn("t3", 7.25, "2024-06-12"),
	}

	applied, err := applyFeedPage(context.Background(), applier, testBankItem(), page)
	if err == nil {
		t.Fatal("expected the page to fail on a transient apply error")
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	// The page stops where it failed so a retry re-fetches it whole; the
	// rows behind the failure are never half-consumed.
	if len(applier.calls) != 2 {
		t.Errorf("expected 2 calls before aborting, got %d", len(applier.calls))
	}
}

func TestApplyFeedPageSkipsMalformedRows(t *testing.T) {
	applier := &fakeFeedApplier{}
	page := []plaid.Transaction{
		feedTxn("t1", 12.50, "not-a-date"),
		feedTxn("t2", 3.00, "2024-06-11"),
	}

	applied, err := applyFeedPage(context.Background(), applier, testBankItem(), page)
	if err != nil {
		t.Fatalf("apply page: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if len(applier.calls) != 1 || applier.calls[0] != "bank:t2" {
		t.Errorf("unexpected applier calls: %v", applier.calls)
	}
}

func TestBankTransactionRequestMapping(t *testing.T) {
	expense, err := bankTransactionRequest(10, feedTxn("t1", 12.50, "2024-06-10"))
	if err != nil {
		t.Fatalf("map expense: %v", err)
	}
	if expense.ClientIntentID != "bank:t1" {
		t.Errorf("intent id = %q, want bank:t1", expense.ClientIntentID)
	}
	if expense.Type != models.TypeExpense || !expense.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expense mapped to %s %s", expense.Type, expense.Amount)
	}

	// Negative provider amounts are money entering the account.
	income, err := bankTransactionRequest(10, feedTxn("t2", -100.00, "2024-06-11"))
	if err != nil {
		t.Fatalf("map income: %v", err)
	}
	if income.Type != models.TypeIncome || !income.Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("income mapped to %s %s", income.Type, income.Amount)
	}
}
