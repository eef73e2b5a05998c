package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

type Transaction struct {
	ID             string          `json:"id"`
	UserID         int64           `json:"user_id"`
	AccountID      int64           `json:"account_id"`
	CategoryID     *int64          `json:"category_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"` // positive magnitude, sign implied by Type
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
	ClientIntentID *string         `json:"client_intent_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount returns the balance delta this transaction contributes:
// positive for income, negative for expense.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
