package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// TransactionRequest is the payload of a transaction write, identical in
// shape whether it is sent directly while online or replayed from the
// offline queue. ClientIntentID is the client-generated idempotency key.
type TransactionRequest struct {
	ClientIntentID string          `json:"client_intent_id,omitempty"`
	AccountID      int64           `json:"account_id"`
	CategoryID     *int64          `json:"category_id,omitempty"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
}

type BudgetRequest struct {
	CategoryID  int64           `json:"category_id"`
	Period      string          `json:"period"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
}
