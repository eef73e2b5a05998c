package models

import "time"

// BankItem is a linked bank connection whose feed is imported through the
// ledger on sync.
type BankItem struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	AccountID   int64     `json:"account_id"` // local ledger account the feed applies to
	AccessToken string    `json:"-"`
	ItemID      string    `json:"item_id"`
	SyncCursor  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
