package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/models"
)

func CreateBankItem(ctx context.Context, pool *pgxpool.Pool, item *models.BankItem) (*models.BankItem, error) {
	query := `
		INSERT INTO bank_items (user_id, account_id, access_token, item_id, sync_cursor)
		VALUES ($1, $2, $3, $4, '')
		RETURNING id, user_id, account_id, access_token, item_id, sync_cursor, created_at
	`
	var b models.BankItem
	err := pool.QueryRow(ctx, query, item.UserID, item.AccountID, item.AccessToken, item.ItemID).
		Scan(&b.ID, &b.UserID, &b.AccountID, &b.AccessToken, &b.ItemID, &b.SyncCursor, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func GetBankItem(ctx context.Context, pool *pgxpool.Pool, userID, id int64) (*models.BankItem, error) {
	query := `
		SELECT id, user_id, account_id, access_token, item_id, sync_cursor, created_at
		FROM bank_items WHERE id = $1 AND user_id = $2
	`
	var b models.BankItem
	err := pool.QueryRow(ctx, query, id, userID).
		Scan(&b.ID, &b.UserID, &b.AccountID, &b.AccessToken, &b.ItemID, &b.SyncCursor, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func GetBankItemByProviderID(ctx context.Context, pool *pgxpool.Pool, providerItemID string) (*models.BankItem, error) {
	query := `
		SELECT id, user_id, account_id, access_token, item_id, sync_cursor, created_at
		FROM bank_items WHERE item_id = $1
	`
	var b models.BankItem
	err := pool.QueryRow(ctx, query, providerItemID).
		Scan(&b.ID, &b.UserID, &b.AccountID, &b.AccessToken, &b.ItemID, &b.SyncCursor, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func UpdateSyncCursor(ctx context.Context, pool *pgxpool.Pool, id int64, cursor string) error {
	query := `UPDATE bank_items SET sync_cursor = $1 WHERE id = $2`
	_, err := pool.Exec(ctx, query, cursor, id)
	return err
}
