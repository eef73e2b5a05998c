package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/models"
)

func GetAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Account, error) {
	query := `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM accounts WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func GetCategoriesForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Category, error) {
	query := `SELECT id, user_id, name FROM categories WHERE user_id = $1 ORDER BY name ASC`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
