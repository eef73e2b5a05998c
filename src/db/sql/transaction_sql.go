package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/models"
)

func GetTransactionsForAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID int64) ([]models.Transaction, error) {
	query := `
		SELECT t.id, t.user_id, t.account_id, t.category_id, t.type, t.amount, t.description, t.date, t.client_intent_id, t.created_at
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		WHERE a.user_id = $1 AND a.id = $2
		ORDER BY t.date DESC, t.created_at DESC
	`
	rows, err := pool.Query(ctx, query, userID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Type,
			&t.Amount, &t.Description, &t.Date, &t.ClientIntentID, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// GetSummary aggregates total balance across accounts plus month-to-date
// income and expense totals.
func GetSummary(ctx context.Context, pool *pgxpool.Pool, userID int64, monthStart time.Time) (*models.Summary, error) {
	var s models.Summary

	balanceQuery := `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE user_id = $1`
	if err := pool.QueryRow(ctx, balanceQuery, userID).Scan(&s.TotalBalance); err != nil {
		return nil, err
	}

	totalsQuery := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $3), 0)
		FROM transactions
		WHERE user_id = $1 AND date >= $4
	`
	err := pool.QueryRow(ctx, totalsQuery, userID, models.TypeIncome, models.TypeExpense, monthStart).
		Scan(&s.MonthIncome, &s.MonthExpense)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
