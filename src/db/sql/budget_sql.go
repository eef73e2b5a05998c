package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/models"
)

func CreateBudget(ctx context.Context, pool *pgxpool.Pool, budget *models.Budget) (*models.Budget, error) {
	query := `
		INSERT INTO budgets (user_id, category_id, period, limit_amount, current_spending)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, user_id, category_id, period, limit_amount, current_spending, created_at, updated_at
	`
	var b models.Budget
	err := pool.QueryRow(ctx, query, budget.UserID, budget.CategoryID, budget.Period, budget.LimitAmount).
		Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Period, &b.LimitAmount, &b.CurrentSpending, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func UpdateBudget(ctx context.Context, pool *pgxpool.Pool, budget *models.Budget) (*models.Budget, error) {
	query := `
		UPDATE budgets
		SET period = $1, limit_amount = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING id, user_id, category_id, period, limit_amount, current_spending, created_at, updated_at
	`
	var b models.Budget
	err := pool.QueryRow(ctx, query, budget.Period, budget.LimitAmount, budget.ID, budget.UserID).
		Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Period, &b.LimitAmount, &b.CurrentSpending, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func DeleteBudget(ctx context.Context, pool *pgxpool.Pool, userID, budgetID int64) error {
	query := `DELETE FROM budgets WHERE id = $1 AND user_id = $2`
	cmd, err := pool.Exec(ctx, query, budgetID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("budget not found")
	}
	return nil
}
