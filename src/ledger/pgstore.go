package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"monii/src/models"
)

// PGStore runs ledger transactions on Postgres. Row locks on accounts and
// budgets come from SELECT ... FOR UPDATE, so concurrent writes against the
// same rows serialize instead of losing updates.
type PGStore struct {
	Pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func (s *PGStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (p *pgTx) AccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error) {
	query := `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM accounts WHERE id = $1
		FOR UPDATE
	`
	var a models.Account
	err := p.tx.QueryRow(ctx, query, accountID).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *pgTx) AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`
	_, err := p.tx.Exec(ctx, query, delta, accountID)
	return err
}

func (p *pgTx) CategoryByID(ctx context.Context, categoryID int64) (*models.Category, error) {
	query := `SELECT id, user_id, name FROM categories WHERE id = $1`
	var c models.Category
	err := p.tx.QueryRow(ctx, query, categoryID).Scan(&c.ID, &c.UserID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *pgTx) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, account_id, category_id, type, amount, description, date, client_intent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.tx.Exec(ctx, query,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Type, t.Amount, t.Description, t.Date, t.ClientIntentID, t.CreatedAt)
	return err
}

func (p *pgTx) TransactionByIntentID(ctx context.Context, userID int64, intentID string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, account_id, category_id, type, amount, description, date, client_intent_id, created_at
		FROM transactions WHERE user_id = $1 AND client_intent_id = $2
	`
	return p.scanTransaction(p.tx.QueryRow(ctx, query, userID, intentID))
}

func (p *pgTx) TransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, account_id, category_id, type, amount, description, date, client_intent_id, created_at
		FROM transactions WHERE id = $1
		FOR UPDATE
	`
	return p.scanTransaction(p.tx.QueryRow(ctx, query, id))
}

func (p *pgTx) scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Type,
		&t.Amount, &t.Description, &t.Date, &t.ClientIntentID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *pgTx) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET account_id = $1, category_id = $2, type = $3, amount = $4, description = $5, date = $6
		WHERE id = $7
	`
	_, err := p.tx.Exec(ctx, query, t.AccountID, t.CategoryID, t.Type, t.Amount, t.Description, t.Date, t.ID)
	return err
}

func (p *pgTx) DeleteTransaction(ctx context.Context, id string) error {
	_, err := p.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

func (p *pgTx) MonthlyBudgetForUpdate(ctx context.Context, userID, categoryID int64) (*models.Budget, error) {
	query := `
		SELECT id, user_id, category_id, period, limit_amount, current_spending, created_at, updated_at
		FROM budgets WHERE user_id = $1 AND category_id = $2 AND period = $3
		FOR UPDATE
	`
	var b models.Budget
	err := p.tx.QueryRow(ctx, query, userID, categoryID, models.PeriodMonthly).
		Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Period, &b.LimitAmount, &b.CurrentSpending, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *pgTx) AddBudgetSpending(ctx context.Context, budgetID int64, delta decimal.Decimal) error {
	query := `UPDATE budgets SET current_spending = current_spending + $1, updated_at = NOW() WHERE id = $2`
	_, err := p.tx.Exec(ctx, query, delta, budgetID)
	return err
}

func (p *pgTx) SetBudgetSpending(ctx context.Context, budgetID int64, amount decimal.Decimal) error {
	query := `UPDATE budgets SET current_spending = $1, updated_at = NOW() WHERE id = $2`
	_, err := p.tx.Exec(ctx, query, amount, budgetID)
	return err
}

func (p *pgTx) ResetMonthlyBudgets(ctx context.Context, userID int64) error {
	query := `UPDATE budgets SET current_spending = 0, updated_at = NOW() WHERE user_id = $1 AND period = $2`
	_, err := p.tx.Exec(ctx, query, userID, models.PeriodMonthly)
	return err
}

func (p *pgTx) BudgetsForUpdate(ctx context.Context, userID int64) ([]models.Budget, error) {
	query := `
		SELECT id, user_id, category_id, period, limit_amount, current_spending, created_at, updated_at
		FROM budgets WHERE user_id = $1
		ORDER BY created_at DESC
		FOR UPDATE
	`
	rows, err := p.tx.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Period, &b.LimitAmount, &b.CurrentSpending, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (p *pgTx) SumExpenses(ctx context.Context, userID, categoryID int64, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND category_id = $2 AND type = $3 AND date >= $4
	`
	var sum decimal.Decimal
	err := p.tx.QueryRow(ctx, query, userID, categoryID, models.TypeExpense, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
