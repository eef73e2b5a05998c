package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"monii/src/models"
	"monii/src/notify"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Store is the transactional storage the ledger runs on.
type Store interface {
	// InTx runs fn within one database transaction; fn's effects commit
	// together or not at all.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of row operations available inside one ledger transaction.
// AccountForUpdate and MonthlyBudgetForUpdate must lock the row they return
// so concurrent writes against the same account or budget serialize.
type Tx interface {
	AccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error)
	AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
	CategoryByID(ctx context.Context, categoryID int64) (*models.Category, error)
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	TransactionByIntentID(ctx context.Context, userID int64, intentID string) (*models.Transaction, error)
	TransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	MonthlyBudgetForUpdate(ctx context.Context, userID, categoryID int64) (*models.Budget, error)
	AddBudgetSpending(ctx context.Context, budgetID int64, delta decimal.Decimal) error
	SetBudgetSpending(ctx context.Context, budgetID int64, amount decimal.Decimal) error
	ResetMonthlyBudgets(ctx context.Context, userID int64) error
	BudgetsForUpdate(ctx context.Context, userID int64) ([]models.Budget, error)
	SumExpenses(ctx context.Context, userID, categoryID int64, since time.Time) (decimal.Decimal, error)
}

// Service is the authoritative ledger applier. Every write mutates the
// transaction row, the owning account's balance, and any matching monthly
// budget inside a single database transaction.
type Service struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(store Store, notifier notify.Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// ApplyCreate inserts a transaction, adjusts the account balance and, for a
// categorized expense, the matching monthly budget's spending. When the
// request carries a client intent id that was already applied, the stored
// transaction is returned and no effect is repeated.
func (s *Service) ApplyCreate(ctx context.Context, userID int64, req models.TransactionRequest) (*models.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		result *models.Transaction
		event  *notify.BudgetExceededEvent
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		if req.ClientIntentID != "" {
			existing, err := tx.TransactionByIntentID(ctx, userID, req.ClientIntentID)
			if err != nil {
				return err
			}
			if existing != nil {
				log.Printf("INFO: Intent %s already applied for user %d, returning stored transaction %s",
					req.ClientIntentID, userID, existing.ID)
				result = existing
				return nil
			}
		}

		if err := s.checkOwnership(ctx, tx, userID, req); err != nil {
			return err
		}

		t := &models.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			AccountID:   req.AccountID,
			CategoryID:  req.CategoryID,
			Type:        req.Type,
			Amount:      req.Amount,
			Description: req.Description,
			Date:        req.Date,
			CreatedAt:   s.now(),
		}
		if req.ClientIntentID != "" {
			intentID := req.ClientIntentID
			t.ClientIntentID = &intentID
		}

		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := tx.AdjustAccountBalance(ctx, t.AccountID, t.SignedAmount()); err != nil {
			return err
		}

		ev, err := s.applyBudgetDelta(ctx, tx, userID, t.CategoryID, t.Type, t.Amount, t.Date)
		if err != nil {
			return err
		}
		event = ev
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event)
	return result, nil
}

// ApplyUpdate reverses the stored transaction's ledger effect and applies
// the new payload, all within one transaction.
func (s *Service) ApplyUpdate(ctx context.Context, userID int64, id string, req models.TransactionRequest) (*models.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		result *models.Transaction
		event  *notify.BudgetExceededEvent
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		old, err := s.lockOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.reverse(ctx, tx, old); err != nil {
			return err
		}

		if err := s.checkOwnership(ctx, tx, userID, req); err != nil {
			return err
		}

		updated := &models.Transaction{
			ID:             old.ID,
			UserID:         old.UserID,
			AccountID:      req.AccountID,
			CategoryID:     req.CategoryID,
			Type:           req.Type,
			Amount:         req.Amount,
			Description:    req.Description,
			Date:           req.Date,
			ClientIntentID: old.ClientIntentID,
			CreatedAt:      old.CreatedAt,
		}
		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		if err := tx.AdjustAccountBalance(ctx, updated.AccountID, updated.SignedAmount()); err != nil {
			return err
		}

		ev, err := s.applyBudgetDelta(ctx, tx, userID, updated.CategoryID, updated.Type, updated.Amount, updated.Date)
		if err != nil {
			return err
		}
		event = ev
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event)
	return result, nil
}

// ApplyDelete reverses the stored transaction's ledger effect and removes
// the row.
func (s *Service) ApplyDelete(ctx context.Context, userID int64, id string) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		old, err := s.lockOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.reverse(ctx, tx, old); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, old.ID)
	})
}

// ResetMonthlyBudgets zeroes current spending for every monthly budget of
// the user. Meant for period rollover, not reads.
func (s *Service) ResetMonthlyBudgets(ctx context.Context, userID int64) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		return tx.ResetMonthlyBudgets(ctx, userID)
	})
}

// RecalculateSpending recomputes every budget's spending from the
// transaction history for its current period and persists any drift. The
// recomputed value must always equal the incrementally maintained one; a
// mismatch is self-healed and logged.
func (s *Service) RecalculateSpending(ctx context.Context, userID int64) ([]models.Budget, error) {
	var out []models.Budget
	err := s.store.InTx(ctx, func(tx Tx) error {
		budgets, err := tx.BudgetsForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		out = out[:0]
		for _, b := range budgets {
			sum, err := tx.SumExpenses(ctx, userID, b.CategoryID, models.PeriodStart(b.Period, now))
			if err != nil {
				return err
			}
			if !sum.Equal(b.CurrentSpending) {
				log.Printf("ERROR: Budget %d spending drift for user %d: stored %s, recalculated %s",
					b.ID, userID, b.CurrentSpending, sum)
				if err := tx.SetBudgetSpending(ctx, b.ID, sum); err != nil {
					return err
				}
				b.CurrentSpending = sum
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- helpers ---

func validateRequest(req models.TransactionRequest) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidArgument
	}
	if req.Type != models.TypeIncome && req.Type != models.TypeExpense {
		return ErrInvalidArgument
	}
	return nil
}

func (s *Service) checkOwnership(ctx context.Context, tx Tx, userID int64, req models.TransactionRequest) error {
	acct, err := tx.AccountForUpdate(ctx, req.AccountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	if acct.UserID != userID {
		return ErrForbidden
	}
	if req.CategoryID != nil {
		cat, err := tx.CategoryByID(ctx, *req.CategoryID)
		if err != nil {
			return err
		}
		if cat == nil {
			return ErrNotFound
		}
		if cat.UserID != userID {
			return ErrForbidden
		}
	}
	return nil
}

func (s *Service) lockOwned(ctx context.Context, tx Tx, userID int64, id string) (*models.Transaction, error) {
	old, err := tx.TransactionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrNotFound
	}
	if old.UserID != userID {
		return nil, ErrForbidden
	}
	// Lock the account row before touching the balance.
	acct, err := tx.AccountForUpdate(ctx, old.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	return old, nil
}

// reverse undoes a transaction's balance and budget effect.
func (s *Service) reverse(ctx context.Context, tx Tx, t *models.Transaction) error {
	if err := tx.AdjustAccountBalance(ctx, t.AccountID, t.SignedAmount().Neg()); err != nil {
		return err
	}
	if t.Type == models.TypeExpense && t.CategoryID != nil {
		b, err := tx.MonthlyBudgetForUpdate(ctx, t.UserID, *t.CategoryID)
		if err != nil {
			return err
		}
		if b != nil && s.inCurrentPeriod(b, t.Date) {
			if err := tx.AddBudgetSpending(ctx, b.ID, t.Amount.Neg()); err != nil {
				return err
			}
		}
	}
	return nil
}

// inCurrentPeriod reports whether a transaction date counts against the
// budget's current period. Spending only ever sums transactions from the
// period start, so a backdated write (a stale offline intent replayed after
// rollover, or a bank feed row from last month) must leave current spending
// alone in both directions.
func (s *Service) inCurrentPeriod(b *models.Budget, date time.Time) bool {
	return !date.Before(models.PeriodStart(b.Period, s.now()))
}

// applyBudgetDelta adds an expense magnitude to the matching monthly budget
// and reports a threshold crossing: the limit was not exceeded before this
// write and is after it.
func (s *Service) applyBudgetDelta(ctx context.Context, tx Tx, userID int64, categoryID *int64, txType string, amount decimal.Decimal, date time.Time) (*notify.BudgetExceededEvent, error) {
	if txType != models.TypeExpense || categoryID == nil {
		return nil, nil
	}
	b, err := tx.MonthlyBudgetForUpdate(ctx, userID, *categoryID)
	if err != nil {
		return nil, err
	}
	if b == nil || !s.inCurrentPeriod(b, date) {
		return nil, nil
	}

	newSpending := b.CurrentSpending.Add(amount)
	crossed := b.CurrentSpending.LessThanOrEqual(b.LimitAmount) && newSpending.GreaterThan(b.LimitAmount)
	if err := tx.AddBudgetSpending(ctx, b.ID, amount); err != nil {
		return nil, err
	}
	if !crossed {
		return nil, nil
	}

	cat, err := tx.CategoryByID(ctx, *categoryID)
	if err != nil {
		return nil, err
	}
	name := ""
	if cat != nil {
		name = cat.Name
	}
	return &notify.BudgetExceededEvent{
		UserID:          userID,
		CategoryName:    name,
		CurrentSpending: newSpending,
		LimitAmount:     b.LimitAmount,
		OverAmount:      newSpending.Sub(b.LimitAmount),
	}, nil
}

func (s *Service) emit(ctx context.Context, ev *notify.BudgetExceededEvent) {
	if ev == nil {
		return
	}
	if err := s.notifier.BudgetExceeded(ctx, *ev); err != nil {
		log.Printf("ERROR: Failed to deliver budget-exceeded notification for user %d: %v", ev.UserID, err)
	}
}
