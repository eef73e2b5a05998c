package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type Budget struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	CategoryID      int64           `json:"category_id"`
	Period          string          `json:"period"`
	LimitAmount     decimal.Decimal `json:"limit_amount"`
	CurrentSpending decimal.Decimal `json:"current_spending"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PeriodStart returns the beginning of the budget's current period: the
// first of the month for monthly budgets, January 1st for yearly ones.
func PeriodStart(period string, now time.Time) time.Time {
	switch period {
	case PeriodYearly:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}
