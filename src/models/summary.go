package models

import "github.com/shopspring/decimal"

// Summary is the dashboard aggregate served to clients and cached locally
// as a snapshot while offline.
type Summary struct {
	TotalBalance decimal.Decimal `json:"total_balance"`
	MonthIncome  decimal.Decimal `json:"month_income"`
	MonthExpense decimal.Decimal `json:"month_expense"`
}
