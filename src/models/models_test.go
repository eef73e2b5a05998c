package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("42.50")

	income := &Transaction{Type: TypeIncome, Amount: amount}
	if got := income.SignedAmount(); !got.Equal(amount) {
		t.Errorf("income signed amount = %s, want %s", got, amount)
	}

	expense := &Transaction{Type: TypeExpense, Amount: amount}
	if got := expense.SignedAmount(); !got.Equal(amount.Neg()) {
		t.Errorf("expense signed amount = %s, want %s", got, amount.Neg())
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2024, time.June, 15, 13, 45, 0, 0, time.UTC)

	if got := PeriodStart(PeriodMonthly, now); !got.Equal(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly period start = %s", got)
	}
	if got := PeriodStart(PeriodYearly, now); !got.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("yearly period start = %s", got)
	}
}
