package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

type PaymentMethod struct {
	ID        int64
	UserID    int64
	Name      string
	DueDay    *int
	CreatedAt time.Time
}

type Expense struct {
	ID              int64
	UserID          int64
	CategoryID      *int64
	PaymentMethodID *int64
	Amount          decimal.Decimal
	Description     string
	TransactionDate time.Time
}

type IncomeType string

const (
	IncomeFixed    IncomeType = "FIXED"
	IncomeVariable IncomeType = "VARIABLE"
)

// NormalizeIncomeType maps free-form model output onto a valid income type.
// Anything unrecognized becomes VARIABLE.
func NormalizeIncomeType(s string) IncomeType {
	switch s {
	case "FIXED", "FIXA", "fixed", "fixa":
		return IncomeFixed
	default:
		return IncomeVariable
	}
}

type Income struct {
	ID              int64
	UserID          int64
	Amount          decimal.Decimal
	Description     string
	IncomeType      IncomeType
	TransactionDate time.Time
}

// CategoryTotal is one row of the per-category expense breakdown.
type CategoryTotal struct {
	Name  string
	Total decimal.Decimal
}

// PaymentMethodTotal is one row of the per-payment-method breakdown.
type PaymentMethodTotal struct {
	Name  string
	Total decimal.Decimal
}

// MonthlySummary caches the computed aggregates and the generated narrative
// for one (user, month, year).
type MonthlySummary struct {
	ID            int64
	UserID        int64
	Month         int
	Year          int
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Balance       decimal.Decimal
	SummaryText   string
	InsightsText  string
	GeneratedAt   time.Time
}
