package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/domain"
)

type Summaries struct {
	pool *pgxpool.Pool
}

func NewSummaries(pool *pgxpool.Pool) *Summaries {
	return &Summaries{pool: pool}
}

// monthBounds returns the half-open [start, end) interval of a month in UTC.
func monthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func (r *Summaries) MonthTotals(ctx context.Context, userID int64, year, month int) (income, expenses decimal.Decimal, err error) {
	start, end := monthBounds(year, month)
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM incomes
				WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < $3), 0),
			COALESCE((SELECT SUM(amount) FROM expenses
				WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < $3), 0)`,
		userID, start, end).Scan(&income, &expenses)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("month totals: %w", err)
	}
	return income, expenses, nil
}

func (r *Summaries) TopCategories(ctx context.Context, userID int64, year, month, limit int) ([]domain.CategoryTotal, error) {
	start, end := monthBounds(year, month)
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(c.name, 'Sem Categoria'), SUM(e.amount) AS total
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = $1 AND e.transaction_date >= $2 AND e.transaction_date < $3
		GROUP BY 1
		ORDER BY total DESC
		LIMIT $4`, userID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	defer rows.Close()

	var totals []domain.CategoryTotal
	for rows.Next() {
		var t domain.CategoryTotal
		if err := rows.Scan(&t.Name, &t.Total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *Summaries) PaymentMethodBreakdown(ctx context.Context, userID int64, year, month int) ([]domain.PaymentMethodTotal, error) {
	start, end := monthBounds(year, month)
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(pm.name, 'N/A'), SUM(e.amount) AS total
		FROM expenses e
		LEFT JOIN payment_methods pm ON pm.id = e.payment_method_id
		WHERE e.user_id = $1 AND e.transaction_date >= $2 AND e.transaction_date < $3
		GROUP BY 1
		ORDER BY total DESC`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("payment method breakdown: %w", err)
	}
	defer rows.Close()

	var totals []domain.PaymentMethodTotal
	for rows.Next() {
		var t domain.PaymentMethodTotal
		if err := rows.Scan(&t.Name, &t.Total); err != nil {
			return nil, fmt.Errorf("scan payment method total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// NewestTransactionAt returns the timestamp of the newest expense or income
// in the period, or nil when the period has no transactions. Used to decide
// whether a cached summary is still fresh.
func (r *Summaries) NewestTransactionAt(ctx context.Context, userID int64, year, month int) (*time.Time, error) {
	start, end := monthBounds(year, month)
	var ts *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT max(transaction_date) FROM expenses
				WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < $3),
			(SELECT max(transaction_date) FROM incomes
				WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < $3))`,
		userID, start, end).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("newest transaction: %w", err)
	}
	return ts, nil
}

const summaryColumns = `id, user_id, month, year, total_income, total_expenses, balance, summary_text, insights_text, generated_at`

func (r *Summaries) Get(ctx context.Context, userID int64, year, month int) (*domain.MonthlySummary, error) {
	var s domain.MonthlySummary
	err := r.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM monthly_summaries WHERE user_id = $1 AND year = $2 AND month = $3`,
		userID, year, month).
		Scan(&s.ID, &s.UserID, &s.Month, &s.Year, &s.TotalIncome, &s.TotalExpenses,
			&s.Balance, &s.SummaryText, &s.InsightsText, &s.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &s, nil
}

func (r *Summaries) Upsert(ctx context.Context, s *domain.MonthlySummary) (*domain.MonthlySummary, error) {
	var out domain.MonthlySummary
	err := r.pool.QueryRow(ctx, `
		INSERT INTO monthly_summaries (user_id, month, year, total_income, total_expenses, balance, summary_text, insights_text, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, month, year) DO UPDATE SET
			total_income = EXCLUDED.total_income,
			total_expenses = EXCLUDED.total_expenses,
			balance = EXCLUDED.balance,
			summary_text = EXCLUDED.summary_text,
			insights_text = EXCLUDED.insights_text,
			generated_at = now()
		RETURNING `+summaryColumns,
		s.UserID, s.Month, s.Year, s.TotalIncome, s.TotalExpenses, s.Balance, s.SummaryText, s.InsightsText).
		Scan(&out.ID, &out.UserID, &out.Month, &out.Year, &out.TotalIncome, &out.TotalExpenses,
			&out.Balance, &out.SummaryText, &out.InsightsText, &out.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}
	return &out, nil
}
