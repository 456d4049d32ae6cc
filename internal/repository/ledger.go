package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/domain"
)

// Ledger holds the per-user financial records: categories, payment methods,
// expenses and incomes.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const categoryColumns = `id, user_id, name, created_at`

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateCategory resolves a category by name, case-insensitively,
// creating it when absent. The no-op DO UPDATE makes the conflicting insert
// still return the existing row.
func (r *Ledger) GetOrCreateCategory(ctx context.Context, userID int64, name string) (*domain.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, `
		INSERT INTO categories (user_id, name) VALUES ($1, $2)
		ON CONFLICT (user_id, lower(name)) DO UPDATE SET name = categories.name
		RETURNING `+categoryColumns, userID, name))
	if err != nil {
		return nil, fmt.Errorf("get or create category: %w", err)
	}
	return c, nil
}

func (r *Ledger) GetCategoryByName(ctx context.Context, userID int64, name string) (*domain.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND lower(name) = lower($2)`,
		userID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

func (r *Ledger) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// DeleteCategoryReassign moves all expenses of a category to the sentinel
// category and then deletes it, in one transaction. An explicit two-step
// reassign avoids the ON DELETE SET NULL path on the expenses FK.
func (r *Ledger) DeleteCategoryReassign(ctx context.Context, categoryID, sentinelID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE expenses SET category_id = $2 WHERE category_id = $1`, categoryID, sentinelID); err != nil {
		return fmt.Errorf("reassign expenses: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, categoryID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return tx.Commit(ctx)
}

const paymentMethodColumns = `id, user_id, name, due_day, created_at`

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var pm domain.PaymentMethod
	if err := row.Scan(&pm.ID, &pm.UserID, &pm.Name, &pm.DueDay, &pm.CreatedAt); err != nil {
		return nil, err
	}
	return &pm, nil
}

func (r *Ledger) GetOrCreatePaymentMethod(ctx context.Context, userID int64, name string, dueDay *int) (*domain.PaymentMethod, error) {
	pm, err := scanPaymentMethod(r.pool.QueryRow(ctx, `
		INSERT INTO payment_methods (user_id, name, due_day) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+paymentMethodColumns, userID, name, dueDay))
	if err != nil {
		return nil, fmt.Errorf("get or create payment method: %w", err)
	}
	return pm, nil
}

const expenseColumns = `id, user_id, category_id, payment_method_id, amount, description, transaction_date`

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.CategoryID, &e.PaymentMethodID, &e.Amount,
		&e.Description, &e.TransactionDate)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type CreateExpenseParams struct {
	UserID          int64
	CategoryID      *int64
	PaymentMethodID *int64
	Amount          decimal.Decimal
	Description     string
}

func (r *Ledger) CreateExpense(ctx context.Context, p CreateExpenseParams) (*domain.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, category_id, payment_method_id, amount, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns,
		p.UserID, p.CategoryID, p.PaymentMethodID, p.Amount, p.Description))
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

// LastExpense returns the user's most recent expense, ordering by
// transaction time with ties broken by arrival order.
func (r *Ledger) LastExpense(ctx context.Context, userID int64) (*domain.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoExpenses
	}
	if err != nil {
		return nil, fmt.Errorf("last expense: %w", err)
	}
	return e, nil
}

// UpdateExpense patches amount and/or description; nil fields are kept.
func (r *Ledger) UpdateExpense(ctx context.Context, expenseID int64, amount *decimal.Decimal, description *string) (*domain.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `
		UPDATE expenses
		SET amount = COALESCE($2, amount), description = COALESCE($3, description)
		WHERE id = $1
		RETURNING `+expenseColumns, expenseID, amount, description))
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (r *Ledger) SetExpenseCategory(ctx context.Context, expenseID, categoryID int64) (*domain.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `
		UPDATE expenses SET category_id = $2 WHERE id = $1
		RETURNING `+expenseColumns, expenseID, categoryID))
	if err != nil {
		return nil, fmt.Errorf("set expense category: %w", err)
	}
	return e, nil
}

func (r *Ledger) DeleteExpense(ctx context.Context, expenseID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

type CreateIncomeParams struct {
	UserID      int64
	Amount      decimal.Decimal
	Description string
	IncomeType  domain.IncomeType
}

func (r *Ledger) CreateIncome(ctx context.Context, p CreateIncomeParams) (*domain.Income, error) {
	var in domain.Income
	err := r.pool.QueryRow(ctx, `
		INSERT INTO incomes (user_id, amount, description, income_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, amount, description, income_type, transaction_date`,
		p.UserID, p.Amount, p.Description, p.IncomeType).
		Scan(&in.ID, &in.UserID, &in.Amount, &in.Description, &in.IncomeType, &in.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("create income: %w", err)
	}
	return &in, nil
}
