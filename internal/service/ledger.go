package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
	"github.com/finzap/finzap/internal/repository"
)

// LedgerService applies classified plans as mutations on a user's financial
// records. Missing required fields are a routine outcome reported as
// domain.ErrMissingFields, never a panic or a wrapped failure.
type LedgerService struct {
	ledger LedgerStore
}

func NewLedgerService(ledger LedgerStore) *LedgerService {
	return &LedgerService{ledger: ledger}
}

// RecordExpense always creates a new row. The category falls back to the
// sentinel when the model extracted none; the payment method falls back to
// the user's default.
func (s *LedgerService) RecordExpense(ctx context.Context, user *domain.User, plan domain.RecordExpensePlan) (*domain.Expense, *domain.Category, error) {
	if plan.Amount.IsZero() || plan.Description == "" {
		return nil, nil, domain.ErrMissingFields
	}

	categoryName := plan.Category
	if categoryName == "" {
		categoryName = config.SentinelCategory
	}
	category, err := s.ledger.GetOrCreateCategory(ctx, user.ID, Capitalize(categoryName))
	if err != nil {
		return nil, nil, fmt.Errorf("record expense: %w", err)
	}

	var paymentMethodID *int64
	if plan.PaymentMethod != "" {
		pm, err := s.ledger.GetOrCreatePaymentMethod(ctx, user.ID, Capitalize(plan.PaymentMethod), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("record expense: %w", err)
		}
		paymentMethodID = &pm.ID
	} else {
		paymentMethodID = user.DefaultPaymentMethodID
	}

	expense, err := s.ledger.CreateExpense(ctx, repository.CreateExpenseParams{
		UserID:          user.ID,
		CategoryID:      &category.ID,
		PaymentMethodID: paymentMethodID,
		Amount:          plan.Amount,
		Description:     plan.Description,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("record expense: %w", err)
	}
	slog.Info("expense recorded", "user_id", user.ID, "expense_id", expense.ID,
		"amount", expense.Amount.StringFixed(2), "category", category.Name)
	return expense, category, nil
}

func (s *LedgerService) RecordIncome(ctx context.Context, user *domain.User, plan domain.RecordIncomePlan) (*domain.Income, error) {
	if plan.Amount.IsZero() || plan.Description == "" {
		return nil, domain.ErrMissingFields
	}
	income, err := s.ledger.CreateIncome(ctx, repository.CreateIncomeParams{
		UserID:      user.ID,
		Amount:      plan.Amount,
		Description: plan.Description,
		IncomeType:  plan.IncomeType,
	})
	if err != nil {
		return nil, fmt.Errorf("record income: %w", err)
	}
	slog.Info("income recorded", "user_id", user.ID, "income_id", income.ID,
		"amount", income.Amount.StringFixed(2))
	return income, nil
}

// DeleteLastExpense removes the user's most recent expense and returns it.
func (s *LedgerService) DeleteLastExpense(ctx context.Context, user *domain.User) (*domain.Expense, error) {
	last, err := s.ledger.LastExpense(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.DeleteExpense(ctx, last.ID); err != nil {
		return nil, fmt.Errorf("delete last expense: %w", err)
	}
	slog.Info("expense deleted", "user_id", user.ID, "expense_id", last.ID)
	return last, nil
}

// EditLastExpense applies a partial update: only the fields present in the
// plan change.
func (s *LedgerService) EditLastExpense(ctx context.Context, user *domain.User, plan domain.EditLastExpensePlan) (*domain.Expense, error) {
	if plan.Amount == nil && plan.Description == nil {
		return nil, domain.ErrMissingFields
	}
	last, err := s.ledger.LastExpense(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.ledger.UpdateExpense(ctx, last.ID, plan.Amount, plan.Description)
	if err != nil {
		return nil, fmt.Errorf("edit last expense: %w", err)
	}
	slog.Info("expense edited", "user_id", user.ID, "expense_id", updated.ID)
	return updated, nil
}

func (s *LedgerService) ChangeLastExpenseCategory(ctx context.Context, user *domain.User, plan domain.ChangeCategoryPlan) (*domain.Expense, *domain.Category, error) {
	if plan.Category == "" {
		return nil, nil, domain.ErrMissingFields
	}
	last, err := s.ledger.LastExpense(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	category, err := s.ledger.GetOrCreateCategory(ctx, user.ID, Capitalize(plan.Category))
	if err != nil {
		return nil, nil, fmt.Errorf("change expense category: %w", err)
	}
	updated, err := s.ledger.SetExpenseCategory(ctx, last.ID, category.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("change expense category: %w", err)
	}
	return updated, category, nil
}

// CreateCategory reports whether the category was actually created so the
// reply can distinguish "created" from "already existed".
func (s *LedgerService) CreateCategory(ctx context.Context, user *domain.User, name string) (*domain.Category, bool, error) {
	if name == "" {
		return nil, false, domain.ErrMissingFields
	}
	name = Capitalize(name)

	existing, err := s.ledger.GetCategoryByName(ctx, user.ID, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		return nil, false, fmt.Errorf("create category: %w", err)
	}

	category, err := s.ledger.GetOrCreateCategory(ctx, user.ID, name)
	if err != nil {
		return nil, false, fmt.Errorf("create category: %w", err)
	}
	slog.Info("category created", "user_id", user.ID, "category", category.Name)
	return category, true, nil
}

// DeleteCategory moves the category's expenses to the sentinel category and
// then removes it. The sentinel itself cannot be deleted.
func (s *LedgerService) DeleteCategory(ctx context.Context, user *domain.User, name string) (*domain.Category, error) {
	if name == "" || strings.EqualFold(name, config.SentinelCategory) {
		return nil, domain.ErrMissingFields
	}
	category, err := s.ledger.GetCategoryByName(ctx, user.ID, name)
	if err != nil {
		return nil, err
	}
	sentinel, err := s.ledger.GetOrCreateCategory(ctx, user.ID, config.SentinelCategory)
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}
	if err := s.ledger.DeleteCategoryReassign(ctx, category.ID, sentinel.ID); err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}
	slog.Info("category deleted", "user_id", user.ID, "category", category.Name)
	return category, nil
}

func (s *LedgerService) ListCategories(ctx context.Context, user *domain.User) ([]domain.Category, error) {
	return s.ledger.ListCategories(ctx, user.ID)
}

// Capitalize normalizes a name the way replies display it: first rune
// upper, the rest lower ("lazer" -> "Lazer").
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
