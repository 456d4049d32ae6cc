package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/domain"
	"github.com/finzap/finzap/internal/repository"
)

// Store interfaces mirror the repository layer so services can be exercised
// against hand-written mocks in tests.

type UserStore interface {
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, phone, firstName, lastName string, countryCode *string) (*domain.User, error)
	UpdateName(ctx context.Context, userID int64, firstName, lastName string) error
	SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID int64) error
}

type ConversationStore interface {
	GetActive(ctx context.Context, userID int64) (*domain.Conversation, error)
	Create(ctx context.Context, userID int64) (*domain.Conversation, error)
	Close(ctx context.Context, conversationID int64, endedAt time.Time) error
}

type MessageStore interface {
	Insert(ctx context.Context, p repository.InsertMessageParams) (*domain.Message, bool, error)
	GetByWAMID(ctx context.Context, wamid string) (*domain.Message, error)
	History(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
	LastActivity(ctx context.Context, conversationID int64) (time.Time, error)
	LinkAILog(ctx context.Context, messageID, aiLogID int64) error
}

type AILogStore interface {
	Create(ctx context.Context, userID int64, prompt, response string, durationMs int) (*domain.AILog, error)
}

type LedgerStore interface {
	GetOrCreateCategory(ctx context.Context, userID int64, name string) (*domain.Category, error)
	GetCategoryByName(ctx context.Context, userID int64, name string) (*domain.Category, error)
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	DeleteCategoryReassign(ctx context.Context, categoryID, sentinelID int64) error
	GetOrCreatePaymentMethod(ctx context.Context, userID int64, name string, dueDay *int) (*domain.PaymentMethod, error)
	CreateExpense(ctx context.Context, p repository.CreateExpenseParams) (*domain.Expense, error)
	LastExpense(ctx context.Context, userID int64) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expenseID int64, amount *decimal.Decimal, description *string) (*domain.Expense, error)
	SetExpenseCategory(ctx context.Context, expenseID, categoryID int64) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, expenseID int64) error
	CreateIncome(ctx context.Context, p repository.CreateIncomeParams) (*domain.Income, error)
}

type SummaryStore interface {
	MonthTotals(ctx context.Context, userID int64, year, month int) (income, expenses decimal.Decimal, err error)
	TopCategories(ctx context.Context, userID int64, year, month, limit int) ([]domain.CategoryTotal, error)
	PaymentMethodBreakdown(ctx context.Context, userID int64, year, month int) ([]domain.PaymentMethodTotal, error)
	NewestTransactionAt(ctx context.Context, userID int64, year, month int) (*time.Time, error)
	Get(ctx context.Context, userID int64, year, month int) (*domain.MonthlySummary, error)
	Upsert(ctx context.Context, s *domain.MonthlySummary) (*domain.MonthlySummary, error)
}

// Generator is the generative-model boundary: one prompt in, one text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sender is the outbound delivery boundary. It returns the
// provider-assigned message id.
type Sender interface {
	SendText(ctx context.Context, to, body, replyToWAMID string) (string, error)
}
