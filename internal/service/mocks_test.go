package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/domain"
	"github.com/finzap/finzap/internal/repository"
)

// In-memory fakes for the store interfaces. They implement just enough
// semantics (unique wamid, case-insensitive categories, last-expense
// ordering) for the services to behave as they would against Postgres.

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User)}
}

func (f *fakeUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[phone]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) Create(ctx context.Context, phone, firstName, lastName string, countryCode *string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &domain.User{
		ID:          f.nextID,
		Phone:       phone,
		FirstName:   firstName,
		LastName:    lastName,
		CountryCode: countryCode,
		CreatedAt:   time.Now(),
	}
	f.users[phone] = u
	clone := *u
	return &clone, nil
}

func (f *fakeUserStore) UpdateName(ctx context.Context, userID int64, firstName, lastName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.FirstName, u.LastName = firstName, lastName
		}
	}
	return nil
}

func (f *fakeUserStore) SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			id := paymentMethodID
			u.DefaultPaymentMethodID = &id
		}
	}
	return nil
}

type fakeConversationStore struct {
	mu     sync.Mutex
	nextID int64
	convs  []*domain.Conversation
}

func (f *fakeConversationStore) GetActive(ctx context.Context, userID int64) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.UserID == userID && c.Status == domain.ConversationActive {
			clone := *c
			return &clone, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (f *fakeConversationStore) Create(ctx context.Context, userID int64) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &domain.Conversation{
		ID:        f.nextID,
		UserID:    userID,
		Status:    domain.ConversationActive,
		StartedAt: time.Now(),
	}
	f.convs = append(f.convs, c)
	clone := *c
	return &clone, nil
}

func (f *fakeConversationStore) Close(ctx context.Context, conversationID int64, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ID == conversationID {
			c.Status = domain.ConversationClosed
			c.EndedAt = &endedAt
		}
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []*domain.Message
}

func (f *fakeMessageStore) Insert(ctx context.Context, p repository.InsertMessageParams) (*domain.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.WAMID == p.WAMID {
			return nil, false, nil
		}
	}
	f.nextID++
	m := &domain.Message{
		ID:             f.nextID,
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		WAMID:          p.WAMID,
		Direction:      p.Direction,
		MessageType:    p.MessageType,
		Body:           p.Body,
		ReplyToID:      p.ReplyToID,
		SentAt:         p.SentAt,
	}
	f.messages = append(f.messages, m)
	clone := *m
	return &clone, true, nil
}

func (f *fakeMessageStore) GetByWAMID(ctx context.Context, wamid string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.WAMID == wamid {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageStore) History(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageStore) LastActivity(ctx context.Context, conversationID int64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last time.Time
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.SentAt.After(last) {
			last = m.SentAt
		}
	}
	return last, nil
}

func (f *fakeMessageStore) LinkAILog(ctx context.Context, messageID, aiLogID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID {
			id := aiLogID
			m.AILogID = &id
		}
	}
	return nil
}

func (f *fakeMessageStore) byDirection(d domain.Direction) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.messages {
		if m.Direction == d {
			out = append(out, *m)
		}
	}
	return out
}

type fakeAILogStore struct {
	mu     sync.Mutex
	nextID int64
	logs   []*domain.AILog
}

func (f *fakeAILogStore) Create(ctx context.Context, userID int64, prompt, response string, durationMs int) (*domain.AILog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l := &domain.AILog{
		ID:         f.nextID,
		UserID:     &userID,
		Prompt:     prompt,
		Response:   response,
		DurationMs: durationMs,
		CreatedAt:  time.Now(),
	}
	f.logs = append(f.logs, l)
	clone := *l
	return &clone, nil
}

type fakeLedgerStore struct {
	mu         sync.Mutex
	nextID     int64
	categories []*domain.Category
	methods    []*domain.PaymentMethod
	expenses   []*domain.Expense
	incomes    []*domain.Income

	failCreateExpense error
}

func (f *fakeLedgerStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeLedgerStore) GetOrCreateCategory(ctx context.Context, userID int64, name string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			clone := *c
			return &clone, nil
		}
	}
	c := &domain.Category{ID: f.id(), UserID: userID, Name: name, CreatedAt: time.Now()}
	f.categories = append(f.categories, c)
	clone := *c
	return &clone, nil
}

func (f *fakeLedgerStore) GetCategoryByName(ctx context.Context, userID int64, name string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

func (f *fakeLedgerStore) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Category
	for _, c := range f.categories {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) DeleteCategoryReassign(ctx context.Context, categoryID, sentinelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.CategoryID != nil && *e.CategoryID == categoryID {
			id := sentinelID
			e.CategoryID = &id
		}
	}
	kept := f.categories[:0]
	for _, c := range f.categories {
		if c.ID != categoryID {
			kept = append(kept, c)
		}
	}
	f.categories = kept
	return nil
}

func (f *fakeLedgerStore) GetOrCreatePaymentMethod(ctx context.Context, userID int64, name string, dueDay *int) (*domain.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m.UserID == userID && m.Name == name {
			clone := *m
			return &clone, nil
		}
	}
	m := &domain.PaymentMethod{ID: f.id(), UserID: userID, Name: name, DueDay: dueDay, CreatedAt: time.Now()}
	f.methods = append(f.methods, m)
	clone := *m
	return &clone, nil
}

func (f *fakeLedgerStore) CreateExpense(ctx context.Context, p repository.CreateExpenseParams) (*domain.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateExpense != nil {
		return nil, f.failCreateExpense
	}
	e := &domain.Expense{
		ID:              f.id(),
		UserID:          p.UserID,
		CategoryID:      p.CategoryID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		Description:     p.Description,
		TransactionDate: time.Now(),
	}
	f.expenses = append(f.expenses, e)
	clone := *e
	return &clone, nil
}

func (f *fakeLedgerStore) LastExpense(ctx context.Context, userID int64) (*domain.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *domain.Expense
	for _, e := range f.expenses {
		if e.UserID == userID && (last == nil || e.ID > last.ID) {
			last = e
		}
	}
	if last == nil {
		return nil, domain.ErrNoExpenses
	}
	clone := *last
	return &clone, nil
}

func (f *fakeLedgerStore) UpdateExpense(ctx context.Context, expenseID int64, amount *decimal.Decimal, description *string) (*domain.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == expenseID {
			if amount != nil {
				e.Amount = *amount
			}
			if description != nil {
				e.Description = *description
			}
			clone := *e
			return &clone, nil
		}
	}
	return nil, domain.ErrNoExpenses
}

func (f *fakeLedgerStore) SetExpenseCategory(ctx context.Context, expenseID, categoryID int64) (*domain.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == expenseID {
			id := categoryID
			e.CategoryID = &id
			clone := *e
			return &clone, nil
		}
	}
	return nil, domain.ErrNoExpenses
}

func (f *fakeLedgerStore) DeleteExpense(ctx context.Context, expenseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.expenses[:0]
	for _, e := range f.expenses {
		if e.ID != expenseID {
			kept = append(kept, e)
		}
	}
	f.expenses = kept
	return nil
}

func (f *fakeLedgerStore) CreateIncome(ctx context.Context, p repository.CreateIncomeParams) (*domain.Income, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := &domain.Income{
		ID:              f.id(),
		UserID:          p.UserID,
		Amount:          p.Amount,
		Description:     p.Description,
		IncomeType:      p.IncomeType,
		TransactionDate: time.Now(),
	}
	f.incomes = append(f.incomes, in)
	clone := *in
	return &clone, nil
}

// fakeSummaryStore serves fixed aggregates and keeps the upserted cache
// rows in memory.
type fakeSummaryStore struct {
	mu       sync.Mutex
	income   decimal.Decimal
	expenses decimal.Decimal
	top      []domain.CategoryTotal
	methods  []domain.PaymentMethodTotal
	newest   *time.Time
	cached   map[string]*domain.MonthlySummary

	totalsCalls int
}

func summaryKey(userID int64, year, month int) string {
	return fmt.Sprintf("%d/%d/%d", userID, year, month)
}

func (f *fakeSummaryStore) MonthTotals(ctx context.Context, userID int64, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalsCalls++
	return f.income, f.expenses, nil
}

func (f *fakeSummaryStore) TopCategories(ctx context.Context, userID int64, year, month, limit int) ([]domain.CategoryTotal, error) {
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

func (f *fakeSummaryStore) PaymentMethodBreakdown(ctx context.Context, userID int64, year, month int) ([]domain.PaymentMethodTotal, error) {
	return f.methods, nil
}

func (f *fakeSummaryStore) NewestTransactionAt(ctx context.Context, userID int64, year, month int) (*time.Time, error) {
	return f.newest, nil
}

func (f *fakeSummaryStore) Get(ctx context.Context, userID int64, year, month int) (*domain.MonthlySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.cached[summaryKey(userID, year, month)]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeSummaryStore) Upsert(ctx context.Context, s *domain.MonthlySummary) (*domain.MonthlySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil {
		f.cached = make(map[string]*domain.MonthlySummary)
	}
	clone := *s
	clone.GeneratedAt = time.Now()
	f.cached[summaryKey(s.UserID, s.Year, s.Month)] = &clone
	out := clone
	return &out, nil
}

// fakeGenerator answers with queued responses, or err for every call.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", context.DeadlineExceeded
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

type sentMessage struct {
	To           string
	Body         string
	ReplyToWAMID string
}

type fakeSender struct {
	mu     sync.Mutex
	nextID int
	sent   []sentMessage
	err    error
}

func (f *fakeSender) SendText(ctx context.Context, to, body, replyToWAMID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{To: to, Body: body, ReplyToWAMID: replyToWAMID})
	return fmt.Sprintf("wamid.out.%d", f.nextID), nil
}
