package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// SummaryService builds the monthly financial summary. Results are cached
// per (user, month, year) and reused until a newer transaction lands in
// that month.
type SummaryService struct {
	summaries SummaryStore
	composer  *Composer
	now       func() time.Time
}

func NewSummaryService(summaries SummaryStore, composer *Composer) *SummaryService {
	return &SummaryService{summaries: summaries, composer: composer, now: time.Now}
}

// CurrentMonth returns the summary text for the month the message arrived in.
func (s *SummaryService) CurrentMonth(ctx context.Context, user *domain.User) (string, error) {
	now := s.now().UTC()
	return s.ForMonth(ctx, user, now.Year(), int(now.Month()))
}

func (s *SummaryService) ForMonth(ctx context.Context, user *domain.User, year, month int) (string, error) {
	cached, err := s.summaries.Get(ctx, user.ID, year, month)
	if err != nil {
		return "", fmt.Errorf("monthly summary: %w", err)
	}
	if cached != nil {
		newest, err := s.summaries.NewestTransactionAt(ctx, user.ID, year, month)
		if err != nil {
			return "", fmt.Errorf("monthly summary: %w", err)
		}
		if newest == nil || !newest.After(cached.GeneratedAt) {
			slog.Debug("summary cache hit", "user_id", user.ID, "month", month, "year", year)
			return cached.SummaryText, nil
		}
	}

	income, expenses, err := s.summaries.MonthTotals(ctx, user.ID, year, month)
	if err != nil {
		return "", fmt.Errorf("monthly summary: %w", err)
	}
	top, err := s.summaries.TopCategories(ctx, user.ID, year, month, config.SummaryTopCategories)
	if err != nil {
		return "", fmt.Errorf("monthly summary: %w", err)
	}
	methods, err := s.summaries.PaymentMethodBreakdown(ctx, user.ID, year, month)
	if err != nil {
		return "", fmt.Errorf("monthly summary: %w", err)
	}

	balance := income.Sub(expenses)
	insights := s.composer.Insights(ctx, user, map[string]any{
		"mes":              monthNames[month-1],
		"ano":              year,
		"total_receitas":   income.StringFixed(2),
		"total_despesas":   expenses.StringFixed(2),
		"saldo":            balance.StringFixed(2),
		"top_categorias":   categoryLines(top),
		"formas_pagamento": methodLines(methods),
	})

	text := s.render(year, month, income, expenses, balance, top, methods, insights)

	if _, err := s.summaries.Upsert(ctx, &domain.MonthlySummary{
		UserID:        user.ID,
		Month:         month,
		Year:          year,
		TotalIncome:   income,
		TotalExpenses: expenses,
		Balance:       balance,
		SummaryText:   text,
		InsightsText:  insights,
	}); err != nil {
		// Losing the cache only costs a recompute next time.
		slog.Error("summary cache write failed", "user_id", user.ID, "error", err)
	}
	return text, nil
}

func (s *SummaryService) render(year, month int, income, expenses, balance decimal.Decimal, top []domain.CategoryTotal, methods []domain.PaymentMethodTotal, insights string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Resumo Financeiro de %s/%d*\n\n", monthNames[month-1], year)
	fmt.Fprintf(&b, "💰 Receitas: R$ %s\n", income.StringFixed(2))
	fmt.Fprintf(&b, "💸 Despesas: R$ %s\n", expenses.StringFixed(2))
	if balance.IsNegative() {
		fmt.Fprintf(&b, "🔴 Saldo: R$ %s\n", balance.StringFixed(2))
	} else {
		fmt.Fprintf(&b, "🟢 Saldo: R$ %s\n", balance.StringFixed(2))
	}

	if !expenses.IsZero() && !income.IsZero() {
		percent := expenses.Div(income).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(&b, "\nVocê gastou %s%% do que recebeu.\n", percent.Round(1).String())
	}

	if len(top) > 0 {
		b.WriteString("\n🏷️ *Principais categorias:*\n")
		for _, line := range categoryLines(top) {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}
	if len(methods) > 0 {
		b.WriteString("\n💳 *Por forma de pagamento:*\n")
		for _, line := range methodLines(methods) {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}
	if insights != "" {
		fmt.Fprintf(&b, "\n💡 %s", insights)
	}
	return strings.TrimRight(b.String(), "\n")
}

func categoryLines(top []domain.CategoryTotal) []string {
	lines := make([]string, 0, len(top))
	for _, c := range top {
		lines = append(lines, fmt.Sprintf("• %s: R$ %s", c.Name, c.Total.StringFixed(2)))
	}
	return lines
}

func methodLines(methods []domain.PaymentMethodTotal) []string {
	lines := make([]string, 0, len(methods))
	for _, m := range methods {
		lines = append(lines, fmt.Sprintf("• %s: R$ %s", m.Name, m.Total.StringFixed(2)))
	}
	return lines
}
