package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
)

const classifierPrompt = "assistente_financeiro_v1.txt"

// FallbackReply is the fixed answer for transient model failures.
const FallbackReply = "Desculpe, não consegui processar sua solicitação no momento. Tente novamente mais tarde."

// Classifier turns a conversation history into a typed Plan with one model
// call. It never returns an error for bad model output: malformed responses
// degrade to an UndefinedPlan.
type Classifier struct {
	generator    Generator
	aiLogs       AILogStore
	ledger       LedgerStore
	systemPrompt string
}

func NewClassifier(generator Generator, aiLogs AILogStore, ledger LedgerStore, prompts fs.FS) (*Classifier, error) {
	raw, err := fs.ReadFile(prompts, classifierPrompt)
	if err != nil {
		return nil, fmt.Errorf("load classifier prompt: %w", err)
	}
	return &Classifier{
		generator:    generator,
		aiLogs:       aiLogs,
		ledger:       ledger,
		systemPrompt: string(raw),
	}, nil
}

// Classify builds the prompt from the bounded history window, calls the
// model once and parses the first balanced JSON object out of the raw
// response. The AILog row for the call, when one was persisted, is returned
// so the caller can link it to the inbound message.
func (c *Classifier) Classify(ctx context.Context, user *domain.User, history []domain.Message) (domain.Plan, *domain.AILog) {
	prompt := c.buildPrompt(ctx, user, history)

	callCtx, cancel := context.WithTimeout(ctx, config.ModelTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.generator.Generate(callCtx, prompt)
	duration := time.Since(start)
	if err != nil {
		// Transient model failure: fixed fallback, no AILog row.
		slog.Error("model call failed", "error", err, "user_id", user.ID,
			"prompt_len", len(prompt), "duration", duration)
		return domain.UndefinedPlan{PlanMeta: domain.PlanMeta{ResponseText: FallbackReply}}, nil
	}

	aiLog, err := c.aiLogs.Create(ctx, user.ID, prompt, raw, int(duration.Milliseconds()))
	if err != nil {
		slog.Error("persist ai log", "error", err, "user_id", user.ID)
		aiLog = nil
	}

	return ParsePlan(raw), aiLog
}

func (c *Classifier) buildPrompt(ctx context.Context, user *domain.User, history []domain.Message) string {
	categories := config.SentinelCategory
	if cats, err := c.ledger.ListCategories(ctx, user.ID); err == nil && len(cats) > 0 {
		names := make([]string, len(cats))
		for i, cat := range cats {
			names[i] = cat.Name
		}
		categories = strings.Join(names, ", ")
	}
	system := strings.ReplaceAll(c.systemPrompt, "{{CATEGORIAS}}", categories)

	country := "desconhecido"
	if user.CountryCode != nil {
		country = *user.CountryCode
	}

	var b strings.Builder
	b.WriteString(system)
	fmt.Fprintf(&b, "\nInformações do usuário atual: Nome=%s, País=%s.\n", user.DisplayName(), country)
	b.WriteString("\n--- Histórico da Conversa ---\n")
	for _, msg := range history {
		role := "model"
		if msg.Direction == domain.DirectionInbound {
			role = "user"
		}
		body := ""
		if msg.Body != nil {
			body = *msg.Body
		}
		fmt.Fprintf(&b, "%s: %s\n", role, body)
	}
	b.WriteString("model:")
	return b.String()
}

// rawPlan is the untyped shape of the model's JSON answer. ParsePlan is the
// only place it exists; everything downstream sees typed Plan variants.
type rawPlan struct {
	Intent             string `json:"intent"`
	Amount             any    `json:"amount"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	PaymentMethod      string `json:"payment_method"`
	IncomeType         string `json:"income_type"`
	ResponseText       string `json:"response_text"`
	ConversationAction string `json:"conversation_action"`
}

// ParsePlan extracts the first balanced {...} object from the raw model
// output and converts it into a Plan variant. Any failure along the way —
// no JSON, malformed JSON, missing or unknown intent — yields an
// UndefinedPlan, never an error.
func ParsePlan(raw string) domain.Plan {
	objText, ok := extractJSONObject(raw)
	if !ok {
		return domain.UndefinedPlan{}
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(objText), &rp); err != nil {
		return domain.UndefinedPlan{}
	}

	meta := domain.PlanMeta{
		ResponseText:      rp.ResponseText,
		CloseConversation: rp.ConversationAction == "close" || rp.Intent == string(domain.IntentFarewell),
	}

	switch domain.Intent(rp.Intent) {
	case domain.IntentRecordExpense:
		amount, _ := parseAmount(rp.Amount)
		return domain.RecordExpensePlan{
			PlanMeta:      meta,
			Amount:        amount,
			Description:   strings.TrimSpace(rp.Description),
			Category:      strings.TrimSpace(rp.Category),
			PaymentMethod: strings.TrimSpace(rp.PaymentMethod),
		}
	case domain.IntentRecordIncome:
		amount, _ := parseAmount(rp.Amount)
		return domain.RecordIncomePlan{
			PlanMeta:    meta,
			Amount:      amount,
			Description: strings.TrimSpace(rp.Description),
			IncomeType:  domain.NormalizeIncomeType(rp.IncomeType),
		}
	case domain.IntentDeleteLastExpense:
		return domain.DeleteLastExpensePlan{PlanMeta: meta}
	case domain.IntentEditLastExpense:
		plan := domain.EditLastExpensePlan{PlanMeta: meta}
		if amount, ok := parseAmount(rp.Amount); ok {
			plan.Amount = &amount
		}
		if desc := strings.TrimSpace(rp.Description); desc != "" {
			plan.Description = &desc
		}
		return plan
	case domain.IntentChangeCategory:
		return domain.ChangeCategoryPlan{PlanMeta: meta, Category: strings.TrimSpace(rp.Category)}
	case domain.IntentCreateCategory:
		return domain.CreateCategoryPlan{PlanMeta: meta, Category: strings.TrimSpace(rp.Category)}
	case domain.IntentDeleteCategory:
		return domain.DeleteCategoryPlan{PlanMeta: meta, Category: strings.TrimSpace(rp.Category)}
	case domain.IntentListCategories:
		return domain.ListCategoriesPlan{PlanMeta: meta}
	case domain.IntentMonthlySummary:
		return domain.MonthlySummaryPlan{PlanMeta: meta}
	case domain.IntentGreeting:
		return domain.GreetingPlan{PlanMeta: meta}
	case domain.IntentFarewell:
		return domain.FarewellPlan{PlanMeta: meta}
	case domain.IntentHelp:
		return domain.HelpPlan{PlanMeta: meta}
	case domain.IntentThanks:
		return domain.ThanksPlan{PlanMeta: meta}
	default:
		return domain.UndefinedPlan{PlanMeta: meta}
	}
}

// extractJSONObject returns the first balanced top-level {...} object in s.
// The model often wraps its JSON in prose or markdown fences, so a full
// document parse is not an option. Braces inside JSON strings are ignored.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// parseAmount coerces the model's amount field — a JSON number, or a string
// possibly in Brazilian format ("1.234,56", "15,50", "R$ 20") — into a
// 2-place decimal.
func parseAmount(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case float64:
		if value == 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(value).Round(2), true
	case string:
		s := strings.TrimSpace(value)
		s = strings.TrimPrefix(s, "R$")
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, false
		}
		if strings.Contains(s, ",") {
			// Brazilian format: dots are thousands separators.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsZero() {
			return decimal.Zero, false
		}
		return d.Round(2), true
	default:
		return decimal.Zero, false
	}
}
