package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
)

const insightsPrompt = "insights_mensais_v1.txt"

// Canned reply templates. These are the deterministic side of the response
// surface; anything free-form goes through Insights.
const (
	replyHelp = "Com certeza! Eu sou o Fin, seu assistente para registro de despesas. Veja o que você pode fazer:\n\n" +
		"1️⃣ *Registrar uma Despesa:*\nBasta me enviar uma mensagem no formato `VALOR DESCRIÇÃO`.\nExemplo: `25,50 almoço`\n\n" +
		"2️⃣ *Registrar uma Renda:*\nEnvie algo como `recebi 2000 de salário`.\n\n" +
		"3️⃣ *Resumo do Mês:*\nEnvie `resumo` para ver entradas, saídas e saldo.\n\n" +
		"Posso te ajudar com mais alguma coisa? 😉"

	replyUndefined = "Desculpe, não entendi. Para registrar uma despesa, por favor, envie no formato: `VALOR DESCRIÇÃO` (ex: `15,90 padaria`). Se precisar de ajuda, é só mandar `ajuda`."

	replyGreeting = "Olá! Sou o Fin, seu assistente de despesas. Como posso te ajudar hoje? Para registrar um gasto, é só me enviar `VALOR DESCRIÇÃO`."

	replyThanks = "De nada! 😊 Se precisar de mais alguma coisa, é só chamar."

	replyFarewell = "Até a próxima! 👋"

	replyTextOnly = "Desculpe, no momento só aceitamos mensagens de texto. Por favor, envie sua solicitação em formato de texto."

	replyApology = "Desculpe, algo deu errado por aqui. 😓 Tente novamente em instantes."

	replyNoExpenses = "Você ainda não tem nenhum gasto registrado, então não há o que alterar por aqui. 😉"
)

// Composer produces the outbound response text for each routed intent:
// canned templates for the deterministic intents and a second generative
// pass for the monthly insights narrative.
type Composer struct {
	generator      Generator
	aiLogs         AILogStore
	insightsPrompt string
}

func NewComposer(generator Generator, aiLogs AILogStore, prompts fs.FS) (*Composer, error) {
	raw, err := fs.ReadFile(prompts, insightsPrompt)
	if err != nil {
		return nil, fmt.Errorf("load insights prompt: %w", err)
	}
	return &Composer{generator: generator, aiLogs: aiLogs, insightsPrompt: string(raw)}, nil
}

// Onboarding is the fixed first-contact greeting: brand-new users never go
// through classification so the first impression is deterministic.
func (c *Composer) Onboarding(user *domain.User) string {
	return fmt.Sprintf("Olá, %s! 👋 Bem-vindo(a) ao Fin!\n\n"+
		"Eu vou te ajudar a registrar suas despesas de forma rápida e fácil. "+
		"Para começar, basta enviar uma mensagem no formato:\n\n"+
		"*VALOR DESCRIÇÃO*\n\nExemplo: *15,50 almoço no restaurante*",
		user.DisplayName())
}

func (c *Composer) Greeting(user *domain.User) string {
	if user.FirstName != "" {
		return fmt.Sprintf("Olá, %s! Sou o Fin, seu assistente de despesas. Como posso te ajudar hoje?", user.FirstName)
	}
	return replyGreeting
}

func (c *Composer) Help() string      { return replyHelp }
func (c *Composer) Thanks() string    { return replyThanks }
func (c *Composer) Farewell() string  { return replyFarewell }
func (c *Composer) TextOnly() string  { return replyTextOnly }
func (c *Composer) Apology() string   { return replyApology }
func (c *Composer) Undefined() string { return replyUndefined }

func (c *Composer) NoExpenses() string { return replyNoExpenses }

func (c *Composer) ExpenseRecorded(e *domain.Expense, category string) string {
	return fmt.Sprintf("✅ Despesa registrada: R$ %s em \"%s\" (Categoria: %s).",
		e.Amount.StringFixed(2), e.Description, category)
}

func (c *Composer) IncomeRecorded(in *domain.Income) string {
	kind := "variável"
	if in.IncomeType == domain.IncomeFixed {
		kind = "fixa"
	}
	return fmt.Sprintf("✅ Renda %s registrada: R$ %s de \"%s\".",
		kind, in.Amount.StringFixed(2), in.Description)
}

func (c *Composer) ExpenseDeleted(e *domain.Expense) string {
	return fmt.Sprintf("🗑️ Pronto! Apaguei seu último gasto: R$ %s em \"%s\".",
		e.Amount.StringFixed(2), e.Description)
}

func (c *Composer) ExpenseEdited(e *domain.Expense) string {
	return fmt.Sprintf("✏️ Gasto atualizado: R$ %s em \"%s\".",
		e.Amount.StringFixed(2), e.Description)
}

func (c *Composer) CategoryChanged(e *domain.Expense, category string) string {
	return fmt.Sprintf("🔄 Movi seu último gasto (R$ %s, \"%s\") para a categoria %s.",
		e.Amount.StringFixed(2), e.Description, category)
}

func (c *Composer) CategoryCreated(name string, created bool) string {
	if created {
		return fmt.Sprintf("📁 Categoria *%s* criada!", name)
	}
	return fmt.Sprintf("A categoria *%s* já existe. 😉", name)
}

func (c *Composer) CategoryDeleted(name string) string {
	return fmt.Sprintf("🗑️ Categoria *%s* apagada. Os gastos dela foram movidos para *%s*.",
		name, config.SentinelCategory)
}

func (c *Composer) CategoryNotFound(name string) string {
	return fmt.Sprintf("Não encontrei a categoria *%s* por aqui. Envie `categorias` para ver as suas.", name)
}

func (c *Composer) CategoryList(categories []domain.Category) string {
	if len(categories) == 0 {
		return "Você ainda não tem nenhuma categoria de despesa registrada."
	}
	var b strings.Builder
	b.WriteString("Aqui estão suas categorias de despesa atuais:\n\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "• %s\n", cat.Name)
	}
	b.WriteString("\nQuando você registra uma despesa, eu tento associá-la a uma dessas categorias automaticamente! 📊")
	return b.String()
}

// Insights runs the second generative pass over the structured summary
// data. Failures are soft: the summary just goes out without a narrative.
func (c *Composer) Insights(ctx context.Context, user *domain.User, data map[string]any) string {
	payload, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	prompt := strings.ReplaceAll(c.insightsPrompt, "{{DADOS}}", string(payload))

	callCtx, cancel := context.WithTimeout(ctx, config.ModelTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.generator.Generate(callCtx, prompt)
	duration := time.Since(start)
	if err != nil {
		slog.Error("insights call failed", "error", err, "user_id", user.ID, "duration", duration)
		return ""
	}

	if _, err := c.aiLogs.Create(ctx, user.ID, prompt, raw, int(duration.Milliseconds())); err != nil {
		slog.Error("persist ai log", "error", err, "user_id", user.ID)
	}

	return StripFences(raw)
}

// StripFences removes a markdown code fence wrapping, which the model adds
// even when told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
