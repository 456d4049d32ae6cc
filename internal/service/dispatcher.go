package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
	"github.com/finzap/finzap/internal/repository"
	"github.com/finzap/finzap/internal/whatsapp"
)

// Dispatcher drives the full lifecycle of one inbound message: user lookup,
// conversation resolution, idempotent persistence, classification, plan
// execution and the outbound reply. It never returns an error to the caller;
// failures degrade into an apology reply or, at worst, a log line.
type Dispatcher struct {
	users         *UserService
	conversations *ConversationService
	messages      MessageStore
	ledger        *LedgerService
	summaries     *SummaryService
	classifier    *Classifier
	composer      *Composer
	sender        Sender
}

func NewDispatcher(
	users *UserService,
	conversations *ConversationService,
	messages MessageStore,
	ledger *LedgerService,
	summaries *SummaryService,
	classifier *Classifier,
	composer *Composer,
	sender Sender,
) *Dispatcher {
	return &Dispatcher{
		users:         users,
		conversations: conversations,
		messages:      messages,
		ledger:        ledger,
		summaries:     summaries,
		classifier:    classifier,
		composer:      composer,
		sender:        sender,
	}
}

// HandleInbound processes one message end to end. A message whose wamid was
// already persisted is dropped without a reply, making webhook redelivery
// harmless.
func (d *Dispatcher) HandleInbound(ctx context.Context, in whatsapp.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling message", "wamid", in.WAMID, "panic", r)
		}
	}()

	log := slog.With("wamid", in.WAMID, "from", in.From)

	user, isNew, err := d.users.FindOrCreate(ctx, in.From, in.ContactName)
	if err != nil {
		log.Error("user lookup failed", "error", err)
		d.send(ctx, in.From, d.composer.Apology(), in.WAMID)
		return
	}
	log = log.With("user_id", user.ID)

	conv, err := d.conversations.Resolve(ctx, user.ID, in.Timestamp)
	if err != nil {
		log.Error("conversation resolution failed", "error", err)
		d.send(ctx, user.Phone, d.composer.Apology(), in.WAMID)
		return
	}

	var replyToID *int64
	if in.ReplyToWAMID != "" {
		if quoted, err := d.messages.GetByWAMID(ctx, in.ReplyToWAMID); err != nil {
			log.Error("quoted message lookup failed", "error", err)
		} else if quoted != nil {
			replyToID = &quoted.ID
		}
	}

	var body *string
	if in.Type == "text" && in.Body != "" {
		body = &in.Body
	}
	msg, created, err := d.messages.Insert(ctx, repository.InsertMessageParams{
		ConversationID: conv.ID,
		UserID:         user.ID,
		WAMID:          in.WAMID,
		Direction:      domain.DirectionInbound,
		MessageType:    in.Type,
		Body:           body,
		ReplyToID:      replyToID,
		SentAt:         in.Timestamp,
	})
	if err != nil {
		log.Error("message persistence failed", "error", err)
		d.send(ctx, user.Phone, d.composer.Apology(), in.WAMID)
		return
	}
	if !created {
		log.Info("duplicate message dropped")
		return
	}

	reply, closeConv := d.reply(ctx, log, user, conv, msg, in, isNew)

	providerID, ok := d.send(ctx, user.Phone, reply, in.WAMID)
	if ok {
		outBody := reply
		if _, _, err := d.messages.Insert(ctx, repository.InsertMessageParams{
			ConversationID: conv.ID,
			UserID:         user.ID,
			WAMID:          providerID,
			Direction:      domain.DirectionOutbound,
			MessageType:    "text",
			Body:           &outBody,
			ReplyToID:      &msg.ID,
			SentAt:         time.Now().UTC(),
		}); err != nil {
			log.Error("outbound persistence failed", "error", err)
		}
	}

	if closeConv {
		if err := d.conversations.Close(ctx, conv.ID); err != nil {
			log.Error("conversation close failed", "error", err)
		}
	}
}

// reply chooses the response text. First contact gets the onboarding message
// with no model call; unsupported media types get a fixed notice; everything
// else goes through the classifier.
func (d *Dispatcher) reply(ctx context.Context, log *slog.Logger, user *domain.User, conv *domain.Conversation, msg *domain.Message, in whatsapp.Inbound, isNew bool) (string, bool) {
	if isNew {
		return d.composer.Onboarding(user), false
	}
	if in.Type != "text" {
		return d.composer.TextOnly(), false
	}

	history, err := d.messages.History(ctx, conv.ID, config.HistoryWindow)
	if err != nil {
		log.Error("history load failed", "error", err)
		return d.composer.Apology(), false
	}

	plan, aiLog := d.classifier.Classify(ctx, user, history)
	if aiLog != nil {
		if err := d.messages.LinkAILog(ctx, msg.ID, aiLog.ID); err != nil {
			log.Error("ai log link failed", "error", err)
		}
	}
	log.Info("plan classified", "intent", plan.Intent())

	text := d.execute(ctx, log, user, plan)
	return text, plan.Meta().CloseConversation
}

func (d *Dispatcher) execute(ctx context.Context, log *slog.Logger, user *domain.User, plan domain.Plan) string {
	switch p := plan.(type) {
	case domain.RecordExpensePlan:
		expense, category, err := d.ledger.RecordExpense(ctx, user, p)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.ExpenseRecorded(expense, category.Name)

	case domain.RecordIncomePlan:
		income, err := d.ledger.RecordIncome(ctx, user, p)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.IncomeRecorded(income)

	case domain.DeleteLastExpensePlan:
		expense, err := d.ledger.DeleteLastExpense(ctx, user)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.ExpenseDeleted(expense)

	case domain.EditLastExpensePlan:
		expense, err := d.ledger.EditLastExpense(ctx, user, p)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.ExpenseEdited(expense)

	case domain.ChangeCategoryPlan:
		expense, category, err := d.ledger.ChangeLastExpenseCategory(ctx, user, p)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.CategoryChanged(expense, category.Name)

	case domain.CreateCategoryPlan:
		category, createdNow, err := d.ledger.CreateCategory(ctx, user, p.Category)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.CategoryCreated(category.Name, createdNow)

	case domain.DeleteCategoryPlan:
		category, err := d.ledger.DeleteCategory(ctx, user, p.Category)
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return d.composer.CategoryNotFound(Capitalize(p.Category))
		}
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.CategoryDeleted(category.Name)

	case domain.ListCategoriesPlan:
		categories, err := d.ledger.ListCategories(ctx, user)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return d.composer.CategoryList(categories)

	case domain.MonthlySummaryPlan:
		text, err := d.summaries.CurrentMonth(ctx, user)
		if err != nil {
			return d.executionFailure(log, p.Meta(), err)
		}
		return text

	case domain.GreetingPlan:
		return withFallback(p.ResponseText, d.composer.Greeting(user))
	case domain.FarewellPlan:
		return withFallback(p.ResponseText, d.composer.Farewell())
	case domain.HelpPlan:
		return withFallback(p.ResponseText, d.composer.Help())
	case domain.ThanksPlan:
		return withFallback(p.ResponseText, d.composer.Thanks())
	default:
		return withFallback(plan.Meta().ResponseText, d.composer.Undefined())
	}
}

// executionFailure maps a plan-execution error to the reply the user sees.
// Missing fields and an empty ledger are routine outcomes with their own
// wording; anything else is logged and apologized for.
func (d *Dispatcher) executionFailure(log *slog.Logger, meta domain.PlanMeta, err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return withFallback(meta.ResponseText, d.composer.Undefined())
	case errors.Is(err, domain.ErrNoExpenses):
		return d.composer.NoExpenses()
	default:
		log.Error("plan execution failed", "error", err)
		return d.composer.Apology()
	}
}

func (d *Dispatcher) send(ctx context.Context, to, body, replyToWAMID string) (string, bool) {
	sendCtx, cancel := context.WithTimeout(ctx, config.SendTimeout)
	defer cancel()
	id, err := d.sender.SendText(sendCtx, to, body, replyToWAMID)
	if err != nil {
		slog.Error("send failed", "to", to, "error", err)
		return "", false
	}
	return id, true
}

func withFallback(text, canned string) string {
	if text != "" {
		return text
	}
	return canned
}
