package domain

import "github.com/shopspring/decimal"

// Intent tags what the classifier decided the user wants.
type Intent string

const (
	IntentRecordExpense     Intent = "record_expense"
	IntentRecordIncome      Intent = "record_income"
	IntentDeleteLastExpense Intent = "delete_last_expense"
	IntentEditLastExpense   Intent = "edit_last_expense"
	IntentChangeCategory    Intent = "change_category"
	IntentCreateCategory    Intent = "create_category"
	IntentDeleteCategory    Intent = "delete_category"
	IntentListCategories    Intent = "list_categories"
	IntentMonthlySummary    Intent = "monthly_summary"
	IntentGreeting          Intent = "greeting"
	IntentFarewell          Intent = "farewell"
	IntentHelp              Intent = "help"
	IntentThanks            Intent = "thanks"
	IntentUndefined         Intent = "undefined"
)

// PlanMeta carries the fields every plan has: the response text the model
// suggested and whether the conversation should be closed afterwards.
type PlanMeta struct {
	ResponseText      string
	CloseConversation bool
}

func (m PlanMeta) Meta() PlanMeta { return m }

// Plan is the typed result of one classification. Each intent has its own
// variant carrying only the fields that intent uses; the classifier's parse
// step is the single place where untyped model output becomes a Plan.
type Plan interface {
	Intent() Intent
	Meta() PlanMeta
}

type RecordExpensePlan struct {
	PlanMeta
	Amount        decimal.Decimal // zero means the model extracted none
	Description   string
	Category      string
	PaymentMethod string
}

func (RecordExpensePlan) Intent() Intent { return IntentRecordExpense }

type RecordIncomePlan struct {
	PlanMeta
	Amount      decimal.Decimal
	Description string
	IncomeType  IncomeType
}

func (RecordIncomePlan) Intent() Intent { return IntentRecordIncome }

type DeleteLastExpensePlan struct{ PlanMeta }

func (DeleteLastExpensePlan) Intent() Intent { return IntentDeleteLastExpense }

// EditLastExpensePlan is a partial update: nil fields stay untouched.
type EditLastExpensePlan struct {
	PlanMeta
	Amount      *decimal.Decimal
	Description *string
}

func (EditLastExpensePlan) Intent() Intent { return IntentEditLastExpense }

type ChangeCategoryPlan struct {
	PlanMeta
	Category string
}

func (ChangeCategoryPlan) Intent() Intent { return IntentChangeCategory }

type CreateCategoryPlan struct {
	PlanMeta
	Category string
}

func (CreateCategoryPlan) Intent() Intent { return IntentCreateCategory }

type DeleteCategoryPlan struct {
	PlanMeta
	Category string
}

func (DeleteCategoryPlan) Intent() Intent { return IntentDeleteCategory }

type ListCategoriesPlan struct{ PlanMeta }

func (ListCategoriesPlan) Intent() Intent { return IntentListCategories }

type MonthlySummaryPlan struct{ PlanMeta }

func (MonthlySummaryPlan) Intent() Intent { return IntentMonthlySummary }

type GreetingPlan struct{ PlanMeta }

func (GreetingPlan) Intent() Intent { return IntentGreeting }

type FarewellPlan struct{ PlanMeta }

func (FarewellPlan) Intent() Intent { return IntentFarewell }

type HelpPlan struct{ PlanMeta }

func (HelpPlan) Intent() Intent { return IntentHelp }

type ThanksPlan struct{ PlanMeta }

func (ThanksPlan) Intent() Intent { return IntentThanks }

// UndefinedPlan is the safe-degradation result: returned whenever the model
// output could not be parsed or named an unknown intent.
type UndefinedPlan struct{ PlanMeta }

func (UndefinedPlan) Intent() Intent { return IntentUndefined }
