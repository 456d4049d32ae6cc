package config

import "time"

const (
	// A conversation with no traffic for this long is closed and a new one
	// is started on the next inbound message.
	ConversationTimeout = 1 * time.Hour

	// How many messages of the current conversation are sent to the
	// classifier, oldest first.
	HistoryWindow = 10

	// Model call timeout
	ModelTimeout = 30 * time.Second

	// Outbound delivery timeout
	SendTimeout = 15 * time.Second

	// Top expense categories shown in the monthly summary
	SummaryTopCategories = 3

	// Fallback category that always exists for every user. Expenses of a
	// deleted category are moved here.
	SentinelCategory = "Outros"
)

// DefaultCategories is seeded for every new user.
var DefaultCategories = []string{
	"Alimentação",
	"Transporte",
	"Moradia",
	"Lazer",
	"Compras",
	"Saúde",
	"Educação",
	"Outros",
}

// DefaultPaymentMethod pairs a method name with an optional invoice due day.
type DefaultPaymentMethod struct {
	Name   string
	DueDay *int
}

// DefaultPaymentMethods is seeded for every new user. The first entry
// becomes the user's default.
var DefaultPaymentMethods = []DefaultPaymentMethod{
	{Name: "Crédito", DueDay: intPtr(10)},
	{Name: "Débito"},
	{Name: "Pix"},
	{Name: "Dinheiro"},
}

func intPtr(v int) *int { return &v }
