package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AILog is an append-only audit record of one model invocation. The
// repository exposes no update or delete for it.
type AILog struct {
	ID         int64
	UserID     *int64
	Prompt     string
	Response   string
	DurationMs int
	TokensUsed *int
	Cost       *decimal.Decimal
	CreatedAt  time.Time
}
