package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finzap/finzap/internal/domain"
)

// AILogs is append-only: it deliberately exposes no update or delete.
type AILogs struct {
	pool *pgxpool.Pool
}

func NewAILogs(pool *pgxpool.Pool) *AILogs {
	return &AILogs{pool: pool}
}

func (r *AILogs) Create(ctx context.Context, userID int64, prompt, response string, durationMs int) (*domain.AILog, error) {
	var l domain.AILog
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ai_logs (user_id, prompt, response, duration_ms)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, prompt, response, duration_ms, tokens_used, cost, created_at`,
		userID, prompt, response, durationMs).
		Scan(&l.ID, &l.UserID, &l.Prompt, &l.Response, &l.DurationMs, &l.TokensUsed, &l.Cost, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create ai log: %w", err)
	}
	return &l, nil
}
