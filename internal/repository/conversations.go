package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finzap/finzap/internal/domain"
)

type Conversations struct {
	pool *pgxpool.Pool
}

func NewConversations(pool *pgxpool.Pool) *Conversations {
	return &Conversations{pool: pool}
}

const conversationColumns = `id, user_id, status, summary, started_at, ended_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.Summary, &c.StartedAt, &c.EndedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Conversations) GetActive(ctx context.Context, userID int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 AND status = 'ACTIVE'`,
		userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active conversation: %w", err)
	}
	return c, nil
}

func (r *Conversations) Create(ctx context.Context, userID int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id) VALUES ($1)
		RETURNING `+conversationColumns, userID))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (r *Conversations) Close(ctx context.Context, conversationID int64, endedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET status = 'CLOSED', ended_at = $2
		WHERE id = $1 AND status = 'ACTIVE'`, conversationID, endedAt)
	if err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	return nil
}
