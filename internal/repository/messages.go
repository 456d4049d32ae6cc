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

type Messages struct {
	pool *pgxpool.Pool
}

func NewMessages(pool *pgxpool.Pool) *Messages {
	return &Messages{pool: pool}
}

// InsertMessageParams covers both directions; Body is nil for non-text
// inbound messages.
type InsertMessageParams struct {
	ConversationID int64
	UserID         int64
	WAMID          string
	Direction      domain.Direction
	MessageType    string
	Body           *string
	ReplyToID      *int64
	SentAt         time.Time
}

const messageColumns = `id, conversation_id, user_id, wamid, direction, message_type, body, reply_to_id, ai_log_id, sent_at, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.WAMID, &m.Direction,
		&m.MessageType, &m.Body, &m.ReplyToID, &m.AILogID, &m.SentAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert persists a message. The wamid unique constraint makes this the
// atomic dedup point: a concurrent redelivery loses the insert and gets
// (nil, false, nil) instead of an error.
func (r *Messages) Insert(ctx context.Context, p InsertMessageParams) (*domain.Message, bool, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, user_id, wamid, direction, message_type, body, reply_to_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (wamid) DO NOTHING
		RETURNING `+messageColumns,
		p.ConversationID, p.UserID, p.WAMID, p.Direction, p.MessageType, p.Body, p.ReplyToID, p.SentAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}
	return m, true, nil
}

// GetByWAMID returns nil without error when no message has that wamid;
// reply-to references to unknown messages are routine.
func (r *Messages) GetByWAMID(ctx context.Context, wamid string) (*domain.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE wamid = $1`, wamid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message by wamid: %w", err)
	}
	return m, nil
}

// History returns the newest limit messages of a conversation in
// chronological order.
func (r *Messages) History(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation history: %w", err)
	}
	// newest-first from the query, oldest-first for the caller
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastActivity returns the timestamp of the newest message in a
// conversation, or the zero time if it has none.
func (r *Messages) LastActivity(ctx context.Context, conversationID int64) (time.Time, error) {
	var ts *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT max(sent_at) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("last activity: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

func (r *Messages) LinkAILog(ctx context.Context, messageID, aiLogID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET ai_log_id = $2 WHERE id = $1`, messageID, aiLogID)
	if err != nil {
		return fmt.Errorf("link ai log: %w", err)
	}
	return nil
}
