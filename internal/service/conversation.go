package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
)

type ConversationService struct {
	conversations ConversationStore
	messages      MessageStore
	timeout       time.Duration
}

func NewConversationService(conversations ConversationStore, messages MessageStore) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		timeout:       config.ConversationTimeout,
	}
}

// Resolve returns the conversation an arriving message belongs to. A stale
// ACTIVE conversation (no traffic within the timeout) is closed and a fresh
// one is started; the timeout is only ever evaluated here, at arrival time.
func (s *ConversationService) Resolve(ctx context.Context, userID int64, arrivedAt time.Time) (*domain.Conversation, error) {
	conv, err := s.conversations.GetActive(ctx, userID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return s.conversations.Create(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	lastAt, err := s.messages.LastActivity(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if !lastAt.IsZero() && arrivedAt.Sub(lastAt) > s.timeout {
		if err := s.conversations.Close(ctx, conv.ID, arrivedAt); err != nil {
			return nil, fmt.Errorf("close stale conversation: %w", err)
		}
		slog.Info("conversation closed by inactivity", "conversation_id", conv.ID, "user_id", userID)
		return s.conversations.Create(ctx, userID)
	}
	return conv, nil
}

// Close ends a conversation after a farewell or end-of-dialogue signal.
func (s *ConversationService) Close(ctx context.Context, conversationID int64) error {
	return s.conversations.Close(ctx, conversationID, time.Now())
}
