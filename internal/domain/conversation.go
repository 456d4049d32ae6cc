package domain

import "time"

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "ACTIVE"
	ConversationClosed ConversationStatus = "CLOSED"
)

// Conversation is a bounded session of messages between one user and the
// assistant. A user has at most one ACTIVE conversation at any instant;
// CLOSED is terminal.
type Conversation struct {
	ID        int64
	UserID    int64
	Status    ConversationStatus
	Summary   *string
	StartedAt time.Time
	EndedAt   *time.Time
}

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Message is an immutable record of one exchanged text. WAMID is the
// provider-assigned external id and the global dedup key. ReplyToID and
// AILogID reference other rows by id, never by pointer.
type Message struct {
	ID             int64
	ConversationID int64
	UserID         int64
	WAMID          string
	Direction      Direction
	MessageType    string
	Body           *string
	ReplyToID      *int64
	AILogID        *int64
	SentAt         time.Time
	CreatedAt      time.Time
}
