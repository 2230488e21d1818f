package services

import (
	"context"
	"errors"

	"atendai/internal/models"
)

// ErrConversationNotFound is returned by ConversationStore.FindByPhone when
// no durable record exists for the phone
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore is the durable conversation store collaborator.
// The cache hydrates from it and the ingestion pipeline writes through to it.
type ConversationStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.ConversationSnapshot, error)
	CreateConversation(ctx context.Context, phone, userID string) (*models.StoredConversation, error)
	UpsertAggregate(ctx context.Context, phone string, update models.ConversationUpdate) error
	AppendInteraction(ctx context.Context, record models.InteractionRecord) error
}

// UserDirectory resolves customer accounts by phone or id.
// A missing user is (nil, nil), not an error.
type UserDirectory interface {
	FindUser(ctx context.Context, phone, userID string) (*models.User, error)
}

// SubscriptionQuery resolves the most recent relevant subscription for a user.
// No matching subscription is (nil, nil), not an error.
type SubscriptionQuery interface {
	FindCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// TicketQuery lists a user's most recent support tickets, newest first
type TicketQuery interface {
	ListTickets(ctx context.Context, userID string, limit int) ([]models.SupportTicket, error)
}

// InteractionQuery lists a user's most recent interactions, newest first
type InteractionQuery interface {
	ListInteractions(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error)
}

// SessionStore resolves the most recent non-expired active session
// for a (userID, phone) pair. No live session is (nil, nil).
type SessionStore interface {
	FindActiveSession(ctx context.Context, userID, phone string) (*models.Session, error)
}
