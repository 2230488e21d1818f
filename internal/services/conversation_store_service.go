package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"atendai/internal/database"
	"atendai/internal/models"

	"github.com/google/uuid"
)

// ConversationStoreService is the MySQL-backed durable conversation store.
// Aggregates live in the conversations table; every ingested message lands as
// one append-only row in interactions.
type ConversationStoreService struct {
	db     *database.DB
	window int
}

// NewConversationStoreService creates the store. window bounds how many
// trailing interactions a hydration snapshot carries.
func NewConversationStoreService(db *database.DB, window int) *ConversationStoreService {
	if window <= 0 {
		window = 50
	}
	return &ConversationStoreService{db: db, window: window}
}

// FindByPhone loads the aggregate row plus the trailing message window.
// Returns ErrConversationNotFound when no aggregate exists for the phone.
func (s *ConversationStoreService) FindByPhone(ctx context.Context, phone string) (*models.ConversationSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_phone, COALESCE(user_id, ''), message_count,
		       COALESCE(last_intent, ''), COALESCE(last_sentiment, ''),
		       last_message_at, created_at, updated_at
		FROM conversations WHERE customer_phone = ?`, phone)

	var conv models.StoredConversation
	var lastMessageAt sql.NullTime
	err := row.Scan(&conv.ID, &conv.CustomerPhone, &conv.UserID, &conv.MessageCount,
		&conv.LastIntent, &conv.LastSentiment, &lastMessageAt, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}

	messages, err := s.recentMessages(ctx, phone)
	if err != nil {
		return nil, err
	}

	return &models.ConversationSnapshot{
		Conversation: &conv,
		Messages:     messages,
	}, nil
}

// recentMessages returns the trailing window in chronological order
func (s *ConversationStoreService) recentMessages(ctx context.Context, phone string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, COALESCE(intent, ''), COALESCE(sentiment, ''),
		       COALESCE(command_executed, ''), created_at
		FROM interactions
		WHERE customer_phone = ?
		ORDER BY created_at DESC
		LIMIT ?`, phone, s.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions for %s: %w", phone, err)
	}
	defer rows.Close()

	var newestFirst []models.Message
	for rows.Next() {
		var msg models.Message
		var command string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Intent,
			&msg.Sentiment, &command, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if command != "" {
			msg.Metadata = &models.MessageMetadata{CommandExecuted: command}
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}

	messages := make([]models.Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}
	return messages, nil
}

// CreateConversation inserts an empty aggregate row for a first interaction
func (s *ConversationStoreService) CreateConversation(ctx context.Context, phone, userID string) (*models.StoredConversation, error) {
	now := time.Now()
	conv := &models.StoredConversation{
		ID:            uuid.NewString(),
		CustomerPhone: phone,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, customer_phone, user_id, message_count, created_at, updated_at)
		VALUES (?, ?, NULLIF(?, ''), 0, ?, ?)`,
		conv.ID, phone, userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation for %s: %w", phone, err)
	}
	return conv, nil
}

// UpsertAggregate advances the aggregate row for one ingested message
func (s *ConversationStoreService) UpsertAggregate(ctx context.Context, phone string, update models.ConversationUpdate) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, customer_phone, user_id, message_count,
			last_intent, last_sentiment, last_message_at, created_at, updated_at)
		VALUES (?, ?, NULLIF(?, ''), 1, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			message_count = message_count + 1,
			user_id = COALESCE(NULLIF(VALUES(user_id), ''), user_id),
			last_intent = COALESCE(VALUES(last_intent), last_intent),
			last_sentiment = COALESCE(VALUES(last_sentiment), last_sentiment),
			last_message_at = VALUES(last_message_at),
			updated_at = VALUES(updated_at)`,
		uuid.NewString(), phone, update.UserID, update.LastIntent, update.LastSentiment,
		update.LastMessageAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation aggregate for %s: %w", phone, err)
	}
	return nil
}

// AppendInteraction writes one immutable interaction row
func (s *ConversationStoreService) AppendInteraction(ctx context.Context, record models.InteractionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, conversation_id, customer_phone, user_id,
			role, content, intent, sentiment, command_executed, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?)`,
		record.ID, record.ConversationID, record.CustomerPhone, record.UserID,
		record.Role, record.Content, record.Intent, record.Sentiment,
		record.CommandExecuted, record.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append interaction for %s: %w", record.CustomerPhone, err)
	}
	return nil
}
