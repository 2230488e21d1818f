package services

import (
	"context"
	"testing"
	"time"

	"atendai/internal/models"
)

// fakeConversationStore is an in-memory ConversationStore for tests
type fakeConversationStore struct {
	snapshots map[string]*models.ConversationSnapshot
	findErr   error

	created      []string
	upserts      []models.ConversationUpdate
	interactions []models.InteractionRecord
	upsertErr    error
	appendErr    error
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{snapshots: make(map[string]*models.ConversationSnapshot)}
}

func (f *fakeConversationStore) FindByPhone(ctx context.Context, phone string) (*models.ConversationSnapshot, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	snapshot, exists := f.snapshots[phone]
	if !exists {
		return nil, ErrConversationNotFound
	}
	return snapshot, nil
}

func (f *fakeConversationStore) CreateConversation(ctx context.Context, phone, userID string) (*models.StoredConversation, error) {
	f.created = append(f.created, phone)
	return &models.StoredConversation{
		ID:            "conv-" + phone,
		CustomerPhone: phone,
		UserID:        userID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}

func (f *fakeConversationStore) UpsertAggregate(ctx context.Context, phone string, update models.ConversationUpdate) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, update)
	return nil
}

func (f *fakeConversationStore) AppendInteraction(ctx context.Context, record models.InteractionRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.interactions = append(f.interactions, record)
	return nil
}

type fakeUserDirectory struct {
	user *models.User
	err  error
}

func (f *fakeUserDirectory) FindUser(ctx context.Context, phone, userID string) (*models.User, error) {
	return f.user, f.err
}

type fakeSubscriptionQuery struct {
	sub *models.Subscription
	err error
}

func (f *fakeSubscriptionQuery) FindCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return f.sub, f.err
}

type fakeTicketQuery struct {
	tickets []models.SupportTicket
	err     error
}

func (f *fakeTicketQuery) ListTickets(ctx context.Context, userID string, limit int) ([]models.SupportTicket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.tickets) > limit {
		return f.tickets[:limit], nil
	}
	return f.tickets, nil
}

type fakeInteractionQuery struct {
	records []models.InteractionRecord
	err     error
}

func (f *fakeInteractionQuery) ListInteractions(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeSessionStore struct {
	session *models.Session
	err     error
}

func (f *fakeSessionStore) FindActiveSession(ctx context.Context, userID, phone string) (*models.Session, error) {
	return f.session, f.err
}

// testCacheConfig returns small bounds suitable for unit tests
func testCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:               10,
		TTL:                   30 * time.Minute,
		SweepInterval:         time.Hour,
		MaxMessagesPerContext: 50,
		SummaryThreshold:      10,
	}
}

func newTestCache(t *testing.T, store ConversationStore, config CacheConfig) *ContextCacheService {
	t.Helper()
	cache, err := NewContextCacheService(store, config, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache
}
