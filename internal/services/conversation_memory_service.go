package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"atendai/internal/logging"
	"atendai/internal/models"

	"github.com/google/uuid"
)

// summaryFallbackWindow is how many trailing messages the computed summary
// fallback considers when no write-once summary exists yet
const summaryFallbackWindow = 10

// ConversationMemoryService is the message ingestion pipeline and the
// conversation-facing API of the core. Ingestion for one customer is
// serialized by a per-key mutex; different customers proceed in parallel.
type ConversationMemoryService struct {
	cache   *ContextCacheService
	store   ConversationStore
	topics  TopicExtractor
	metrics *Metrics

	persistDefault bool

	keyLocks map[string]*sync.Mutex
	keyMu    sync.Mutex
}

// NewConversationMemoryService creates the ingestion pipeline on top of a
// context cache. The store may be nil (no write-through).
func NewConversationMemoryService(cache *ContextCacheService, store ConversationStore, topics TopicExtractor, persistDefault bool, metrics *Metrics) *ConversationMemoryService {
	if topics == nil {
		topics = NewFrequencyTopicExtractor()
	}
	return &ConversationMemoryService{
		cache:          cache,
		store:          store,
		topics:         topics,
		metrics:        metrics,
		persistDefault: persistDefault,
		keyLocks:       make(map[string]*sync.Mutex),
	}
}

// lockKey returns the mutex serializing mutations for one customer phone
func (s *ConversationMemoryService) lockKey(phone string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	mu, exists := s.keyLocks[phone]
	if !exists {
		mu = &sync.Mutex{}
		s.keyLocks[phone] = mu
	}
	return mu
}

// GetContext returns the live context for a phone, hydrating on demand
func (s *ConversationMemoryService) GetContext(ctx context.Context, phone, userID string) *models.ConversationContext {
	return s.cache.Get(ctx, phone, userID)
}

// AddMessage applies one new message to a customer's context, keeps every
// derived field consistent and (for non-system messages) writes through to
// the durable store. The in-memory update is never rolled back on a durable
// write failure.
func (s *ConversationMemoryService) AddMessage(ctx context.Context, phone string, msg models.Message) *models.ConversationContext {
	return s.AddMessageWithPersistence(ctx, phone, msg, s.persistDefault)
}

// AddMessageWithPersistence is AddMessage with an explicit write-through flag
func (s *ConversationMemoryService) AddMessageWithPersistence(ctx context.Context, phone string, msg models.Message, persist bool) *models.ConversationContext {
	mu := s.lockKey(phone)
	mu.Lock()
	defer mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	c := s.cache.Get(ctx, phone, "")

	// Append and advance the aggregate counters
	c.Messages = append(c.Messages, msg)
	ts := msg.Timestamp
	c.LastMessageAt = &ts
	c.TotalMessages++
	c.IsFirstInteraction = false

	// Most-recent-first intent window, no de-duplication
	if msg.Intent != "" {
		c.RecentIntents = append([]string{msg.Intent}, c.RecentIntents...)
		if len(c.RecentIntents) > models.MaxRecentIntents {
			c.RecentIntents = c.RecentIntents[:models.MaxRecentIntents]
		}
	}

	if msg.Metadata != nil && msg.Metadata.CommandExecuted != "" {
		c.ExecutedCommands = append(c.ExecutedCommands, msg.Metadata.CommandExecuted)
	}
	if msg.Metadata != nil && msg.Metadata.Escalated {
		c.NeedsEscalation = true
	}

	c.DominantSentiment = dominantSentimentOf(c.Messages)

	c.ConversationState = ClassifyConversationState(c.Messages, c.RecentIntents, time.Now())
	if c.ConversationState == models.StateEscalation {
		c.NeedsEscalation = true
	}

	// Write-once summary: generated when the threshold is crossed, never
	// regenerated afterwards even as more messages arrive
	if c.Summary == "" && len(c.Messages) >= s.cache.Config().SummaryThreshold {
		c.Summary = buildSummary(c.Messages, c.TotalMessages)
		now := time.Now()
		c.SummaryUpdatedAt = &now
		log.Printf("📝 [MEMORY] Generated summary for %s (%d messages)", phone, c.TotalMessages)
	}

	// Trim the bounded window; TotalMessages is unaffected
	if maxMessages := s.cache.Config().MaxMessagesPerContext; len(c.Messages) > maxMessages {
		c.Messages = c.Messages[len(c.Messages)-maxMessages:]
	}

	s.cache.Put(phone, c)
	s.metrics.RecordMessageIngested(msg.Role)
	logging.WithConversation(c.ConversationID, phone).Debug("message ingested",
		"role", msg.Role, "state", c.ConversationState, "total_messages", c.TotalMessages)

	if persist && msg.Role != models.RoleSystem {
		s.writeThrough(ctx, c, msg)
	}

	return c
}

// writeThrough upserts the durable aggregate and appends the immutable
// interaction record. Failures are logged, not retried, and do not roll back
// the in-memory update.
func (s *ConversationMemoryService) writeThrough(ctx context.Context, c *models.ConversationContext, msg models.Message) {
	if s.store == nil {
		return
	}

	update := models.ConversationUpdate{
		UserID:        c.UserID,
		LastMessageAt: msg.Timestamp,
		LastIntent:    msg.Intent,
		LastSentiment: msg.Sentiment,
	}
	if err := s.store.UpsertAggregate(ctx, c.CustomerPhone, update); err != nil {
		s.metrics.RecordPersistenceError()
		log.Printf("⚠️ [MEMORY] Failed to upsert conversation aggregate for %s: %v", c.CustomerPhone, err)
	}

	record := models.InteractionRecord{
		ID:             uuid.NewString(),
		ConversationID: c.ConversationID,
		CustomerPhone:  c.CustomerPhone,
		UserID:         c.UserID,
		Role:           msg.Role,
		Content:        msg.Content,
		Intent:         msg.Intent,
		Sentiment:      msg.Sentiment,
		Timestamp:      msg.Timestamp,
	}
	if msg.Metadata != nil {
		record.CommandExecuted = msg.Metadata.CommandExecuted
	}
	if err := s.store.AppendInteraction(ctx, record); err != nil {
		s.metrics.RecordPersistenceError()
		log.Printf("⚠️ [MEMORY] Failed to append interaction for %s: %v", c.CustomerPhone, err)
	}
}

// GetFormattedHistory returns the most recent limit messages, chronological,
// in the minimal shape the response generator consumes
func (s *ConversationMemoryService) GetFormattedHistory(ctx context.Context, phone string, limit int) []models.FormattedMessage {
	if limit <= 0 {
		limit = 10
	}

	c := s.cache.Get(ctx, phone, "")
	messages := c.Messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	history := make([]models.FormattedMessage, 0, len(messages))
	for _, msg := range messages {
		history = append(history, models.FormattedMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history
}

// GetConversationSummary returns the write-once summary when set, otherwise
// a computed fallback over the trailing messages
func (s *ConversationMemoryService) GetConversationSummary(ctx context.Context, phone string) string {
	c := s.cache.Get(ctx, phone, "")
	if c.Summary != "" {
		return c.Summary
	}

	messages := c.Messages
	if len(messages) > summaryFallbackWindow {
		messages = messages[len(messages)-summaryFallbackWindow:]
	}
	if len(messages) == 0 {
		return "No conversation history yet."
	}
	return buildSummary(messages, c.TotalMessages)
}

// GetTopics extracts the current top topics for a conversation and records
// them on the context. Takes the per-key lock: it reads Messages and writes
// Topics on the shared context, the same way ingestion does.
func (s *ConversationMemoryService) GetTopics(ctx context.Context, phone string) []string {
	mu := s.lockKey(phone)
	mu.Lock()
	defer mu.Unlock()

	c := s.cache.Get(ctx, phone, "")
	topics := s.topics.ExtractTopics(c.Messages, DefaultTopicLimit)
	c.Topics = topics
	s.cache.Put(phone, c)
	return topics
}

// ClearContext invalidates the cached context for a phone
func (s *ConversationMemoryService) ClearContext(phone string) {
	s.cache.Clear(phone)
}

// GetCacheStats exposes the cache snapshot
func (s *ConversationMemoryService) GetCacheStats() models.CacheStats {
	return s.cache.Stats()
}

// buildSummary renders the deterministic synopsis: message count plus the
// de-duplicated intent list in order of first appearance
func buildSummary(messages []models.Message, totalMessages int) string {
	seen := make(map[string]struct{})
	var intents []string
	for _, msg := range messages {
		if msg.Intent == "" {
			continue
		}
		if _, dup := seen[msg.Intent]; dup {
			continue
		}
		seen[msg.Intent] = struct{}{}
		intents = append(intents, msg.Intent)
	}

	if len(intents) == 0 {
		return fmt.Sprintf("Conversation with %d messages exchanged.", totalMessages)
	}
	return fmt.Sprintf("Conversation with %d messages exchanged. Intents: %s.",
		totalMessages, strings.Join(intents, ", "))
}

// dominantSentimentOf takes a strict majority vote over all sentiment-tagged
// messages. The winning category must beat both others outright; any tie at
// the top resolves to neutral.
func dominantSentimentOf(messages []models.Message) string {
	counts := map[string]int{}
	for _, msg := range messages {
		switch msg.Sentiment {
		case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
			counts[msg.Sentiment]++
		}
	}

	best := models.SentimentNeutral
	bestCount := 0
	tied := false
	for _, sentiment := range []string{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral} {
		count := counts[sentiment]
		if count > bestCount {
			best = sentiment
			bestCount = count
			tied = false
		} else if count == bestCount && count > 0 {
			tied = true
		}
	}

	if bestCount == 0 || tied {
		return models.SentimentNeutral
	}
	return best
}
