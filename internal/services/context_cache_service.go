package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"atendai/internal/models"

	"github.com/google/uuid"
)

// Cache defaults
const (
	DefaultCacheMaxSize  = 1000
	DefaultCacheTTL      = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute

	// hydrationWindow bounds how many durable messages are replayed on a miss
	hydrationWindow = 50
)

// CacheConfig bounds the conversation context cache
type CacheConfig struct {
	MaxSize               int
	TTL                   time.Duration
	SweepInterval         time.Duration
	MaxMessagesPerContext int
	SummaryThreshold      int
}

// Validate fails fast on invalid bounds
func (c CacheConfig) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("cache max size must be positive, got %d", c.MaxSize)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.TTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive, got %v", c.SweepInterval)
	}
	if c.MaxMessagesPerContext <= 0 {
		return fmt.Errorf("max messages per context must be positive, got %d", c.MaxMessagesPerContext)
	}
	if c.SummaryThreshold <= 0 {
		return fmt.Errorf("summary threshold must be positive, got %d", c.SummaryThreshold)
	}
	if c.SummaryThreshold > c.MaxMessagesPerContext {
		return fmt.Errorf("summary threshold (%d) must not exceed max messages per context (%d)",
			c.SummaryThreshold, c.MaxMessagesPerContext)
	}
	return nil
}

// cacheEntry wraps a context with eviction bookkeeping. Not exposed outside
// the cache.
type cacheEntry struct {
	context        *models.ConversationContext
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// ContextCacheService holds at most one live ConversationContext per customer
// phone, bounded in count (LRU by access time) and recency (TTL sweep).
// Instances are explicitly constructed and own their key table and sweep
// timer, so tests can run isolated caches side by side.
type ContextCacheService struct {
	store   ConversationStore
	config  CacheConfig
	metrics *Metrics

	entries   map[string]*cacheEntry
	mu        sync.RWMutex
	sweepTick *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
}

// NewContextCacheService creates a cache backed by the given durable store.
// The store may be nil (pure in-memory mode, used by tests); hydration then
// always yields a fresh empty context.
func NewContextCacheService(store ConversationStore, config CacheConfig, metrics *Metrics) (*ContextCacheService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	s := &ContextCacheService{
		store:     store,
		config:    config,
		metrics:   metrics,
		entries:   make(map[string]*cacheEntry),
		sweepTick: time.NewTicker(config.SweepInterval),
		done:      make(chan struct{}),
	}
	go s.sweepLoop()

	log.Printf("🧠 [CONTEXT-CACHE] Initialized (maxSize: %d, ttl: %v)", config.MaxSize, config.TTL)
	return s, nil
}

// Config returns the cache bounds (shared with the ingestion pipeline)
func (s *ContextCacheService) Config() CacheConfig {
	return s.config
}

// Get returns the cached context for a phone, hydrating from the durable
// store on a miss. Hydration failures degrade to a fresh empty context;
// Get never returns an error to the caller.
func (s *ContextCacheService) Get(ctx context.Context, phone, userID string) *models.ConversationContext {
	s.mu.Lock()
	if entry, exists := s.entries[phone]; exists {
		entry.lastAccessedAt = time.Now()
		entry.accessCount++
		s.mu.Unlock()
		s.metrics.RecordCacheHit()
		return entry.context
	}
	s.mu.Unlock()

	s.metrics.RecordCacheMiss()
	hydrated := s.hydrate(ctx, phone, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have hydrated while we were off the lock
	if entry, exists := s.entries[phone]; exists {
		entry.lastAccessedAt = time.Now()
		entry.accessCount++
		return entry.context
	}

	s.insertLocked(phone, hydrated)
	return hydrated
}

// Put inserts or overwrites the context for a phone, evicting the least
// recently accessed entry when the cache is full.
func (s *ContextCacheService) Put(phone string, context *models.ConversationContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[phone]; exists {
		entry.context = context
		entry.lastAccessedAt = time.Now()
		return
	}

	s.insertLocked(phone, context)
}

// insertLocked inserts a new entry, evicting first if at capacity.
// Caller holds the write lock.
func (s *ContextCacheService) insertLocked(phone string, context *models.ConversationContext) {
	if len(s.entries) >= s.config.MaxSize {
		s.evictOldestLocked()
	}

	now := time.Now()
	s.entries[phone] = &cacheEntry{
		context:        context,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
	}
}

// evictOldestLocked removes the entry with the oldest lastAccessedAt.
// Caller holds the write lock.
func (s *ContextCacheService) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range s.entries {
		if oldestKey == "" || entry.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessedAt
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
		s.metrics.RecordCacheEviction()
		log.Printf("🧹 [CONTEXT-CACHE] Evicted LRU context for %s (last access: %v)",
			oldestKey, oldestTime.Format(time.RFC3339))
	}
}

// hydrate loads a context from the durable store, creating a durable record
// when none exists. Store failures are logged and degrade to a fresh context.
func (s *ContextCacheService) hydrate(ctx context.Context, phone, userID string) *models.ConversationContext {
	if s.store == nil {
		return s.freshContext(phone, userID)
	}

	snapshot, err := s.store.FindByPhone(ctx, phone)
	if err == ErrConversationNotFound {
		created, createErr := s.store.CreateConversation(ctx, phone, userID)
		if createErr != nil {
			log.Printf("⚠️ [CONTEXT-CACHE] Failed to create conversation for %s: %v", phone, createErr)
			return s.freshContext(phone, userID)
		}
		fresh := s.freshContext(phone, userID)
		fresh.ConversationID = created.ID
		return fresh
	}
	if err != nil {
		log.Printf("⚠️ [CONTEXT-CACHE] Hydration failed for %s: %v (degrading to empty context)", phone, err)
		return s.freshContext(phone, userID)
	}

	return s.rebuildContext(snapshot, phone, userID)
}

// freshContext initializes an empty context for a first interaction
func (s *ContextCacheService) freshContext(phone, userID string) *models.ConversationContext {
	return &models.ConversationContext{
		ConversationID:     uuid.NewString(),
		CustomerPhone:      phone,
		UserID:             userID,
		Messages:           []models.Message{},
		RecentIntents:      []string{},
		DominantSentiment:  models.SentimentNeutral,
		ConversationState:  models.StateGreeting,
		IsFirstInteraction: true,
	}
}

// rebuildContext reconstructs the in-memory context and its derived fields
// from a durable snapshot
func (s *ContextCacheService) rebuildContext(snapshot *models.ConversationSnapshot, phone, userID string) *models.ConversationContext {
	agg := snapshot.Conversation

	messages := snapshot.Messages
	if len(messages) > s.config.MaxMessagesPerContext {
		messages = messages[len(messages)-s.config.MaxMessagesPerContext:]
	}

	c := &models.ConversationContext{
		ConversationID:     agg.ID,
		CustomerPhone:      phone,
		UserID:             agg.UserID,
		Messages:           messages,
		RecentIntents:      recentIntentsFrom(messages),
		DominantSentiment:  dominantSentimentOf(messages),
		ExecutedCommands:   executedCommandsFrom(messages),
		IsFirstInteraction: agg.MessageCount == 0 && len(messages) == 0,
		LastMessageAt:      agg.LastMessageAt,
		TotalMessages:      agg.MessageCount,
	}
	if c.UserID == "" {
		c.UserID = userID
	}
	if snapshot.User != nil {
		c.CustomerName = snapshot.User.Name
		if c.UserID == "" {
			c.UserID = snapshot.User.ID
		}
	}
	if c.TotalMessages < len(messages) {
		c.TotalMessages = len(messages)
	}
	c.ConversationState = ClassifyConversationState(c.Messages, c.RecentIntents, time.Now())
	c.NeedsEscalation = c.ConversationState == models.StateEscalation

	log.Printf("💾 [CONTEXT-CACHE] Hydrated context for %s (%d messages, state: %s)",
		phone, len(messages), c.ConversationState)
	return c
}

// Clear removes a single entry (admin/test hook)
func (s *ContextCacheService) Clear(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[phone]; exists {
		delete(s.entries, phone)
		log.Printf("🗑️ [CONTEXT-CACHE] Cleared context for %s", phone)
	}
}

// ClearAll empties the cache
func (s *ContextCacheService) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.entries)
	s.entries = make(map[string]*cacheEntry)
	log.Printf("🗑️ [CONTEXT-CACHE] Cleared all %d contexts", count)
}

// Size returns the current number of live entries
func (s *ContextCacheService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a snapshot of the cache state
func (s *ContextCacheService) Stats() models.CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	entries := make([]models.CacheEntryStats, 0, len(s.entries))
	for phone, entry := range s.entries {
		entries = append(entries, models.CacheEntryStats{
			CustomerPhone: phone,
			AccessCount:   entry.accessCount,
			MessageCount:  len(entry.context.Messages),
			AgeSeconds:    now.Sub(entry.createdAt).Seconds(),
			IdleSeconds:   now.Sub(entry.lastAccessedAt).Seconds(),
		})
	}

	return models.CacheStats{
		Size:    len(s.entries),
		MaxSize: s.config.MaxSize,
		Entries: entries,
	}
}

// sweepLoop runs the periodic TTL sweep until Shutdown
func (s *ContextCacheService) sweepLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.sweepTick.C:
			s.Sweep()
		}
	}
}

// Sweep removes every entry whose last access is older than the TTL.
// Exported so the sweep can be triggered directly in tests and admin tooling.
func (s *ContextCacheService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0
	for phone, entry := range s.entries {
		if now.Sub(entry.lastAccessedAt) > s.config.TTL {
			delete(s.entries, phone)
			expired++
		}
	}

	if expired > 0 {
		s.metrics.RecordCacheSweep(expired)
		log.Printf("🧹 [CONTEXT-CACHE] Sweep removed %d expired contexts, %d remain", expired, len(s.entries))
	}
	return expired
}

// Shutdown stops the sweep timer
func (s *ContextCacheService) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.sweepTick.Stop()
		log.Println("🛑 [CONTEXT-CACHE] Shutdown complete")
	})
}

// recentIntentsFrom derives the most-recent-first bounded intent list
// from chronological messages
func recentIntentsFrom(messages []models.Message) []string {
	intents := []string{}
	for i := len(messages) - 1; i >= 0 && len(intents) < models.MaxRecentIntents; i-- {
		if messages[i].Intent != "" {
			intents = append(intents, messages[i].Intent)
		}
	}
	return intents
}

// executedCommandsFrom collects commandExecuted metadata in message order
func executedCommandsFrom(messages []models.Message) []string {
	var commands []string
	for _, msg := range messages {
		if msg.Metadata != nil && msg.Metadata.CommandExecuted != "" {
			commands = append(commands, msg.Metadata.CommandExecuted)
		}
	}
	return commands
}
