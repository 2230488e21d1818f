package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"atendai/internal/models"

	"github.com/redis/go-redis/v9"
)

// SessionStoreService resolves live customer sessions from Redis.
// Sessions are written by the messaging gateway under session:<userID>:<phone>
// with a TTL; this service only reads.
type SessionStoreService struct {
	client *redis.Client
}

// NewSessionStoreService connects to Redis from a redis:// URL
func NewSessionStoreService(redisURL string) (*SessionStoreService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Println("✅ Redis session store connected")
	return &SessionStoreService{client: client}, nil
}

// sessionKey is the gateway's key layout for live sessions
func sessionKey(userID, phone string) string {
	return fmt.Sprintf("session:%s:%s", userID, phone)
}

// FindActiveSession returns the customer's live session, or (nil, nil) when
// no session exists or the stored one is expired or inactive.
func (s *SessionStoreService) FindActiveSession(ctx context.Context, userID, phone string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID, phone)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session for %s: %w", phone, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", phone, err)
	}

	if !session.Active || session.IsExpired(time.Now()) {
		return nil, nil
	}
	return &session, nil
}

// Close releases the Redis connection
func (s *SessionStoreService) Close() error {
	return s.client.Close()
}
