package services

import (
	"context"
	"fmt"

	"atendai/internal/database"
	"atendai/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SupportQueryService serves the support-history side of enrichment:
// recent tickets and the behavioral interaction log, both from MongoDB.
type SupportQueryService struct {
	mongodb *database.MongoDB
}

// NewSupportQueryService creates the support query service
func NewSupportQueryService(mongodb *database.MongoDB) *SupportQueryService {
	return &SupportQueryService{mongodb: mongodb}
}

// ListTickets returns the user's most recent tickets, newest first
func (s *SupportQueryService) ListTickets(ctx context.Context, userID string, limit int) ([]models.SupportTicket, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.mongodb.Collection(database.CollectionSupportTickets).
		Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var tickets []models.SupportTicket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("failed to decode tickets for user %s: %w", userID, err)
	}
	return tickets, nil
}

// ListInteractions returns the user's most recent interaction log entries,
// newest first
func (s *SupportQueryService) ListInteractions(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.mongodb.Collection(database.CollectionInteractionLog).
		Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var interactions []models.InteractionRecord
	if err := cursor.All(ctx, &interactions); err != nil {
		return nil, fmt.Errorf("failed to decode interactions for user %s: %w", userID, err)
	}
	return interactions, nil
}
