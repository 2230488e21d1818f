package services

import (
	"context"
	"fmt"

	"atendai/internal/database"
	"atendai/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SubscriptionQueryService resolves the current subscription for a user
// from MongoDB. CANCELLED subscriptions never count as current.
type SubscriptionQueryService struct {
	mongodb *database.MongoDB
}

// NewSubscriptionQueryService creates the subscription query service
func NewSubscriptionQueryService(mongodb *database.MongoDB) *SubscriptionQueryService {
	return &SubscriptionQueryService{mongodb: mongodb}
}

// FindCurrentSubscription returns the most recently started ACTIVE, OVERDUE
// or PAUSED subscription, or (nil, nil) when the user has none.
func (s *SubscriptionQueryService) FindCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	filter := bson.M{
		"userId": userID,
		"status": bson.M{"$in": []string{
			models.SubStatusActive,
			models.SubStatusOverdue,
			models.SubStatusPaused,
		}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})

	var sub models.Subscription
	err := s.mongodb.Collection(database.CollectionSubscriptions).FindOne(ctx, filter, opts).Decode(&sub)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription for user %s: %w", userID, err)
	}
	return &sub, nil
}
