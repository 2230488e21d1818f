package services

import (
	"context"
	"fmt"
	"time"

	"atendai/internal/database"
	"atendai/internal/models"

	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// userLookupTTL bounds how long a resolved (or missing) user is memoized
const userLookupTTL = 5 * time.Minute

// UserDirectoryService resolves customer accounts from MongoDB, memoizing
// lookups so enrichment bursts for the same customer hit Mongo once.
type UserDirectoryService struct {
	mongodb *database.MongoDB
	lookups *cache.Cache
}

// NewUserDirectoryService creates the directory service
func NewUserDirectoryService(mongodb *database.MongoDB) *UserDirectoryService {
	return &UserDirectoryService{
		mongodb: mongodb,
		lookups: cache.New(userLookupTTL, 10*time.Minute),
	}
}

// FindUser resolves a user by phone, WhatsApp number or id.
// A missing user is (nil, nil), memoized like a hit.
func (s *UserDirectoryService) FindUser(ctx context.Context, phone, userID string) (*models.User, error) {
	key := phone + "|" + userID
	if cached, found := s.lookups.Get(key); found {
		if cached == nil {
			return nil, nil
		}
		return cached.(*models.User), nil
	}

	filter := buildUserFilter(phone, userID)
	if filter == nil {
		return nil, nil
	}

	var user models.User
	err := s.mongodb.Collection(database.CollectionUsers).FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		s.lookups.Set(key, nil, cache.DefaultExpiration)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user for %s: %w", phone, err)
	}

	s.lookups.Set(key, &user, cache.DefaultExpiration)
	return &user, nil
}

// buildUserFilter matches by phone, whatsapp or _id, whichever is available
func buildUserFilter(phone, userID string) bson.M {
	var clauses []bson.M
	if phone != "" {
		clauses = append(clauses,
			bson.M{"phone": phone},
			bson.M{"whatsapp": phone})
	}
	if userID != "" {
		if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
			clauses = append(clauses, bson.M{"_id": oid})
		} else {
			clauses = append(clauses, bson.M{"_id": userID})
		}
	}
	if len(clauses) == 0 {
		return nil
	}
	return bson.M{"$or": clauses}
}
