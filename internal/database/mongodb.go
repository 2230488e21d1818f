package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database for the account-side
// query services (users, subscriptions, support tickets, interaction log)
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionUsers          = "users"
	CollectionSubscriptions  = "subscriptions"
	CollectionSupportTickets = "support_tickets"
	CollectionInteractionLog = "interactions_log"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "atendai"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ MongoDB connected (database: %s)", dbName)
	return db, nil
}

// Collection returns a collection handle by name
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Database returns the underlying database handle
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks connectivity
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// extractDBName pulls the database name out of a MongoDB URI
func extractDBName(uri string) string {
	withoutScheme := uri
	if idx := strings.Index(uri, "://"); idx >= 0 {
		withoutScheme = uri[idx+3:]
	}
	slashIdx := strings.Index(withoutScheme, "/")
	if slashIdx < 0 || slashIdx == len(withoutScheme)-1 {
		return ""
	}
	name := withoutScheme[slashIdx+1:]
	if qIdx := strings.Index(name, "?"); qIdx >= 0 {
		name = name[:qIdx]
	}
	return name
}
