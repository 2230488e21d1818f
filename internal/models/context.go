package models

import "time"

// Conversation states
const (
	StateGreeting   = "greeting"
	StateInquiry    = "inquiry"
	StateSupport    = "support"
	StateResolution = "resolution"
	StateEscalation = "escalation"
	StateIdle       = "idle"
)

// MaxRecentIntents bounds the most-recent-first intent window
const MaxRecentIntents = 5

// ConversationContext is the live, in-memory aggregate for one customer
// conversation. Messages is a bounded window; TotalMessages counts every
// message ever ingested and keeps growing after the window trims.
type ConversationContext struct {
	ConversationID string `json:"conversation_id"`
	CustomerPhone  string `json:"customer_phone"`
	CustomerName   string `json:"customer_name,omitempty"`
	UserID         string `json:"user_id,omitempty"`

	Messages         []Message  `json:"messages"`
	Summary          string     `json:"summary,omitempty"`
	SummaryUpdatedAt *time.Time `json:"summary_updated_at,omitempty"`

	RecentIntents     []string `json:"recent_intents"`
	DominantSentiment string   `json:"dominant_sentiment"`
	Topics            []string `json:"topics,omitempty"`
	ExecutedCommands  []string `json:"executed_commands,omitempty"`

	ConversationState  string     `json:"conversation_state"`
	IsFirstInteraction bool       `json:"is_first_interaction"`
	NeedsEscalation    bool       `json:"needs_escalation"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	TotalMessages      int        `json:"total_messages"`
}

// StoredConversation is the durable conversation aggregate row
type StoredConversation struct {
	ID            string     `json:"id"`
	CustomerPhone string     `json:"customer_phone"`
	UserID        string     `json:"user_id,omitempty"`
	MessageCount  int        `json:"message_count"`
	LastIntent    string     `json:"last_intent,omitempty"`
	LastSentiment string     `json:"last_sentiment,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ConversationSnapshot is what the durable store hands back on hydration:
// the aggregate row, the trailing message window and, when resolvable,
// the owning user.
type ConversationSnapshot struct {
	Conversation *StoredConversation
	Messages     []Message
	User         *User
}

// ConversationUpdate is the per-message aggregate upsert payload
type ConversationUpdate struct {
	UserID        string
	LastMessageAt time.Time
	LastIntent    string
	LastSentiment string
}

// InteractionRecord is one append-only row of the durable interaction log
type InteractionRecord struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	ConversationID  string    `bson:"conversationId" json:"conversation_id"`
	CustomerPhone   string    `bson:"customerPhone" json:"customer_phone"`
	UserID          string    `bson:"userId,omitempty" json:"user_id,omitempty"`
	Role            string    `bson:"role" json:"role"`
	Content         string    `bson:"content" json:"content"`
	Intent          string    `bson:"intent,omitempty" json:"intent,omitempty"`
	Sentiment       string    `bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	CommandExecuted string    `bson:"commandExecuted,omitempty" json:"command_executed,omitempty"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
}

// CacheEntryStats describes one cached context for the stats endpoint
type CacheEntryStats struct {
	CustomerPhone string  `json:"customer_phone"`
	AccessCount   int64   `json:"access_count"`
	MessageCount  int     `json:"message_count"`
	AgeSeconds    float64 `json:"age_seconds"`
	IdleSeconds   float64 `json:"idle_seconds"`
}

// CacheStats is the cache snapshot exposed to operators
type CacheStats struct {
	Size    int               `json:"size"`
	MaxSize int               `json:"max_size"`
	Entries []CacheEntryStats `json:"entries"`
}
