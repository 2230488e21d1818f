package models

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Sentiment categories attached to individual messages
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// MessageMetadata carries the structured side effects of a message.
// Untyped metadata bags proved error prone; every recognized key is a field.
type MessageMetadata struct {
	TicketCreated   bool   `bson:"ticketCreated,omitempty" json:"ticket_created,omitempty"`
	Escalated       bool   `bson:"escalated,omitempty" json:"escalated,omitempty"`
	CommandExecuted string `bson:"commandExecuted,omitempty" json:"command_executed,omitempty"`
}

// Message is one message inside a conversation context
type Message struct {
	ID        string           `bson:"_id,omitempty" json:"id"`
	Role      string           `bson:"role" json:"role"`
	Content   string           `bson:"content" json:"content"`
	Timestamp time.Time        `bson:"timestamp" json:"timestamp"`
	Intent    string           `bson:"intent,omitempty" json:"intent,omitempty"`
	Sentiment string           `bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	Metadata  *MessageMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// AddMessageRequest is the ingestion payload. Persist overrides the
// service-wide write-through default when set.
type AddMessageRequest struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Intent    string           `json:"intent,omitempty"`
	Sentiment string           `json:"sentiment,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Persist   *bool            `json:"persist,omitempty"`
}

// FormattedMessage is the minimal shape the response generator consumes
type FormattedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
